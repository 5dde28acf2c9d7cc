package domain

import (
	"context"
	"math"
)

// ModelAdapter is the generic fit/predict contract consumed by the
// validation framework. The engine never trains models itself; adapters may
// wrap in-process estimators or remote model services.
type ModelAdapter interface {
	// ID returns a stable identifier used in results and reports.
	ID() string
	// Fit trains the adapter on a feature matrix and aligned target vector.
	Fit(ctx context.Context, features [][]float64, target []float64) error
	// Predict returns one value per feature row.
	Predict(ctx context.Context, features [][]float64) ([]float64, error)
}

// Metrics holds the evaluation measures produced by the validators. Fields
// that a given validator does not compute are NaN.
type Metrics struct {
	R2                  float64 `json:"r2"`
	RMSE                float64 `json:"rmse"`
	MAE                 float64 `json:"mae"`
	MAPE                float64 `json:"mape"`
	MaxError            float64 `json:"max_error"`
	MedianAbsError      float64 `json:"median_abs_error"`
	DirectionalAccuracy float64 `json:"directional_accuracy"`
	SkillScore          float64 `json:"skill_score"`
	Bias                float64 `json:"bias"`
	Samples             int     `json:"samples"`
	MAPESkippedRows     int     `json:"mape_skipped_rows,omitempty"`
}

// NewMetrics returns a Metrics value with every measure initialised to NaN.
func NewMetrics() Metrics {
	nan := math.NaN()
	return Metrics{
		R2:                  nan,
		RMSE:                nan,
		MAE:                 nan,
		MAPE:                nan,
		MaxError:            nan,
		MedianAbsError:      nan,
		DirectionalAccuracy: nan,
		SkillScore:          nan,
		Bias:                nan,
	}
}

// ValidationResult is the outcome of evaluating one model on one city at
// one horizon. HorizonHours is zero for same-hour holdout evaluation.
type ValidationResult struct {
	ModelID      string  `json:"model_id"`
	City         string  `json:"city"`
	HorizonHours int     `json:"horizon_hours"`
	Metrics      Metrics `json:"metrics"`
	// Err records an adapter failure for this unit; sibling units proceed.
	Err string `json:"error,omitempty"`
}

// Failed reports whether the unit was skipped because of an adapter error.
func (r *ValidationResult) Failed() bool {
	return r.Err != ""
}

// TransferResult captures cross-city generalization: a model fit on
// FromCity evaluated against ToCity's full series, compared with ToCity's
// own same-city holdout.
type TransferResult struct {
	ModelID     string  `json:"model_id"`
	FromCity    string  `json:"from_city"`
	ToCity      string  `json:"to_city"`
	Metrics     Metrics `json:"metrics"`
	SameCityR2  float64 `json:"same_city_r2"`
	Degradation float64 `json:"degradation"`
}

// BandMetrics reports error measures for the test rows falling in one AQI
// band.
type BandMetrics struct {
	Band AQIBand `json:"band"`
	Rows int     `json:"rows"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
}
