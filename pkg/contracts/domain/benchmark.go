package domain

import "time"

// BaselineMetrics is one row of the published per-city baseline table that
// candidate models are compared against.
type BaselineMetrics struct {
	City   string  `json:"city" yaml:"city" validate:"required"`
	RMSE   float64 `json:"rmse" yaml:"rmse" validate:"gt=0"`
	MAE    float64 `json:"mae" yaml:"mae"`
	Source string  `json:"source,omitempty" yaml:"source,omitempty"`
}

// BenchmarkComparison relates a model's error to a published baseline.
// Improvement is (baseline_rmse - model_rmse) / baseline_rmse, so positive
// values mean the model beats the baseline.
type BenchmarkComparison struct {
	ModelID      string  `json:"model_id"`
	City         string  `json:"city"`
	BaselineRMSE float64 `json:"baseline_rmse"`
	ModelRMSE    float64 `json:"model_rmse"`
	Improvement  float64 `json:"improvement"`
	Source       string  `json:"source,omitempty"`
}

// GroundTruthComparison measures model predictions against third-party
// reference observations joined on timestamp.
type GroundTruthComparison struct {
	ModelID       string  `json:"model_id"`
	City          string  `json:"city"`
	MatchedRows   int     `json:"matched_rows"`
	UnmatchedRows int     `json:"unmatched_rows"`
	Metrics       Metrics `json:"metrics"`
}

// ModelRanking is one row of the final ranked model list. Score is
// 0.6*multi-city R^2 + 0.4*normalized inverse forecast RMSE; ties are
// broken by lower cross-city R^2 variance.
type ModelRanking struct {
	Rank              int     `json:"rank"`
	ModelID           string  `json:"model_id"`
	Score             float64 `json:"score"`
	MultiCityR2       float64 `json:"multi_city_r2"`
	ForecastRMSE      float64 `json:"forecast_rmse"`
	NormInverseRMSE   float64 `json:"norm_inverse_rmse"`
	CrossCityVariance float64 `json:"cross_city_variance"`
}

// ValidationReport is the structured metric table emitted at the end of a
// validation run. Rendering to JSON/CSV/Markdown is the caller's concern.
type ValidationReport struct {
	RunID       string                   `json:"run_id"`
	GeneratedAt time.Time                `json:"generated_at"`
	Cities      []string                 `json:"cities"`
	Horizons    []int                    `json:"horizons"`
	Rankings    []ModelRanking           `json:"rankings"`
	Holdout     []ValidationResult       `json:"holdout"`
	Forecast    []ValidationResult       `json:"forecast"`
	Transfers   []TransferResult         `json:"transfers,omitempty"`
	Stratified  map[string][]BandMetrics `json:"stratified,omitempty"`
	Benchmarks  []BenchmarkComparison    `json:"benchmarks,omitempty"`
	GroundTruth []GroundTruthComparison  `json:"ground_truth,omitempty"`
	UnitsTotal  int                      `json:"units_total"`
	UnitsFailed int                      `json:"units_failed"`
}
