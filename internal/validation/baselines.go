package validation

import (
	"context"
	"fmt"

	apperrors "aqicli/internal/errors"
	"aqicli/internal/stats"
)

// columnEchoAdapter predicts by repeating one feature column verbatim.
// It is the shared mechanism behind the persistence and seasonal-naive
// baselines, which differ only in which reference column they echo.
type columnEchoAdapter struct {
	id     string
	column int
}

func (a *columnEchoAdapter) ID() string {
	return a.id
}

// Fit is a no-op: echo baselines carry no trainable state.
func (a *columnEchoAdapter) Fit(ctx context.Context, features [][]float64, target []float64) error {
	return nil
}

func (a *columnEchoAdapter) Predict(ctx context.Context, features [][]float64) ([]float64, error) {
	out := make([]float64, len(features))
	for i, row := range features {
		col := a.column
		if col < 0 {
			col = len(row) + col
		}
		if col < 0 || col >= len(row) {
			return nil, apperrors.NewDataQualityError(
				fmt.Sprintf("baseline %s references column %d but rows have %d features", a.id, a.column, len(row)), nil)
		}
		out[i] = row[col]
	}
	return out, nil
}

// PersistenceAdapter forecasts no change: every prediction repeats the
// current observed value. Wire it to the aqi_now column of a pair matrix.
type PersistenceAdapter struct {
	columnEchoAdapter
}

// NewPersistenceAdapter creates a persistence baseline reading the given
// feature column. Negative columns count from the end of the row.
func NewPersistenceAdapter(column int) *PersistenceAdapter {
	return &PersistenceAdapter{columnEchoAdapter{id: "persistence", column: column}}
}

// SeasonalNaiveAdapter forecasts the value observed at the target's
// clock hour one day earlier. Wire it to the aqi_season column of a pair
// matrix.
type SeasonalNaiveAdapter struct {
	columnEchoAdapter
}

// NewSeasonalNaiveAdapter creates a seasonal-naive baseline reading the
// given feature column. Negative columns count from the end of the row.
func NewSeasonalNaiveAdapter(column int) *SeasonalNaiveAdapter {
	return &SeasonalNaiveAdapter{columnEchoAdapter{id: "seasonal_naive", column: column}}
}

// ClimatologyAdapter predicts the mean of the training targets for every
// row. It is the floor any feature-driven model has to clear.
type ClimatologyAdapter struct {
	mean   float64
	fitted bool
}

// NewClimatologyAdapter creates an unfitted climatology baseline.
func NewClimatologyAdapter() *ClimatologyAdapter {
	return &ClimatologyAdapter{}
}

func (a *ClimatologyAdapter) ID() string {
	return "climatology"
}

// Fit stores the mean of the finite training targets.
func (a *ClimatologyAdapter) Fit(ctx context.Context, features [][]float64, target []float64) error {
	finite := stats.Finite(target)
	if len(finite) == 0 {
		return apperrors.NewDataQualityError("climatology fit needs at least one finite target", nil)
	}
	a.mean = stats.Mean(finite)
	a.fitted = true
	return nil
}

// Predict returns the stored training mean for every input row.
func (a *ClimatologyAdapter) Predict(ctx context.Context, features [][]float64) ([]float64, error) {
	if !a.fitted {
		return nil, apperrors.NewDataQualityError("climatology predict called before fit", nil)
	}
	out := make([]float64, len(features))
	for i := range out {
		out[i] = a.mean
	}
	return out, nil
}
