package validation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	apperrors "aqicli/internal/errors"
	"aqicli/pkg/contracts/domain"
)

// Reference columns appended to every pair matrix. Both are observable at
// the feature row, so they are legitimate predictors as well as the
// anchors for the persistence and seasonal-naive baselines.
const (
	pairNowColumn    = "aqi_now"
	pairSeasonColumn = "aqi_season"
)

// ForecastingConfig holds the walk-forward geometry.
type ForecastingConfig struct {
	// MinTrainSize is the smallest training window, in pair rows.
	MinTrainSize int
	// Step advances the evaluation row between folds.
	Step int
	// Gap holds rows out between the training window and the
	// evaluation row.
	Gap int
}

// DefaultForecastingConfig returns the standard geometry: a week of
// hourly history before the first evaluation, single-step slides.
func DefaultForecastingConfig() ForecastingConfig {
	return ForecastingConfig{MinTrainSize: 168, Step: 1, Gap: 0}
}

// Validate rejects geometries the walk-forward iterator cannot run with.
func (c ForecastingConfig) Validate() error {
	if c.MinTrainSize < 1 {
		return apperrors.NewConfigurationError(
			fmt.Sprintf("min train size must be at least 1, got %d", c.MinTrainSize), nil)
	}
	if c.Step < 1 {
		return apperrors.NewConfigurationError(
			fmt.Sprintf("walk-forward step must be at least 1, got %d", c.Step), nil)
	}
	if c.Gap < 0 {
		return apperrors.NewConfigurationError(
			fmt.Sprintf("walk-forward gap must not be negative, got %d", c.Gap), nil)
	}
	return nil
}

// ForecastingValidator scores models on strictly future targets.
type ForecastingValidator struct {
	cfg    ForecastingConfig
	logger *slog.Logger
}

// NewForecastingValidator creates a forecasting validator.
func NewForecastingValidator(cfg ForecastingConfig, logger *slog.Logger) (*ForecastingValidator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ForecastingValidator{cfg: cfg, logger: logger}, nil
}

// Config returns the validator's configuration.
func (v *ForecastingValidator) Config() ForecastingConfig {
	return v.cfg
}

// PairSet aligns feature rows with targets one horizon ahead. Rows whose
// target is missing are dropped at build time and counted; the remaining
// rows stay in chronological order.
type PairSet struct {
	City    string
	Horizon int
	// Features is the source table plus the aqi_now and aqi_season
	// reference columns.
	Features *domain.FeatureTable
	// Target is the AQI value Horizon hours after each feature row.
	Target []float64
	// Reference is the AQI value at each feature row, the anchor for
	// directional accuracy and the persistence baseline.
	Reference []float64
	// Dropped counts pair rows discarded for a missing target.
	Dropped int
}

// Len returns the number of usable pairs.
func (p *PairSet) Len() int {
	return len(p.Target)
}

// NowColumn returns the index of the current-value reference column.
func (p *PairSet) NowColumn() int {
	idx, _ := p.Features.ColumnIndex(pairNowColumn)
	return idx
}

// SeasonColumn returns the index of the same-clock-hour reference column.
func (p *PairSet) SeasonColumn() int {
	idx, _ := p.Features.ColumnIndex(pairSeasonColumn)
	return idx
}

func pick(values []float64, indices []int) []float64 {
	out := make([]float64, len(indices))
	for j, i := range indices {
		out[j] = values[i]
	}
	return out
}

// BuildPairs aligns each feature row t with the AQI target at t+horizon.
// The target is strictly future; every appended reference value is
// observable at t. The seasonal reference is the target's clock hour from
// the most recent fully observable day (t + horizon - 24*ceil(horizon/24)).
func (v *ForecastingValidator) BuildPairs(ctx context.Context, ds *CityDataset, horizon int) (*PairSet, error) {
	if horizon < 1 {
		return nil, apperrors.NewConfigurationError(
			fmt.Sprintf("forecast horizon must be at least 1 hour, got %d", horizon), nil)
	}
	if ds == nil || ds.Table == nil || ds.Series == nil {
		return nil, apperrors.NewDataQualityError("forecasting pairs need a populated city dataset", nil)
	}

	n := ds.Table.NumRows()
	limit := n - horizon
	if limit <= 0 {
		return nil, apperrors.NewDataQualityError(
			fmt.Sprintf("city %s has %d rows, not enough for a %dh horizon", ds.City, n, horizon), nil)
	}

	aqi := ds.Series.Column(domain.ParamAQI)
	kept := make([]int, 0, limit)
	for t := 0; t < limit; t++ {
		if isFinite(aqi[t+horizon]) {
			kept = append(kept, t)
		}
	}
	dropped := limit - len(kept)
	if len(kept) == 0 {
		return nil, apperrors.NewDataQualityError(
			fmt.Sprintf("city %s has no finite %dh-ahead targets", ds.City, horizon), nil)
	}

	timestamps := make([]time.Time, len(kept))
	for j, t := range kept {
		timestamps[j] = ds.Table.Timestamps[t]
	}
	features := domain.NewFeatureTable(timestamps)
	for _, name := range ds.Table.Columns {
		col, err := ds.Table.Column(name)
		if err != nil {
			return nil, fmt.Errorf("reading feature column: %w", err)
		}
		if err := features.AddColumn(name, pick(col, kept)); err != nil {
			return nil, fmt.Errorf("copying feature column: %w", err)
		}
	}

	// Seasonal reference: walk back to the target's clock hour on the
	// latest day that is fully observable from t.
	back := 24*((horizon+23)/24) - horizon
	season := make([]float64, len(kept))
	for j, t := range kept {
		if idx := t - back; idx >= 0 {
			season[j] = aqi[idx]
		} else {
			season[j] = math.NaN()
		}
	}

	reference := pick(aqi, kept)
	if err := features.AddColumn(pairNowColumn, pick(aqi, kept)); err != nil {
		return nil, fmt.Errorf("appending reference column: %w", err)
	}
	if err := features.AddColumn(pairSeasonColumn, season); err != nil {
		return nil, fmt.Errorf("appending reference column: %w", err)
	}

	target := make([]float64, len(kept))
	for j, t := range kept {
		target[j] = aqi[t+horizon]
	}

	v.logger.InfoContext(ctx, "built forecasting pairs",
		"city", ds.City,
		"horizon_hours", horizon,
		"pairs", len(kept),
		"dropped_rows", dropped,
	)

	return &PairSet{
		City:      ds.City,
		Horizon:   horizon,
		Features:  features,
		Target:    target,
		Reference: reference,
		Dropped:   dropped,
	}, nil
}

// ValidateSplit fits the adapter on the train segment of a chronological
// partition of the pairs and scores the test segment.
func (v *ForecastingValidator) ValidateSplit(ctx context.Context, adapter domain.ModelAdapter, pairs *PairSet, sr *domain.SplitResult) (*domain.ValidationResult, error) {
	if sr == nil {
		return nil, apperrors.NewConfigurationError("split validation needs a split result", nil)
	}

	train := pairs.Features.SliceRows(sr.Train.Start, sr.Train.End)
	if err := adapter.Fit(ctx, train.Matrix(), pairs.Target[sr.Train.Start:sr.Train.End]); err != nil {
		return nil, apperrors.NewModelAdapterError(adapter.ID(), "fit", err)
	}

	test := pairs.Features.SliceRows(sr.Test.Start, sr.Test.End)
	predicted, err := adapter.Predict(ctx, test.Matrix())
	if err != nil {
		return nil, apperrors.NewModelAdapterError(adapter.ID(), "predict", err)
	}

	actual := pairs.Target[sr.Test.Start:sr.Test.End]
	reference := pairs.Reference[sr.Test.Start:sr.Test.End]
	return v.score(adapter.ID(), pairs, actual, reference, predicted)
}

// WalkForwardValidate runs the expanding-window pass: every fold retrains
// on all rows before the evaluation point and predicts exactly that
// point. One result aggregates all fold predictions.
func (v *ForecastingValidator) WalkForwardValidate(ctx context.Context, adapter domain.ModelAdapter, pairs *PairSet) (*domain.ValidationResult, error) {
	wf, err := NewWalkForward(pairs.Len(), v.cfg.MinTrainSize, v.cfg.Step, v.cfg.Gap)
	if err != nil {
		return nil, err
	}

	folds := wf.Folds()
	actual := make([]float64, 0, len(folds))
	reference := make([]float64, 0, len(folds))
	predicted := make([]float64, 0, len(folds))

	start := time.Now()
	for _, fold := range folds {
		train := pairs.Features.SliceRows(0, fold.TrainEnd)
		if err := adapter.Fit(ctx, train.Matrix(), pairs.Target[:fold.TrainEnd]); err != nil {
			return nil, apperrors.NewModelAdapterError(adapter.ID(), "fit", err)
		}

		eval := pairs.Features.SliceRows(fold.EvalIndex, fold.EvalIndex+1)
		p, err := adapter.Predict(ctx, eval.Matrix())
		if err != nil {
			return nil, apperrors.NewModelAdapterError(adapter.ID(), "predict", err)
		}
		if len(p) != 1 {
			return nil, apperrors.NewModelAdapterError(adapter.ID(), "predict",
				fmt.Errorf("expected 1 prediction, got %d", len(p)))
		}

		actual = append(actual, pairs.Target[fold.EvalIndex])
		reference = append(reference, pairs.Reference[fold.EvalIndex])
		predicted = append(predicted, p[0])
	}

	v.logger.DebugContext(ctx, "walk-forward pass complete",
		"model", adapter.ID(),
		"city", pairs.City,
		"horizon_hours", pairs.Horizon,
		"folds", len(folds),
		"duration", time.Since(start),
	)

	return v.score(adapter.ID(), pairs, actual, reference, predicted)
}

// score assembles the forecast metrics: holdout measures plus
// directional accuracy and the skill against persistence.
func (v *ForecastingValidator) score(modelID string, pairs *PairSet, actual, reference, predicted []float64) (*domain.ValidationResult, error) {
	metrics, err := Evaluate(actual, predicted)
	if err != nil {
		return nil, err
	}
	metrics.DirectionalAccuracy = directionalAccuracy(reference, actual, predicted)
	metrics.SkillScore = skillScore(metrics.RMSE, rmseOf(actual, reference))

	return &domain.ValidationResult{
		ModelID:      modelID,
		City:         pairs.City,
		HorizonHours: pairs.Horizon,
		Metrics:      metrics,
	}, nil
}
