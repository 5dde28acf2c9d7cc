package validation

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "aqicli/internal/errors"
	"aqicli/internal/split"
	"aqicli/pkg/contracts/domain"
)

// CityDataset pairs a cleaned city series with its engineered features.
// It is the unit of input for holdout, transfer and forecasting passes.
type CityDataset struct {
	City   string
	Series *domain.Series
	Table  *domain.FeatureTable
	// Target is the current-hour AQI per row, the nowcast label.
	Target []float64
}

// NewCityDataset builds the per-city validation input. Table rows must
// align one-to-one with the series rows.
func NewCityDataset(s *domain.Series, table *domain.FeatureTable) (*CityDataset, error) {
	if s == nil || s.IsEmpty() {
		return nil, apperrors.NewDataQualityError("city dataset needs a non-empty series", nil)
	}
	if table == nil || table.NumRows() != s.Len() {
		return nil, apperrors.NewDataQualityError(
			fmt.Sprintf("feature table rows do not match series rows for city %s", s.City), nil)
	}
	return &CityDataset{
		City:   s.City,
		Series: s,
		Table:  table,
		Target: s.Column(domain.ParamAQI),
	}, nil
}

// MultiCityConfig holds the per-city partition and stratification rules.
type MultiCityConfig struct {
	// TrainRatio, ValidationRatio and TestRatio partition each city's
	// rows chronologically.
	TrainRatio      float64
	ValidationRatio float64
	TestRatio       float64
	// Bands stratify test-segment errors by observed AQI severity.
	Bands []domain.AQIBand
}

// DefaultMultiCityConfig returns the standard 70/15/15 partition with
// the EPA severity bands.
func DefaultMultiCityConfig() MultiCityConfig {
	return MultiCityConfig{
		TrainRatio:      0.70,
		ValidationRatio: 0.15,
		TestRatio:       0.15,
		Bands:           domain.DefaultAQIBands(),
	}
}

// Validate checks ratio and band settings.
func (c MultiCityConfig) Validate() error {
	if err := split.ValidateRatios(c.TrainRatio, c.ValidationRatio, c.TestRatio); err != nil {
		return err
	}
	if len(c.Bands) == 0 {
		return apperrors.NewConfigurationError("at least one AQI band is required for stratification", nil)
	}
	return nil
}

// MultiCityValidator scores models on same-city holdouts and cross-city
// transfers.
type MultiCityValidator struct {
	cfg      MultiCityConfig
	splitter *split.Splitter
	logger   *slog.Logger
}

// NewMultiCityValidator creates a multi-city validator.
func NewMultiCityValidator(cfg MultiCityConfig, logger *slog.Logger) (*MultiCityValidator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiCityValidator{cfg: cfg, splitter: split.NewSplitter(logger), logger: logger}, nil
}

// Config returns the validator's configuration.
func (m *MultiCityValidator) Config() MultiCityConfig {
	return m.cfg
}

// HoldoutOutcome bundles a scored holdout unit with the artifacts later
// stages reuse: the fitted adapter for transfer scoring and the raw test
// predictions for band stratification.
type HoldoutOutcome struct {
	Result  *domain.ValidationResult
	Split   *domain.SplitResult
	Adapter domain.ModelAdapter
	// Predictions aligns with the test segment rows.
	Predictions []float64
}

// ValidateHoldout fits the adapter on the chronological train segment of
// one city and scores the held-out test segment. The result carries
// horizon zero: it measures reconstruction of the current hour, not a
// forecast.
func (m *MultiCityValidator) ValidateHoldout(ctx context.Context, adapter domain.ModelAdapter, ds *CityDataset) (*HoldoutOutcome, error) {
	sr, err := m.splitter.SplitTable(ctx, ds.Table, m.cfg.TrainRatio, m.cfg.ValidationRatio, m.cfg.TestRatio)
	if err != nil {
		return nil, err
	}

	train := ds.Table.SliceRows(sr.Train.Start, sr.Train.End)
	if err := adapter.Fit(ctx, train.Matrix(), ds.Target[sr.Train.Start:sr.Train.End]); err != nil {
		return nil, apperrors.NewModelAdapterError(adapter.ID(), "fit", err)
	}

	test := ds.Table.SliceRows(sr.Test.Start, sr.Test.End)
	predicted, err := adapter.Predict(ctx, test.Matrix())
	if err != nil {
		return nil, apperrors.NewModelAdapterError(adapter.ID(), "predict", err)
	}

	metrics, err := Evaluate(ds.Target[sr.Test.Start:sr.Test.End], predicted)
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "holdout validation complete",
		"model", adapter.ID(),
		"city", ds.City,
		"train_rows", sr.Train.Len(),
		"test_rows", sr.Test.Len(),
		"r2", metrics.R2,
		"rmse", metrics.RMSE,
	)

	return &HoldoutOutcome{
		Result: &domain.ValidationResult{
			ModelID:      adapter.ID(),
			City:         ds.City,
			HorizonHours: 0,
			Metrics:      metrics,
		},
		Split:       sr,
		Adapter:     adapter,
		Predictions: predicted,
	}, nil
}

// StratifyByBand partitions the outcome's test rows by observed AQI band
// and reports per-band error. Bands with no test rows are omitted.
func (m *MultiCityValidator) StratifyByBand(ctx context.Context, ds *CityDataset, outcome *HoldoutOutcome) ([]domain.BandMetrics, error) {
	seg := outcome.Split.Test
	actual := ds.Target[seg.Start:seg.End]
	if len(actual) != len(outcome.Predictions) {
		return nil, apperrors.NewDataQualityError(
			fmt.Sprintf("%d predictions do not cover %d test rows", len(outcome.Predictions), len(actual)), nil)
	}

	byBand := make(map[string][]int, len(m.cfg.Bands))
	for i, a := range actual {
		if !isFinite(a) {
			continue
		}
		band, ok := domain.BandFor(m.cfg.Bands, a)
		if !ok {
			continue
		}
		byBand[band.Name] = append(byBand[band.Name], i)
	}

	out := make([]domain.BandMetrics, 0, len(m.cfg.Bands))
	for _, band := range m.cfg.Bands {
		idx := byBand[band.Name]
		if len(idx) == 0 {
			continue
		}
		a := pick(actual, idx)
		p := pick(outcome.Predictions, idx)
		out = append(out, domain.BandMetrics{
			Band: band,
			Rows: len(idx),
			RMSE: rmseOf(a, p),
			MAE:  maeOf(a, p),
		})
	}

	m.logger.DebugContext(ctx, "stratified test errors by band",
		"model", outcome.Result.ModelID,
		"city", ds.City,
		"bands", len(out),
	)
	return out, nil
}

// EvaluateTransfer scores an adapter fitted on one city against the
// whole of another. Degradation is the target city's own holdout R2
// minus the transfer R2; a large positive value means the model does
// not travel.
func (m *MultiCityValidator) EvaluateTransfer(ctx context.Context, outcome *HoldoutOutcome, to *CityDataset, toSameCityR2 float64) (*domain.TransferResult, error) {
	if outcome.Result.City == to.City {
		return nil, apperrors.NewConfigurationError(
			fmt.Sprintf("transfer requires distinct cities, got %s twice", to.City), nil)
	}

	predicted, err := outcome.Adapter.Predict(ctx, to.Table.Matrix())
	if err != nil {
		return nil, apperrors.NewModelAdapterError(outcome.Result.ModelID, "predict", err)
	}
	metrics, err := Evaluate(to.Target, predicted)
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "transfer evaluation complete",
		"model", outcome.Result.ModelID,
		"from_city", outcome.Result.City,
		"to_city", to.City,
		"transfer_r2", metrics.R2,
		"same_city_r2", toSameCityR2,
	)

	return &domain.TransferResult{
		ModelID:     outcome.Result.ModelID,
		FromCity:    outcome.Result.City,
		ToCity:      to.City,
		Metrics:     metrics,
		SameCityR2:  toSameCityR2,
		Degradation: toSameCityR2 - metrics.R2,
	}, nil
}
