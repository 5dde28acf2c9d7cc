package validation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	apperrors "aqicli/internal/errors"
	"aqicli/internal/infrastructure"
	"aqicli/pkg/contracts/domain"
)

// ModelSpec names a model and builds a fresh adapter per unit. Sweep
// units run concurrently, so adapters are never shared between them.
type ModelSpec struct {
	ID  string
	New func() domain.ModelAdapter
	// ForecastOnly keeps the model out of the holdout, stratified and
	// transfer phases. Set it for adapters that read the reference
	// columns a pair matrix appends, which plain feature tables lack.
	ForecastOnly bool
}

// RunnerConfig holds the sweep shape and throttling.
type RunnerConfig struct {
	// Horizons lists the forecast lead times in hours.
	Horizons []int
	// MaxConcurrency bounds the number of units in flight.
	MaxConcurrency int
	// AdapterRateLimit caps adapter fit/predict calls per second
	// across the whole sweep. Zero means unlimited.
	AdapterRateLimit float64
}

// DefaultRunnerConfig returns the standard sweep shape.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Horizons:       []int{1, 6, 12, 24, 48},
		MaxConcurrency: 4,
	}
}

// Validate rejects sweep shapes that cannot run.
func (c RunnerConfig) Validate() error {
	if len(c.Horizons) == 0 {
		return apperrors.NewConfigurationError("at least one forecast horizon is required", nil)
	}
	seen := make(map[int]bool, len(c.Horizons))
	for _, h := range c.Horizons {
		if h < 1 {
			return apperrors.NewConfigurationError(
				fmt.Sprintf("forecast horizons must be at least 1 hour, got %d", h), nil)
		}
		if seen[h] {
			return apperrors.NewConfigurationError(
				fmt.Sprintf("duplicate forecast horizon %d", h), nil)
		}
		seen[h] = true
	}
	if c.MaxConcurrency < 1 {
		return apperrors.NewConfigurationError(
			fmt.Sprintf("max concurrency must be at least 1, got %d", c.MaxConcurrency), nil)
	}
	if c.AdapterRateLimit < 0 {
		return apperrors.NewConfigurationError(
			fmt.Sprintf("adapter rate limit must not be negative, got %.2f", c.AdapterRateLimit), nil)
	}
	return nil
}

// Runner drives the full validation sweep: holdout, stratification and
// transfer per (model, city), then walk-forward forecasting per
// (model, city, horizon). Units run concurrently under a bounded pool;
// a unit failure is recorded on its result and never aborts siblings.
// Cancellation is honoured between units, never inside one.
type Runner struct {
	cfg       RunnerConfig
	multicity *MultiCityValidator
	forecast  *ForecastingValidator
	limiter   *rate.Limiter
	metrics   *infrastructure.PipelineMetrics
	logger    *slog.Logger
}

// NewRunner creates a sweep runner. Metrics may be nil.
func NewRunner(cfg RunnerConfig, multicity *MultiCityValidator, forecast *ForecastingValidator, metrics *infrastructure.PipelineMetrics, logger *slog.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if multicity == nil || forecast == nil {
		return nil, apperrors.NewConfigurationError("runner needs both validators", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.AdapterRateLimit > 0 {
		burst := int(cfg.AdapterRateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.AdapterRateLimit), burst)
	}

	return &Runner{
		cfg:       cfg,
		multicity: multicity,
		forecast:  forecast,
		limiter:   limiter,
		metrics:   metrics,
		logger:    logger,
	}, nil
}

// Config returns the runner's configuration.
func (r *Runner) Config() RunnerConfig {
	return r.cfg
}

// SweepResult aggregates every unit of one sweep. Slices follow the
// input order of cities, models and horizons, so repeated sweeps over
// the same inputs produce identically ordered output.
type SweepResult struct {
	Holdout   []domain.ValidationResult
	Forecast  []domain.ValidationResult
	Transfers []domain.TransferResult
	// Stratified keys per-band test errors by "model/city".
	Stratified  map[string][]domain.BandMetrics
	UnitsTotal  int
	UnitsFailed int
}

// StratifiedKey builds the map key used by SweepResult.Stratified.
func StratifiedKey(modelID, city string) string {
	return modelID + "/" + city
}

// limitedAdapter throttles and measures every adapter call. It is the
// single seam between the sweep and third-party model code.
type limitedAdapter struct {
	inner   domain.ModelAdapter
	limiter *rate.Limiter
	metrics *infrastructure.PipelineMetrics
}

func (a *limitedAdapter) ID() string {
	return a.inner.ID()
}

func (a *limitedAdapter) Fit(ctx context.Context, features [][]float64, target []float64) error {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	start := time.Now()
	err := a.inner.Fit(ctx, features, target)
	infrastructure.RecordAdapterCall(ctx, a.metrics, a.inner.ID(), "fit", time.Since(start), err)
	return err
}

func (a *limitedAdapter) Predict(ctx context.Context, features [][]float64) ([]float64, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	start := time.Now()
	out, err := a.inner.Predict(ctx, features)
	infrastructure.RecordAdapterCall(ctx, a.metrics, a.inner.ID(), "predict", time.Since(start), err)
	return out, err
}

func (r *Runner) wrap(inner domain.ModelAdapter) domain.ModelAdapter {
	if r.limiter == nil && r.metrics == nil {
		return inner
	}
	return &limitedAdapter{inner: inner, limiter: r.limiter, metrics: r.metrics}
}

func failedResult(modelID, city string, horizon int, err error) domain.ValidationResult {
	return domain.ValidationResult{
		ModelID:      modelID,
		City:         city,
		HorizonHours: horizon,
		Metrics:      domain.NewMetrics(),
		Err:          err.Error(),
	}
}

// Sweep runs every validation unit over the given cities and models.
// It returns an error only when the context is cancelled or the inputs
// are unusable; unit-level failures are recorded on their results.
func (r *Runner) Sweep(ctx context.Context, datasets []*CityDataset, models []ModelSpec) (*SweepResult, error) {
	if len(datasets) == 0 {
		return nil, apperrors.NewDataQualityError("sweep needs at least one city dataset", nil)
	}
	if len(models) == 0 {
		return nil, apperrors.NewConfigurationError("sweep needs at least one model", nil)
	}
	seen := make(map[string]bool, len(datasets))
	for _, ds := range datasets {
		if seen[ds.City] {
			return nil, apperrors.NewConfigurationError(
				fmt.Sprintf("duplicate city %q in sweep input", ds.City), nil)
		}
		seen[ds.City] = true
	}

	start := time.Now()
	r.logger.InfoContext(ctx, "starting validation sweep",
		"cities", len(datasets),
		"models", len(models),
		"horizons", fmt.Sprint(r.cfg.Horizons),
		"max_concurrency", r.cfg.MaxConcurrency,
	)

	result := &SweepResult{
		Stratified: make(map[string][]domain.BandMetrics),
	}

	outcomes, err := r.runHoldoutPhase(ctx, datasets, models, result)
	if err != nil {
		return nil, err
	}
	r.runStratifiedPhase(ctx, datasets, models, outcomes, result)
	r.runTransferPhase(ctx, datasets, models, outcomes, result)
	if err := r.runForecastPhase(ctx, datasets, models, result); err != nil {
		return nil, err
	}

	for _, model := range models {
		if model.ForecastOnly {
			result.UnitsTotal += len(datasets) * len(r.cfg.Horizons)
		} else {
			result.UnitsTotal += len(datasets) * (1 + len(r.cfg.Horizons))
		}
	}
	for i := range result.Holdout {
		if result.Holdout[i].Failed() {
			result.UnitsFailed++
		}
	}
	for i := range result.Forecast {
		if result.Forecast[i].Failed() {
			result.UnitsFailed++
		}
	}

	r.logger.InfoContext(ctx, "validation sweep complete",
		"units_total", result.UnitsTotal,
		"units_failed", result.UnitsFailed,
		"transfers", len(result.Transfers),
		"duration", time.Since(start),
	)
	return result, nil
}

// runHoldoutPhase scores every (model, city) holdout concurrently and
// keeps the successful outcomes for the stratified and transfer phases.
// Forecast-only models are skipped and leave no holdout rows.
func (r *Runner) runHoldoutPhase(ctx context.Context, datasets []*CityDataset, models []ModelSpec, result *SweepResult) ([][]*HoldoutOutcome, error) {
	outcomes := make([][]*HoldoutOutcome, len(models))
	for mi := range outcomes {
		outcomes[mi] = make([]*HoldoutOutcome, len(datasets))
	}

	rowBase := make([]int, len(models))
	participating := 0
	for mi, model := range models {
		if model.ForecastOnly {
			rowBase[mi] = -1
			continue
		}
		rowBase[mi] = participating * len(datasets)
		participating++
	}
	result.Holdout = make([]domain.ValidationResult, participating*len(datasets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxConcurrency)
	for mi, model := range models {
		if rowBase[mi] < 0 {
			continue
		}
		for ci, ds := range datasets {
			mi, ci, model, ds := mi, ci, model, ds
			idx := rowBase[mi] + ci
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				infrastructure.RecordActiveUnitChange(gctx, r.metrics, 1, model.ID)
				defer infrastructure.RecordActiveUnitChange(gctx, r.metrics, -1, model.ID)

				unitStart := time.Now()
				outcome, err := r.multicity.ValidateHoldout(gctx, r.wrap(model.New()), ds)
				infrastructure.RecordUnitMetrics(gctx, r.metrics, model.ID, ds.City, 0, time.Since(unitStart), err)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					r.logger.WarnContext(gctx, "holdout unit failed",
						"model", model.ID, "city", ds.City, "error", err)
					result.Holdout[idx] = failedResult(model.ID, ds.City, 0, err)
					return nil
				}
				result.Holdout[idx] = *outcome.Result
				outcomes[mi][ci] = outcome
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// runStratifiedPhase breaks each successful holdout down by AQI band.
func (r *Runner) runStratifiedPhase(ctx context.Context, datasets []*CityDataset, models []ModelSpec, outcomes [][]*HoldoutOutcome, result *SweepResult) {
	for mi, model := range models {
		for ci, ds := range datasets {
			outcome := outcomes[mi][ci]
			if outcome == nil {
				continue
			}
			bands, err := r.multicity.StratifyByBand(ctx, ds, outcome)
			if err != nil {
				r.logger.WarnContext(ctx, "band stratification failed",
					"model", model.ID, "city", ds.City, "error", err)
				continue
			}
			result.Stratified[StratifiedKey(model.ID, ds.City)] = bands
		}
	}
}

// runTransferPhase scores every ordered pair of distinct cities with the
// adapters fitted during the holdout phase. Fitted adapters are reused,
// so this phase runs sequentially rather than sharing them across
// goroutines.
func (r *Runner) runTransferPhase(ctx context.Context, datasets []*CityDataset, models []ModelSpec, outcomes [][]*HoldoutOutcome, result *SweepResult) {
	result.Transfers = make([]domain.TransferResult, 0, len(models)*len(datasets)*(len(datasets)-1))
	for mi, model := range models {
		for ci := range datasets {
			from := outcomes[mi][ci]
			if from == nil {
				continue
			}
			for cj, to := range datasets {
				if cj == ci {
					continue
				}
				sameCityR2 := math.NaN()
				if sibling := outcomes[mi][cj]; sibling != nil {
					sameCityR2 = sibling.Result.Metrics.R2
				}
				tr, err := r.multicity.EvaluateTransfer(ctx, from, to, sameCityR2)
				if err != nil {
					r.logger.WarnContext(ctx, "transfer evaluation failed",
						"model", model.ID, "from_city", from.Result.City, "to_city", to.City, "error", err)
					continue
				}
				result.Transfers = append(result.Transfers, *tr)
			}
		}
	}
}

// runForecastPhase builds pairs once per (city, horizon) and walks every
// (model, city, horizon) unit forward concurrently.
func (r *Runner) runForecastPhase(ctx context.Context, datasets []*CityDataset, models []ModelSpec, result *SweepResult) error {
	type pairCell struct {
		pairs *PairSet
		err   error
	}
	cells := make([][]pairCell, len(datasets))
	for ci, ds := range datasets {
		cells[ci] = make([]pairCell, len(r.cfg.Horizons))
		for hi, h := range r.cfg.Horizons {
			p, err := r.forecast.BuildPairs(ctx, ds, h)
			cells[ci][hi] = pairCell{pairs: p, err: err}
		}
	}

	result.Forecast = make([]domain.ValidationResult, len(datasets)*len(models)*len(r.cfg.Horizons))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxConcurrency)
	for ci, ds := range datasets {
		for mi, model := range models {
			for hi, h := range r.cfg.Horizons {
				model, ds, h := model, ds, h
				idx := (ci*len(models)+mi)*len(r.cfg.Horizons) + hi
				cell := cells[ci][hi]
				g.Go(func() error {
					if err := gctx.Err(); err != nil {
						return err
					}
					if cell.err != nil {
						result.Forecast[idx] = failedResult(model.ID, ds.City, h, cell.err)
						return nil
					}
					infrastructure.RecordActiveUnitChange(gctx, r.metrics, 1, model.ID)
					defer infrastructure.RecordActiveUnitChange(gctx, r.metrics, -1, model.ID)

					unitStart := time.Now()
					res, err := r.forecast.WalkForwardValidate(gctx, r.wrap(model.New()), cell.pairs)
					infrastructure.RecordUnitMetrics(gctx, r.metrics, model.ID, ds.City, h, time.Since(unitStart), err)
					if err != nil {
						if gctx.Err() != nil {
							return gctx.Err()
						}
						r.logger.WarnContext(gctx, "forecast unit failed",
							"model", model.ID, "city", ds.City, "horizon_hours", h, "error", err)
						result.Forecast[idx] = failedResult(model.ID, ds.City, h, err)
						return nil
					}
					result.Forecast[idx] = *res
					return nil
				})
			}
		}
	}
	return g.Wait()
}
