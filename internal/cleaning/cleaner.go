package cleaning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "aqicli/internal/errors"
	"aqicli/pkg/contracts/domain"
)

// Config holds every knob of the cleaning pipeline. It is caller-owned
// and passed per Cleaner, never process-wide.
type Config struct {
	ImputationMethod domain.ImputationMethod
	OutlierMethod    domain.OutlierMethod
	OutlierAction    domain.OutlierAction

	// Detection thresholds.
	ZScoreThreshold float64
	IQRMultiplier   float64
	DomainBounds    map[domain.Parameter]domain.Bounds

	// Cap action percentile band.
	CapLowerPercentile float64
	CapUpperPercentile float64

	// Hybrid imputation stage limits.
	ForwardFillLimit  int
	BackwardFillLimit int
	RollingFillWindow int

	// Temporal anomaly detection.
	AnomalyWindow    int
	AnomalyFlagSigma float64
	AnomalyHighSigma float64

	// Cross-source consistency thresholds.
	CVThreshold            float64
	AQIDifferenceThreshold float64

	// RegularizeGrid inserts all-missing rows on hourly gaps before
	// imputation so index offsets equal hour offsets.
	RegularizeGrid bool
}

// DefaultConfig returns the standard pipeline configuration.
func DefaultConfig() Config {
	return Config{
		ImputationMethod:       domain.ImputeHybrid,
		OutlierMethod:          domain.OutlierCombined,
		OutlierAction:          domain.ActionCap,
		ZScoreThreshold:        3.0,
		IQRMultiplier:          1.5,
		DomainBounds:           DefaultDomainBounds(),
		CapLowerPercentile:     0.05,
		CapUpperPercentile:     0.95,
		ForwardFillLimit:       3,
		BackwardFillLimit:      3,
		RollingFillWindow:      6,
		AnomalyWindow:          24,
		AnomalyFlagSigma:       3.0,
		AnomalyHighSigma:       5.0,
		CVThreshold:            0.30,
		AQIDifferenceThreshold: 50,
		RegularizeGrid:         true,
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if !c.ImputationMethod.IsValid() {
		return apperrors.NewConfigurationError(fmt.Sprintf("unknown imputation method %q", c.ImputationMethod), nil)
	}
	if !c.OutlierMethod.IsValid() {
		return apperrors.NewConfigurationError(fmt.Sprintf("unknown outlier method %q", c.OutlierMethod), nil)
	}
	if !c.OutlierAction.IsValid() {
		return apperrors.NewConfigurationError(fmt.Sprintf("unknown outlier action %q", c.OutlierAction), nil)
	}
	if c.ZScoreThreshold <= 0 {
		return apperrors.NewConfigurationError("z-score threshold must be positive", nil)
	}
	if c.IQRMultiplier <= 0 {
		return apperrors.NewConfigurationError("IQR multiplier must be positive", nil)
	}
	if c.CapLowerPercentile < 0 || c.CapUpperPercentile > 1 || c.CapLowerPercentile >= c.CapUpperPercentile {
		return apperrors.NewConfigurationError(
			fmt.Sprintf("cap percentiles must satisfy 0 <= lower < upper <= 1, got [%.2f, %.2f]",
				c.CapLowerPercentile, c.CapUpperPercentile), nil)
	}
	if c.AnomalyWindow < minAnomalyWindow {
		return apperrors.NewConfigurationError(
			fmt.Sprintf("anomaly window must be at least %d, got %d", minAnomalyWindow, c.AnomalyWindow), nil)
	}
	if c.AnomalyFlagSigma <= 0 || c.AnomalyHighSigma < c.AnomalyFlagSigma {
		return apperrors.NewConfigurationError("anomaly sigma thresholds must satisfy 0 < flag <= high", nil)
	}
	if c.CVThreshold <= 0 || c.AQIDifferenceThreshold <= 0 {
		return apperrors.NewConfigurationError("consistency thresholds must be positive", nil)
	}
	return nil
}

// Cleaner orchestrates the data-quality pipeline for hourly series.
type Cleaner struct {
	cfg    Config
	logger *slog.Logger
}

// NewCleaner creates a cleaner with the given configuration.
func NewCleaner(cfg Config, logger *slog.Logger) (*Cleaner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{cfg: cfg, logger: logger}, nil
}

// Config returns the cleaner's configuration.
func (c *Cleaner) Config() Config {
	return c.cfg
}

func newEmptyInputError(msg string) error {
	return apperrors.NewDataQualityError(msg, nil)
}

func validateSeries(s *domain.Series) error {
	if s == nil || s.IsEmpty() {
		return newEmptyInputError("empty series")
	}
	if err := s.Validate(); err != nil {
		return apperrors.NewDataQualityError("invalid series", err)
	}
	return nil
}

// ImputeMissing fills missing values in every measurement column using
// the given method and returns the total fill count plus a per-parameter
// breakdown.
func (c *Cleaner) ImputeMissing(ctx context.Context, s *domain.Series, method domain.ImputationMethod) (int, map[domain.Parameter]int, error) {
	if err := validateSeries(s); err != nil {
		return 0, nil, err
	}
	impute, ok := imputers[method]
	if !ok {
		return 0, nil, apperrors.NewConfigurationError(fmt.Sprintf("unknown imputation method %q", method), nil)
	}

	total := 0
	byParam := make(map[domain.Parameter]int)
	for _, p := range domain.Parameters() {
		values := s.Column(p)
		filled := impute(values, c.cfg)
		if filled > 0 {
			if err := s.SetColumn(p, values); err != nil {
				return total, byParam, err
			}
			byParam[p] = filled
			total += filled
		}
	}

	c.logger.DebugContext(ctx, "imputation complete",
		"city", s.City,
		"method", string(method),
		"imputed", total,
	)

	return total, byParam, nil
}

// DetectOutliers computes the outlier mask for every measurement column
// without modifying the series.
func (c *Cleaner) DetectOutliers(ctx context.Context, s *domain.Series, method domain.OutlierMethod) (OutlierMask, error) {
	if err := validateSeries(s); err != nil {
		return nil, err
	}

	mask := make(OutlierMask)
	switch method {
	case domain.OutlierZScore:
		for _, p := range domain.Parameters() {
			mask[p] = zscoreMask(s.Column(p), c.cfg.ZScoreThreshold)
		}
	case domain.OutlierIQR:
		for _, p := range domain.Parameters() {
			mask[p] = iqrMask(s.Column(p), c.cfg.IQRMultiplier)
		}
	case domain.OutlierDomain:
		for _, p := range domain.Parameters() {
			bounds, ok := c.cfg.DomainBounds[p]
			if !ok {
				mask[p] = make([]bool, s.Len())
				continue
			}
			mask[p] = boundsMask(s.Column(p), bounds)
		}
	case domain.OutlierCombined:
		// Union: any single method's flag triggers.
		for _, m := range []domain.OutlierMethod{domain.OutlierZScore, domain.OutlierIQR, domain.OutlierDomain} {
			sub, err := c.DetectOutliers(ctx, s, m)
			if err != nil {
				return nil, err
			}
			mask.merge(sub)
		}
	default:
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("unknown outlier method %q", method), nil)
	}

	return mask, nil
}

// HandleOutliers applies the given action to every value the mask flags.
// The flag action records indices without touching values; the returned
// map is nil for every other action. Row count is preserved by all
// actions.
func (c *Cleaner) HandleOutliers(ctx context.Context, s *domain.Series, mask OutlierMask, action domain.OutlierAction) (int, map[domain.Parameter][]int, error) {
	if err := validateSeries(s); err != nil {
		return 0, nil, err
	}

	handled := 0
	var flagged map[domain.Parameter][]int

	for _, p := range domain.Parameters() {
		flags, ok := mask[p]
		if !ok || len(flags) != s.Len() {
			continue
		}

		switch action {
		case domain.ActionCap:
			values := s.Column(p)
			n := capColumn(values, flags, c.cfg.CapLowerPercentile, c.cfg.CapUpperPercentile)
			if n > 0 {
				if err := s.SetColumn(p, values); err != nil {
					return handled, flagged, err
				}
				handled += n
			}
		case domain.ActionRemove:
			values := s.Column(p)
			n := removeColumn(values, flags)
			if n > 0 {
				if err := s.SetColumn(p, values); err != nil {
					return handled, flagged, err
				}
				handled += n
			}
		case domain.ActionInterpolate:
			values := s.Column(p)
			n := interpolateColumn(values, flags)
			if n > 0 {
				if err := s.SetColumn(p, values); err != nil {
					return handled, flagged, err
				}
				handled += n
			}
		case domain.ActionFlag:
			idx := mask.Indices(p)
			if len(idx) > 0 {
				if flagged == nil {
					flagged = make(map[domain.Parameter][]int)
				}
				flagged[p] = idx
				handled += len(idx)
			}
		default:
			return 0, nil, apperrors.NewConfigurationError(fmt.Sprintf("unknown outlier action %q", action), nil)
		}
	}

	c.logger.DebugContext(ctx, "outliers handled",
		"city", s.City,
		"action", string(action),
		"handled", handled,
	)

	return handled, flagged, nil
}

// ValidatePhysicalConstraints corrects physically impossible values in
// place and returns the number of corrections.
func (c *Cleaner) ValidatePhysicalConstraints(ctx context.Context, s *domain.Series) (int, error) {
	if err := validateSeries(s); err != nil {
		return 0, err
	}

	violations := enforceConstraints(s)
	if violations > 0 {
		c.logger.InfoContext(ctx, "physical constraint violations corrected",
			"city", s.City,
			"violations", violations,
		)
	}
	return violations, nil
}

// DetectTemporalAnomalies flags values far outside their rolling
// statistics. The series is not modified; anomalies are reported for
// review, not auto-corrected.
func (c *Cleaner) DetectTemporalAnomalies(ctx context.Context, s *domain.Series) ([]domain.TemporalAnomaly, error) {
	if err := validateSeries(s); err != nil {
		return nil, err
	}

	anomalies := detectTemporalAnomalies(s, c.cfg.AnomalyWindow, c.cfg.AnomalyFlagSigma, c.cfg.AnomalyHighSigma)
	if len(anomalies) > 0 {
		c.logger.InfoContext(ctx, "temporal anomalies detected",
			"city", s.City,
			"count", len(anomalies),
		)
	}
	return anomalies, nil
}

// QualityScore measures completeness and pm25/pm10 ordering consistency.
func (c *Cleaner) QualityScore(s *domain.Series) domain.QualitySnapshot {
	return snapshotQuality(s)
}

// Regularize rebuilds the hourly grid in place and returns the number of
// all-missing rows inserted.
func (c *Cleaner) Regularize(ctx context.Context, s *domain.Series) (int, error) {
	if err := validateSeries(s); err != nil {
		return 0, err
	}

	inserted := regularize(s)
	if inserted > 0 {
		c.logger.InfoContext(ctx, "hourly grid regularized",
			"city", s.City,
			"rows_inserted", inserted,
		)
	}
	return inserted, nil
}

// Clean runs the comprehensive pipeline on a single-source series:
// quality snapshot, imputation, outlier detection and handling,
// constraint validation, anomaly detection, quality snapshot. The stage
// order is fixed; see the package documentation for why.
func (c *Cleaner) Clean(ctx context.Context, s *domain.Series) (*domain.CleaningReport, error) {
	start := time.Now()

	if err := validateSeries(s); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "starting cleaning pipeline",
		"city", s.City,
		"rows", s.Len(),
		"imputation_method", string(c.cfg.ImputationMethod),
		"outlier_method", string(c.cfg.OutlierMethod),
		"outlier_action", string(c.cfg.OutlierAction),
	)

	report := &domain.CleaningReport{City: s.City}

	if c.cfg.RegularizeGrid {
		inserted, err := c.Regularize(ctx, s)
		if err != nil {
			return nil, err
		}
		report.RegularizedRows = inserted
	}
	report.Rows = s.Len()
	report.Before = snapshotQuality(s)

	imputed, byParam, err := c.ImputeMissing(ctx, s, c.cfg.ImputationMethod)
	if err != nil {
		return nil, fmt.Errorf("impute missing: %w", err)
	}
	report.ImputedCount = imputed
	report.ImputedByParameter = byParam

	mask := make(OutlierMask)
	byMethod := make(map[domain.OutlierMethod]int)
	if c.cfg.OutlierMethod == domain.OutlierCombined {
		for _, m := range []domain.OutlierMethod{domain.OutlierZScore, domain.OutlierIQR, domain.OutlierDomain} {
			sub, err := c.DetectOutliers(ctx, s, m)
			if err != nil {
				return nil, fmt.Errorf("detect outliers: %w", err)
			}
			byMethod[m] = sub.Count()
			mask.merge(sub)
		}
		byMethod[domain.OutlierCombined] = mask.Count()
	} else {
		detected, err := c.DetectOutliers(ctx, s, c.cfg.OutlierMethod)
		if err != nil {
			return nil, fmt.Errorf("detect outliers: %w", err)
		}
		mask = detected
		byMethod[c.cfg.OutlierMethod] = mask.Count()
	}
	report.OutliersByMethod = byMethod

	handled, flagged, err := c.HandleOutliers(ctx, s, mask, c.cfg.OutlierAction)
	if err != nil {
		return nil, fmt.Errorf("handle outliers: %w", err)
	}
	report.OutliersHandled = handled
	report.FlaggedOutliers = flagged

	violations, err := c.ValidatePhysicalConstraints(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("validate constraints: %w", err)
	}
	report.ConstraintViolationsFixed = violations

	anomalies, err := c.DetectTemporalAnomalies(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("detect anomalies: %w", err)
	}
	report.Anomalies = anomalies

	report.After = snapshotQuality(s)
	report.CompletenessScore = report.After.Completeness
	report.ConsistencyScore = report.After.Consistency

	c.logger.InfoContext(ctx, "cleaning pipeline completed",
		"city", s.City,
		"duration", time.Since(start),
		"rows", report.Rows,
		"imputed", report.ImputedCount,
		"outliers_handled", report.OutliersHandled,
		"constraint_violations_fixed", report.ConstraintViolationsFixed,
		"anomalies", len(report.Anomalies),
		"completeness", report.After.Completeness,
	)

	return report, nil
}

// CleanObservations runs the full pipeline on raw multi-provider rows
// for one city: consistency scoring over the original source groups,
// consolidation into one row per timestamp, then the single-series
// pipeline. Malformed rows are dropped with a count, never an error.
func (c *Cleaner) CleanObservations(ctx context.Context, city string, observations []domain.Observation) (*domain.Series, *domain.CleaningReport, *domain.ConsistencyReport, error) {
	if len(observations) == 0 {
		return nil, nil, nil, newEmptyInputError(fmt.Sprintf("no observations for city %s", city))
	}

	consistency, err := c.CrossSourceConsistency(ctx, observations)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("cross-source consistency: %w", err)
	}

	merged, dropped := mergeSources(city, observations)
	if merged.IsEmpty() {
		return nil, nil, nil, newEmptyInputError(fmt.Sprintf("no well-formed observations for city %s", city))
	}

	report, err := c.Clean(ctx, merged)
	if err != nil {
		return nil, nil, nil, err
	}
	report.DroppedRows = dropped

	return merged, report, consistency, nil
}
