package features

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "aqicli/internal/errors"
	"aqicli/pkg/contracts/domain"
)

// Config lists the window geometry of the engineered feature set.
type Config struct {
	// RollingWindows are trailing window sizes, in rows, for the rolling
	// mean/std/min/max block.
	RollingWindows []int
	// LagOffsets are backward shifts, in rows, for lagged copies of each
	// pollutant column.
	LagOffsets []int
	// DiffSteps are spans, in rows, for differences and fractional changes.
	DiffSteps []int
}

// DefaultConfig returns the standard feature geometry.
func DefaultConfig() Config {
	return Config{
		RollingWindows: []int{3, 6, 12, 24},
		LagOffsets:     []int{1, 6, 12, 24},
		DiffSteps:      []int{1, 6},
	}
}

func validateSizes(name string, sizes []int) error {
	if len(sizes) == 0 {
		return apperrors.NewConfigurationError(name+" must not be empty", nil)
	}
	seen := make(map[int]bool, len(sizes))
	for _, size := range sizes {
		if size <= 0 {
			return apperrors.NewConfigurationError(fmt.Sprintf("%s entries must be positive, got %d", name, size), nil)
		}
		if seen[size] {
			return apperrors.NewConfigurationError(fmt.Sprintf("%s contains duplicate entry %d", name, size), nil)
		}
		seen[size] = true
	}
	return nil
}

// Validate rejects geometries that would produce empty or colliding
// feature blocks.
func (c Config) Validate() error {
	if err := validateSizes("rolling windows", c.RollingWindows); err != nil {
		return err
	}
	if err := validateSizes("lag offsets", c.LagOffsets); err != nil {
		return err
	}
	return validateSizes("diff steps", c.DiffSteps)
}

// Engineer derives model-ready feature tables from cleaned hourly series.
type Engineer struct {
	cfg    Config
	logger *slog.Logger
}

// NewEngineer creates an engineer with the given window geometry.
func NewEngineer(cfg Config, logger *slog.Logger) (*Engineer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engineer{cfg: cfg, logger: logger}, nil
}

// Config returns the engineer's configuration.
func (e *Engineer) Config() Config {
	return e.cfg
}

func validateSeries(s *domain.Series) error {
	if s == nil || s.IsEmpty() {
		return apperrors.NewDataQualityError("empty series", nil)
	}
	if err := s.Validate(); err != nil {
		return apperrors.NewDataQualityError("invalid series", err)
	}
	return nil
}

// columnPresent reports whether a column carries at least one observed value.
func columnPresent(s *domain.Series, p domain.Parameter) bool {
	for i := range s.Observations {
		if !s.Observations[i].IsMissing(p) {
			return true
		}
	}
	return false
}

// missingColumns returns the subset of params with no observed values.
func missingColumns(s *domain.Series, params []domain.Parameter) []string {
	var missing []string
	for _, p := range params {
		if !columnPresent(s, p) {
			missing = append(missing, string(p))
		}
	}
	return missing
}

func (e *Engineer) warnSkippedGroup(ctx context.Context, city, group string, missing []string) {
	warn := apperrors.NewPartialDataWarning(
		fmt.Sprintf("feature group %q skipped, no data in source columns: %s", group, strings.Join(missing, ", ")))
	e.logger.WarnContext(ctx, "skipping feature group",
		"city", city,
		"group", group,
		"missing_columns", strings.Join(missing, ","),
		"error", warn,
	)
}

// EngineerFeatures builds the feature table for one series. Output rows
// align one-to-one with input rows. Feature groups whose source columns
// carry no data at all are skipped and logged, never zero-filled; the
// calendar block depends only on timestamps and is always present.
func (e *Engineer) EngineerFeatures(ctx context.Context, s *domain.Series) (*domain.FeatureTable, error) {
	start := time.Now()
	if err := validateSeries(s); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "starting feature engineering",
		"city", s.City,
		"rows", s.Len(),
		"rolling_windows", fmt.Sprint(e.cfg.RollingWindows),
		"lag_offsets", fmt.Sprint(e.cfg.LagOffsets),
		"diff_steps", fmt.Sprint(e.cfg.DiffSteps),
	)

	table := domain.NewFeatureTable(s.Timestamps())
	if err := addCalendarColumns(table); err != nil {
		return nil, err
	}

	skipped := 0

	for _, r := range ratioSpecs {
		if missing := missingColumns(s, r.requires()); len(missing) > 0 {
			skipped++
			e.warnSkippedGroup(ctx, s.City, r.name, missing)
			continue
		}
		if err := addRatioColumn(table, s, r); err != nil {
			return nil, err
		}
	}

	if missing := missingColumns(s, compositeRequires()); len(missing) > 0 {
		skipped++
		e.warnSkippedGroup(ctx, s.City, compositeIndexColumn, missing)
	} else if err := addCompositeIndexColumn(table, s); err != nil {
		return nil, err
	}

	for _, spec := range interactionSpecs {
		if missing := missingColumns(s, spec.requires); len(missing) > 0 {
			skipped++
			e.warnSkippedGroup(ctx, s.City, spec.name, missing)
			continue
		}
		if err := addInteractionColumn(table, s, spec); err != nil {
			return nil, err
		}
	}

	for _, p := range domain.PollutantParameters() {
		group := string(p) + "_windows"
		if !columnPresent(s, p) {
			skipped++
			e.warnSkippedGroup(ctx, s.City, group, []string{string(p)})
			continue
		}
		if err := addWindowColumns(table, p, s.Column(p), e.cfg.RollingWindows, e.cfg.LagOffsets, e.cfg.DiffSteps); err != nil {
			return nil, err
		}
	}

	e.logger.InfoContext(ctx, "feature engineering completed",
		"city", s.City,
		"duration", time.Since(start),
		"rows", table.NumRows(),
		"columns", table.NumColumns(),
		"skipped_groups", skipped,
	)

	return table, nil
}
