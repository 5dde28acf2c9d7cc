// Package split partitions time-ordered rows into chronological
// train/validation/test segments. There is no shuffling: temporal order is
// what keeps future information out of the training segments.
package split

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	apperrors "aqicli/internal/errors"
	"aqicli/pkg/contracts/domain"
)

// ratioTolerance bounds the acceptable drift of the ratio sum from 1.0.
const ratioTolerance = 1e-6

// Splitter cuts timestamped rows into contiguous segments.
type Splitter struct {
	logger *slog.Logger
}

// NewSplitter creates a splitter.
func NewSplitter(logger *slog.Logger) *Splitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Splitter{logger: logger}
}

// ValidateRatios checks that the three ratios are positive and sum to
// one within tolerance.
func ValidateRatios(train, validation, test float64) error {
	if train <= 0 || validation <= 0 || test <= 0 {
		return apperrors.NewConfigurationError(
			fmt.Sprintf("split ratios must all be positive, got %.3f/%.3f/%.3f", train, validation, test), nil)
	}
	if sum := train + validation + test; math.Abs(sum-1) > ratioTolerance {
		return apperrors.NewConfigurationError(
			fmt.Sprintf("split ratios must sum to 1.0, got %.6f", sum), nil)
	}
	return nil
}

// Split partitions n timestamped rows at floor(n*train) and
// floor(n*(train+validation)). The input must already be time-ordered.
// Configurations that would leave a segment empty are rejected rather
// than silently producing one.
func (sp *Splitter) Split(ctx context.Context, timestamps []time.Time, train, validation, test float64) (*domain.SplitResult, error) {
	if err := ValidateRatios(train, validation, test); err != nil {
		return nil, err
	}
	n := len(timestamps)
	if n == 0 {
		return nil, apperrors.NewDataQualityError("cannot split empty input", nil)
	}

	trainEnd := int(math.Floor(float64(n) * train))
	valEnd := int(math.Floor(float64(n) * (train + validation)))
	if trainEnd == 0 || valEnd == trainEnd || valEnd == n {
		return nil, apperrors.NewDataQualityError(
			fmt.Sprintf("splitting %d rows at %.2f/%.2f/%.2f leaves an empty segment", n, train, validation, test), nil)
	}

	result := &domain.SplitResult{
		Train:      segment(timestamps, 0, trainEnd),
		Validation: segment(timestamps, trainEnd, valEnd),
		Test:       segment(timestamps, valEnd, n),
	}

	sp.logger.InfoContext(ctx, "chronological split",
		"rows", n,
		"train_rows", result.Train.Len(),
		"validation_rows", result.Validation.Len(),
		"test_rows", result.Test.Len(),
		"train_start", result.Train.StartTime,
		"train_end", result.Train.EndTime,
		"validation_start", result.Validation.StartTime,
		"validation_end", result.Validation.EndTime,
		"test_start", result.Test.StartTime,
		"test_end", result.Test.EndTime,
	)

	return result, nil
}

// segment builds a [start, end) segment; EndTime is the last row's
// timestamp, not the exclusive bound.
func segment(timestamps []time.Time, start, end int) domain.Segment {
	return domain.Segment{
		Start:     start,
		End:       end,
		StartTime: timestamps[start],
		EndTime:   timestamps[end-1],
	}
}

// SplitSeries partitions a series by its own timestamps.
func (sp *Splitter) SplitSeries(ctx context.Context, s *domain.Series, train, validation, test float64) (*domain.SplitResult, error) {
	if s == nil || s.IsEmpty() {
		return nil, apperrors.NewDataQualityError("cannot split empty series", nil)
	}
	return sp.Split(ctx, s.Timestamps(), train, validation, test)
}

// SplitTable partitions a feature table by its row timestamps.
func (sp *Splitter) SplitTable(ctx context.Context, t *domain.FeatureTable, train, validation, test float64) (*domain.SplitResult, error) {
	if t == nil || t.NumRows() == 0 {
		return nil, apperrors.NewDataQualityError("cannot split empty feature table", nil)
	}
	return sp.Split(ctx, t.Timestamps, train, validation, test)
}
