package benchmark

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "aqicli/internal/errors"
	"aqicli/internal/validation"
	"aqicli/pkg/contracts/domain"
)

// Comparator relates model results to external reference points: a
// published per-city baseline table and third-party ground truth
// observations.
type Comparator struct {
	logger *slog.Logger
}

// NewComparator creates a comparator.
func NewComparator(logger *slog.Logger) *Comparator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Comparator{logger: logger}
}

// CompareBaselines matches successful results against the published
// baseline table by city. Results without a baseline row and failed
// results are skipped; output follows the input result order. An empty
// table yields an empty comparison set, not an error.
func (c *Comparator) CompareBaselines(ctx context.Context, results []domain.ValidationResult, baselines []domain.BaselineMetrics) ([]domain.BenchmarkComparison, error) {
	byCity := make(map[string]domain.BaselineMetrics, len(baselines))
	for _, b := range baselines {
		if b.City == "" {
			return nil, apperrors.NewConfigurationError("baseline rows must name a city", nil)
		}
		if !(b.RMSE > 0) {
			return nil, apperrors.NewConfigurationError(
				fmt.Sprintf("baseline RMSE for city %s must be positive, got %v", b.City, b.RMSE), nil)
		}
		if _, dup := byCity[b.City]; dup {
			return nil, apperrors.NewConfigurationError(
				fmt.Sprintf("duplicate baseline row for city %s", b.City), nil)
		}
		byCity[b.City] = b
	}

	comparisons := make([]domain.BenchmarkComparison, 0, len(results))
	for _, res := range results {
		if res.Failed() || !isFinite(res.Metrics.RMSE) {
			continue
		}
		base, ok := byCity[res.City]
		if !ok {
			continue
		}
		comparisons = append(comparisons, domain.BenchmarkComparison{
			ModelID:      res.ModelID,
			City:         res.City,
			BaselineRMSE: base.RMSE,
			ModelRMSE:    res.Metrics.RMSE,
			Improvement:  (base.RMSE - res.Metrics.RMSE) / base.RMSE,
			Source:       base.Source,
		})
	}

	c.logger.DebugContext(ctx, "baseline comparison complete",
		"baseline_cities", len(byCity),
		"comparisons", len(comparisons),
	)
	return comparisons, nil
}

// CompareGroundTruth inner-joins model predictions with third-party
// reference observations on timestamp and scores the matches. Unmatched
// counts prediction rows with no usable truth value; extra truth rows
// outside the prediction range are ignored, since the reference feed is
// usually much longer than the evaluated slice.
func (c *Comparator) CompareGroundTruth(ctx context.Context, modelID, city string, timestamps []time.Time, predicted []float64, truth *domain.Series) (*domain.GroundTruthComparison, error) {
	if len(timestamps) != len(predicted) {
		return nil, apperrors.NewDataQualityError(
			fmt.Sprintf("%d prediction timestamps do not match %d values", len(timestamps), len(predicted)), nil)
	}
	if truth == nil || truth.IsEmpty() {
		return nil, apperrors.NewDataQualityError("ground truth comparison needs reference observations", nil)
	}

	truthAQI := truth.Column(domain.ParamAQI)
	truthTimes := truth.Timestamps()
	byTime := make(map[int64]float64, len(truthTimes))
	for i, ts := range truthTimes {
		if isFinite(truthAQI[i]) {
			byTime[ts.Unix()] = truthAQI[i]
		}
	}

	var actual, pred []float64
	unmatched := 0
	for i, ts := range timestamps {
		v, ok := byTime[ts.Unix()]
		if !ok {
			unmatched++
			continue
		}
		actual = append(actual, v)
		pred = append(pred, predicted[i])
	}
	if len(actual) == 0 {
		return nil, apperrors.NewDataQualityError(
			fmt.Sprintf("no timestamps in common between predictions and ground truth for city %s", city), nil)
	}

	metrics, err := validation.Evaluate(actual, pred)
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "ground truth comparison complete",
		"model", modelID,
		"city", city,
		"matched_rows", len(actual),
		"unmatched_rows", unmatched,
		"rmse", metrics.RMSE,
	)

	return &domain.GroundTruthComparison{
		ModelID:       modelID,
		City:          city,
		MatchedRows:   len(actual),
		UnmatchedRows: unmatched,
		Metrics:       metrics,
	}, nil
}
