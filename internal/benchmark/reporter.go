package benchmark

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	apperrors "aqicli/internal/errors"
	"aqicli/internal/stats"
	"aqicli/internal/validation"
	"aqicli/pkg/contracts/domain"
)

// Ranking score weights. The composite favors cross-city fit quality
// over raw forecast error.
const (
	r2Weight   = 0.6
	rmseWeight = 0.4
)

// Reporter ranks candidate models and assembles the final report.
type Reporter struct {
	logger *slog.Logger
}

// NewReporter creates a reporter.
func NewReporter(logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{logger: logger}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// modelAggregate collects one model's scores across cities and horizons.
type modelAggregate struct {
	modelID       string
	holdoutR2s    []float64
	forecastRMSEs []float64
}

// RankModels scores every model that produced at least one successful
// holdout and one successful forecast unit. The score is
// 0.6*mean(holdout R2 across cities) + 0.4*(normalized inverse mean
// forecast RMSE); the inverse RMSE is normalized so the lowest-error
// model scores 1. Ties break toward lower cross-city R2 variance, then
// model ID for a fully deterministic order. Models with no scorable
// units are left out of the table; their failures stay visible in the
// raw result sections.
func (r *Reporter) RankModels(ctx context.Context, holdout, forecast []domain.ValidationResult) []domain.ModelRanking {
	order := make([]string, 0)
	byModel := make(map[string]*modelAggregate)
	aggregate := func(modelID string) *modelAggregate {
		agg, ok := byModel[modelID]
		if !ok {
			agg = &modelAggregate{modelID: modelID}
			byModel[modelID] = agg
			order = append(order, modelID)
		}
		return agg
	}

	for _, res := range holdout {
		if res.Failed() || !isFinite(res.Metrics.R2) {
			aggregate(res.ModelID)
			continue
		}
		agg := aggregate(res.ModelID)
		agg.holdoutR2s = append(agg.holdoutR2s, res.Metrics.R2)
	}
	for _, res := range forecast {
		if res.Failed() || !isFinite(res.Metrics.RMSE) {
			aggregate(res.ModelID)
			continue
		}
		agg := aggregate(res.ModelID)
		agg.forecastRMSEs = append(agg.forecastRMSEs, res.Metrics.RMSE)
	}

	rankings := make([]domain.ModelRanking, 0, len(order))
	for _, modelID := range order {
		agg := byModel[modelID]
		if len(agg.holdoutR2s) == 0 || len(agg.forecastRMSEs) == 0 {
			r.logger.WarnContext(ctx, "model excluded from ranking, no scorable units",
				"model", modelID,
				"holdout_units", len(agg.holdoutR2s),
				"forecast_units", len(agg.forecastRMSEs),
			)
			continue
		}
		rankings = append(rankings, domain.ModelRanking{
			ModelID:           modelID,
			MultiCityR2:       stats.Mean(agg.holdoutR2s),
			ForecastRMSE:      stats.Mean(agg.forecastRMSEs),
			CrossCityVariance: stats.PopVariance(agg.holdoutR2s),
		})
	}
	if len(rankings) == 0 {
		return rankings
	}

	// Normalize inverse RMSE against the best model: minRMSE/RMSE is 1
	// for the lowest error and handles a perfect zero-RMSE model.
	minRMSE := rankings[0].ForecastRMSE
	for _, rk := range rankings[1:] {
		if rk.ForecastRMSE < minRMSE {
			minRMSE = rk.ForecastRMSE
		}
	}
	for i := range rankings {
		if rankings[i].ForecastRMSE == minRMSE {
			rankings[i].NormInverseRMSE = 1
		} else {
			rankings[i].NormInverseRMSE = minRMSE / rankings[i].ForecastRMSE
		}
		rankings[i].Score = r2Weight*rankings[i].MultiCityR2 + rmseWeight*rankings[i].NormInverseRMSE
	}

	sort.SliceStable(rankings, func(i, j int) bool {
		if rankings[i].Score != rankings[j].Score {
			return rankings[i].Score > rankings[j].Score
		}
		if rankings[i].CrossCityVariance != rankings[j].CrossCityVariance {
			return rankings[i].CrossCityVariance < rankings[j].CrossCityVariance
		}
		return rankings[i].ModelID < rankings[j].ModelID
	})
	for i := range rankings {
		rankings[i].Rank = i + 1
	}

	r.logger.InfoContext(ctx, "ranked candidate models",
		"models", len(rankings),
		"excluded", len(order)-len(rankings),
	)
	return rankings
}

// ReportInput bundles everything one validation run produced.
type ReportInput struct {
	Sweep       *validation.SweepResult
	Horizons    []int
	Benchmarks  []domain.BenchmarkComparison
	GroundTruth []domain.GroundTruthComparison
}

// BuildReport assembles the final structured report: a fresh run ID,
// the ranked model table and every raw result section. Rendering is
// the export layer's job.
func (r *Reporter) BuildReport(ctx context.Context, in ReportInput) (*domain.ValidationReport, error) {
	if in.Sweep == nil {
		return nil, apperrors.NewConfigurationError("report needs sweep results", nil)
	}

	cities := make([]string, 0)
	seen := make(map[string]bool)
	for _, res := range in.Sweep.Holdout {
		if !seen[res.City] {
			seen[res.City] = true
			cities = append(cities, res.City)
		}
	}

	report := &domain.ValidationReport{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Cities:      cities,
		Horizons:    in.Horizons,
		Rankings:    r.RankModels(ctx, in.Sweep.Holdout, in.Sweep.Forecast),
		Holdout:     in.Sweep.Holdout,
		Forecast:    in.Sweep.Forecast,
		Transfers:   in.Sweep.Transfers,
		Stratified:  in.Sweep.Stratified,
		Benchmarks:  in.Benchmarks,
		GroundTruth: in.GroundTruth,
		UnitsTotal:  in.Sweep.UnitsTotal,
		UnitsFailed: in.Sweep.UnitsFailed,
	}

	r.logger.InfoContext(ctx, "validation report assembled",
		"run_id", report.RunID,
		"cities", len(report.Cities),
		"rankings", len(report.Rankings),
		"units_total", report.UnitsTotal,
		"units_failed", report.UnitsFailed,
	)
	return report, nil
}
