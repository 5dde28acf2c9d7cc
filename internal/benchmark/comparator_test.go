package benchmark

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "aqicli/internal/errors"
	"aqicli/internal/shared/testutil"
	"aqicli/pkg/contracts/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func holdoutResult(modelID, city string, rmse, r2 float64) domain.ValidationResult {
	m := domain.NewMetrics()
	m.RMSE = rmse
	m.R2 = r2
	m.Samples = 10
	return domain.ValidationResult{ModelID: modelID, City: city, Metrics: m}
}

func failedUnit(modelID, city string) domain.ValidationResult {
	return domain.ValidationResult{
		ModelID: modelID,
		City:    city,
		Metrics: domain.NewMetrics(),
		Err:     "boom",
	}
}

func TestCompareBaselines(t *testing.T) {
	ctx := context.Background()
	c := NewComparator(discardLogger())

	results := []domain.ValidationResult{
		holdoutResult("gb", "beijing", 12, 0.9),
		holdoutResult("gb", "reykjavik", 5, 0.8),
		failedUnit("gb", "delhi"),
		holdoutResult("lr", "beijing", 24, 0.6),
	}
	baselines := []domain.BaselineMetrics{
		{City: "beijing", RMSE: 16, MAE: 12, Source: "who-2023"},
		{City: "delhi", RMSE: 20},
	}

	comparisons, err := c.CompareBaselines(ctx, results, baselines)
	require.NoError(t, err)

	// Reykjavik has no baseline and the delhi unit failed, so two
	// comparable rows remain in input order.
	require.Len(t, comparisons, 2)
	assert.Equal(t, "gb", comparisons[0].ModelID)
	assert.Equal(t, "beijing", comparisons[0].City)
	assert.Equal(t, 16.0, comparisons[0].BaselineRMSE)
	assert.Equal(t, 12.0, comparisons[0].ModelRMSE)
	assert.InDelta(t, 0.25, comparisons[0].Improvement, 1e-12)
	assert.Equal(t, "who-2023", comparisons[0].Source)

	// A model behind the baseline reports a negative improvement.
	assert.Equal(t, "lr", comparisons[1].ModelID)
	assert.InDelta(t, -0.5, comparisons[1].Improvement, 1e-12)
}

func TestCompareBaselines_EmptyTable(t *testing.T) {
	c := NewComparator(discardLogger())
	comparisons, err := c.CompareBaselines(context.Background(),
		[]domain.ValidationResult{holdoutResult("gb", "beijing", 12, 0.9)}, nil)
	require.NoError(t, err)
	assert.Empty(t, comparisons)
}

func TestCompareBaselines_RejectsBadTables(t *testing.T) {
	ctx := context.Background()
	c := NewComparator(discardLogger())

	bad := [][]domain.BaselineMetrics{
		{{City: "", RMSE: 10}},
		{{City: "beijing", RMSE: 0}},
		{{City: "beijing", RMSE: -3}},
		{{City: "beijing", RMSE: 10}, {City: "beijing", RMSE: 12}},
	}
	for _, table := range bad {
		_, err := c.CompareBaselines(ctx, nil, table)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfiguration))
	}
}

func TestCompareGroundTruth(t *testing.T) {
	ctx := context.Background()
	c := NewComparator(discardLogger())

	timestamps := []time.Time{
		testutil.FixtureStart,
		testutil.FixtureStart.Add(1 * time.Hour),
		testutil.FixtureStart.Add(2 * time.Hour),
	}
	predicted := []float64{10, 20, 30}

	// The reference feed misses the first prediction hour and extends
	// an hour past the last one.
	truth := testutil.HourlySeries("beijing", map[domain.Parameter][]float64{
		domain.ParamAQI: {math.NaN(), 21, 28, 99},
	})

	cmp, err := c.CompareGroundTruth(ctx, "gb", "beijing", timestamps, predicted, truth)
	require.NoError(t, err)

	assert.Equal(t, "gb", cmp.ModelID)
	assert.Equal(t, "beijing", cmp.City)
	assert.Equal(t, 2, cmp.MatchedRows)
	assert.Equal(t, 1, cmp.UnmatchedRows)
	assert.Equal(t, 2, cmp.Metrics.Samples)
	assert.InDelta(t, 1.5, cmp.Metrics.MAE, 1e-12)
	assert.InDelta(t, math.Sqrt((1.0+4.0)/2.0), cmp.Metrics.RMSE, 1e-12)
}

func TestCompareGroundTruth_Errors(t *testing.T) {
	ctx := context.Background()
	c := NewComparator(discardLogger())
	truth := testutil.HourlySeries("beijing", map[domain.Parameter][]float64{
		domain.ParamAQI: {50, 60},
	})

	_, err := c.CompareGroundTruth(ctx, "gb", "beijing",
		[]time.Time{testutil.FixtureStart}, []float64{1, 2}, truth)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDataQuality))

	_, err = c.CompareGroundTruth(ctx, "gb", "beijing",
		[]time.Time{testutil.FixtureStart}, []float64{1}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDataQuality))

	// Predictions from a disjoint time range cannot be scored.
	farFuture := []time.Time{testutil.FixtureStart.Add(1000 * time.Hour)}
	_, err = c.CompareGroundTruth(ctx, "gb", "beijing", farFuture, []float64{1}, truth)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDataQuality))
}
