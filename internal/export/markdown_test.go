package export

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "aqicli/internal/errors"
	"aqicli/pkg/contracts/domain"
)

func markdownReportFixture() *domain.ValidationReport {
	m := domain.NewMetrics()
	m.RMSE = 4.2
	m.MAE = 3.1
	m.R2 = 0.8
	m.Samples = 24

	return &domain.ValidationReport{
		RunID:       "3f2c9a7e",
		GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Cities:      []string{"beijing", "delhi"},
		Horizons:    []int{1, 6},
		Rankings: []domain.ModelRanking{
			{Rank: 1, ModelID: "gb", Score: 0.91, MultiCityR2: 0.85, ForecastRMSE: 15, NormInverseRMSE: 1, CrossCityVariance: 0.0025},
		},
		Holdout: []domain.ValidationResult{
			{ModelID: "gb", City: "beijing", Metrics: m},
		},
		Forecast: []domain.ValidationResult{
			{ModelID: "lr", City: "delhi", HorizonHours: 6, Metrics: domain.NewMetrics(), Err: "fit exploded: pipe|error"},
		},
		Benchmarks: []domain.BenchmarkComparison{
			{ModelID: "gb", City: "beijing", BaselineRMSE: 16, ModelRMSE: 8, Improvement: 0.5, Source: "who-2023"},
		},
		GroundTruth: []domain.GroundTruthComparison{
			{ModelID: "gb", City: "beijing", MatchedRows: 40, UnmatchedRows: 2, Metrics: m},
		},
		Transfers: []domain.TransferResult{
			{ModelID: "gb", FromCity: "beijing", ToCity: "delhi", Metrics: m, SameCityR2: math.NaN(), Degradation: 0.3},
		},
		UnitsTotal:  4,
		UnitsFailed: 1,
	}
}

func TestMarkdownRender(t *testing.T) {
	w := NewMarkdownWriter(discardLogger())
	doc := w.Render(markdownReportFixture())

	assert.Contains(t, doc, "# Air quality model validation")
	assert.Contains(t, doc, "- Run: `3f2c9a7e`")
	assert.Contains(t, doc, "- Generated: 2026-01-02T03:04:05Z")
	assert.Contains(t, doc, "- Cities: beijing, delhi")
	assert.Contains(t, doc, "- Horizons: 1h, 6h")
	assert.Contains(t, doc, "- Units: 4 evaluated, 1 failed")

	assert.Contains(t, doc, "| 1 | gb | 0.9100 | 0.8500 | 15.0000 | 0.0025 |")
	assert.Contains(t, doc, "| gb | beijing | 16.0000 | 8.0000 | +50.0% | who-2023 |")
	assert.Contains(t, doc, "| gb | beijing | 40 | 2 | 4.2000 | 3.1000 |")
	assert.Contains(t, doc, "| gb | beijing | delhi | 0.8000 | n/a | 0.3000 |")
	assert.Contains(t, doc, "| forecast | lr | delhi | 6h | fit exploded: pipe\\|error |")
}

func TestMarkdownRender_OmitsEmptySections(t *testing.T) {
	w := NewMarkdownWriter(discardLogger())
	doc := w.Render(&domain.ValidationReport{
		RunID:       "empty-run",
		GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})

	assert.Contains(t, doc, "No model produced enough scorable units to rank.")
	assert.Contains(t, doc, "- Horizons: none")
	assert.NotContains(t, doc, "## Published baselines")
	assert.NotContains(t, doc, "## Ground truth")
	assert.NotContains(t, doc, "## Cross-city transfer")
	assert.NotContains(t, doc, "## Failed units")
}

func TestMarkdownWriter_Write(t *testing.T) {
	w := NewMarkdownWriter(discardLogger())
	report := markdownReportFixture()
	path := filepath.Join(t.TempDir(), "reports", "validation.md")

	require.NoError(t, w.Write(context.Background(), path, report))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, w.Render(report), string(data))

	err = w.Write(context.Background(), path, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfiguration))
}
