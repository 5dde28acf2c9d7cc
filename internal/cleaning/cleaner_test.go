package cleaning

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

func newTestCleaner(t *testing.T, cfg Config) *Cleaner {
	t.Helper()
	c, err := NewCleaner(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c
}

// fullPipelineSeries is 101 hourly rows with two pm25 gaps, one pm25
// spike, and seven rows where pm25 exceeds pm10. Every other column is
// populated with unremarkable values so the quality snapshots cover all
// eleven parameters.
func fullPipelineSeries() *domain.Series {
	n := 101
	pm25 := make([]float64, n)
	pm10 := make([]float64, n)
	cols := map[domain.Parameter][]float64{
		domain.ParamPM25:        pm25,
		domain.ParamPM10:        pm10,
		domain.ParamNO2:         testutil.Constant(n, 20),
		domain.ParamSO2:         testutil.Constant(n, 5),
		domain.ParamCO:          testutil.Constant(n, 500),
		domain.ParamO3:          testutil.Constant(n, 40),
		domain.ParamAQI:         testutil.Constant(n, 80),
		domain.ParamTemperature: testutil.Constant(n, 10),
		domain.ParamHumidity:    testutil.Constant(n, 50),
		domain.ParamWindSpeed:   testutil.Constant(n, 3),
		domain.ParamPressure:    testutil.Constant(n, 1000),
	}

	for i := 0; i < n; i++ {
		if i%2 == 0 {
			pm25[i] = 45
		} else {
			pm25[i] = 55
		}
		// Cycles 50..110; the 50-rows with odd index sit below pm25.
		pm10[i] = 50 + 10*float64(i%7)
	}
	pm25[10] = math.NaN()
	pm25[11] = math.NaN()
	pm25[100] = 500

	return testutil.HourlySeries("beijing", cols)
}

func TestNewCleaner_ValidatesConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown imputation method", func(c *Config) { c.ImputationMethod = "cubic" }},
		{"unknown outlier method", func(c *Config) { c.OutlierMethod = "mad" }},
		{"unknown outlier action", func(c *Config) { c.OutlierAction = "discard" }},
		{"non-positive zscore threshold", func(c *Config) { c.ZScoreThreshold = 0 }},
		{"non-positive iqr multiplier", func(c *Config) { c.IQRMultiplier = -1 }},
		{"inverted cap percentiles", func(c *Config) { c.CapLowerPercentile, c.CapUpperPercentile = 0.95, 0.05 }},
		{"anomaly window too small", func(c *Config) { c.AnomalyWindow = 2 }},
		{"high sigma below flag sigma", func(c *Config) { c.AnomalyFlagSigma, c.AnomalyHighSigma = 5, 3 }},
		{"non-positive cv threshold", func(c *Config) { c.CVThreshold = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			_, err := NewCleaner(cfg, nil)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfiguration))
		})
	}
}

func TestNewCleaner_Defaults(t *testing.T) {
	c, err := NewCleaner(DefaultConfig(), nil)
	require.NoError(t, err)

	cfg := c.Config()
	assert.Equal(t, domain.ImputeHybrid, cfg.ImputationMethod)
	assert.Equal(t, domain.OutlierCombined, cfg.OutlierMethod)
	assert.Equal(t, domain.ActionCap, cfg.OutlierAction)
	assert.Equal(t, 24, cfg.AnomalyWindow)
	assert.True(t, cfg.RegularizeGrid)
}

func TestClean_EmptyInputFails(t *testing.T) {
	c := newTestCleaner(t, DefaultConfig())

	_, err := c.Clean(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDataQuality))

	_, err = c.Clean(context.Background(), &domain.Series{City: "beijing"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDataQuality))
}

func TestClean_FullPipeline(t *testing.T) {
	c := newTestCleaner(t, DefaultConfig())
	s := fullPipelineSeries()

	report, err := c.Clean(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, "beijing", report.City)
	assert.Equal(t, 101, report.Rows)
	assert.Zero(t, report.RegularizedRows)

	// Two pm25 gaps closed by linear interpolation.
	assert.Equal(t, 2, report.ImputedCount)
	assert.Equal(t, map[domain.Parameter]int{domain.ParamPM25: 2}, report.ImputedByParameter)

	// Only the spike is an outlier: z-score and IQR both catch it, the
	// physical bounds do not (500 is implausible here but not impossible),
	// and the union counts it once.
	assert.Equal(t, 1, report.OutliersByMethod[domain.OutlierZScore])
	assert.Equal(t, 1, report.OutliersByMethod[domain.OutlierIQR])
	assert.Zero(t, report.OutliersByMethod[domain.OutlierDomain])
	assert.Equal(t, 1, report.OutliersByMethod[domain.OutlierCombined])
	assert.Equal(t, 1, report.OutliersHandled)
	assert.Nil(t, report.FlaggedOutliers)

	assert.Equal(t, 7, report.ConstraintViolationsFixed)
	assert.Empty(t, report.Anomalies)

	assert.InDelta(t, 99.82, report.Before.Completeness, 0.01)
	assert.InDelta(t, 92.08, report.Before.Consistency, 0.01)
	assert.InDelta(t, 100, report.After.Completeness, 1e-9)
	assert.InDelta(t, 100, report.After.Consistency, 1e-9)
	assert.Equal(t, report.After.Completeness, report.CompletenessScore)
	assert.Equal(t, report.After.Consistency, report.ConsistencyScore)

	pm25 := s.Column(domain.ParamPM25)
	pm10 := s.Column(domain.ParamPM10)
	assert.InDelta(t, 55, pm25[100], 1e-9, "spike capped to the 95th percentile")
	assert.InDelta(t, 51.6667, pm25[10], 1e-3)
	assert.InDelta(t, 48.3333, pm25[11], 1e-3)
	assert.InDelta(t, 55, pm10[7], 1e-9, "pm10 lifted to match pm25")
	assert.Equal(t, 101, s.Len())
}

func TestClean_Idempotent(t *testing.T) {
	c := newTestCleaner(t, DefaultConfig())
	s := fullPipelineSeries()

	_, err := c.Clean(context.Background(), s)
	require.NoError(t, err)

	report, err := c.Clean(context.Background(), s)
	require.NoError(t, err)

	assert.Zero(t, report.ImputedCount)
	assert.Zero(t, report.OutliersHandled)
	assert.Zero(t, report.ConstraintViolationsFixed)
	assert.Zero(t, report.RegularizedRows)
	assert.Empty(t, report.Anomalies)
	assert.Equal(t, report.Before, report.After)
}

func TestClean_RegularizesHourlyGrid(t *testing.T) {
	c := newTestCleaner(t, DefaultConfig())

	observations := make([]domain.Observation, 0, 3)
	for i, hour := range []int{0, 1, 5} {
		obs := domain.NewObservation("beijing", testutil.FixtureStart.Add(time.Duration(hour)*time.Hour), "station")
		obs.SetValue(domain.ParamPM25, []float64{10, 20, 50}[i])
		observations = append(observations, obs)
	}
	s := domain.NewSeries("beijing", observations)

	report, err := c.Clean(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, 3, report.RegularizedRows)
	assert.Equal(t, 6, report.Rows)
	assert.Equal(t, 3, report.ImputedCount)
	assert.Equal(t, 6, s.Len())
	assert.Equal(t, testutil.FixtureStart.Add(2*time.Hour), s.Observations[2].Timestamp)
	assert.Equal(t, "beijing", s.Observations[2].City)
	assertColumn(t, []float64{10, 20, 27.5, 35, 42.5, 50}, s.Column(domain.ParamPM25))
}

func TestClean_FlagActionKeepsValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutlierAction = domain.ActionFlag
	c := newTestCleaner(t, cfg)

	column := alternatingColumn(101)
	column[100] = 500
	s := testutil.HourlySeries("beijing", map[domain.Parameter][]float64{
		domain.ParamPM25: column,
	})

	report, err := c.Clean(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, map[domain.Parameter][]int{domain.ParamPM25: {100}}, report.FlaggedOutliers)
	assert.Equal(t, 1, report.OutliersHandled)
	assert.InDelta(t, 500, s.Column(domain.ParamPM25)[100], 1e-9, "flag leaves values untouched")

	// The surviving spike shows up again as a high-severity anomaly.
	require.Len(t, report.Anomalies, 1)
	assert.Equal(t, 100, report.Anomalies[0].Index)
	assert.Equal(t, domain.SeverityHigh, report.Anomalies[0].Severity)
	assert.Equal(t, map[domain.AnomalySeverity]int{domain.SeverityHigh: 1}, report.AnomalyCountBySeverity())
}

func TestCleanObservations(t *testing.T) {
	c := newTestCleaner(t, DefaultConfig())

	observations := testutil.MultiSourceObservations("delhi", 48, []string{"station", "satellite"},
		func(sourceIdx int, base float64) float64 {
			if sourceIdx == 1 {
				return base * 1.05
			}
			return base
		})
	observations = append(observations,
		sourceObservation("delhi", 3, "", 70, 100), // malformed: no source
		sourceObservation("beijing", 3, "station", 70, 100),
	)

	series, report, consistency, err := c.CleanObservations(context.Background(), "delhi", observations)
	require.NoError(t, err)

	assert.Equal(t, "delhi", series.City)
	assert.Equal(t, 48, series.Len())
	assert.Equal(t, "merged", series.Observations[0].Source)

	assert.Equal(t, 48, report.Rows)
	assert.Equal(t, 2, report.DroppedRows, "malformed and out-of-city rows")
	assert.Zero(t, report.ImputedCount)

	assert.Equal(t, 48, consistency.GroupsChecked)
	assert.Equal(t, 1, consistency.MalformedRows)
	assert.InDelta(t, 100, consistency.AgreementScore, 1e-9)
}

func TestCleanObservations_EmptyInput(t *testing.T) {
	c := newTestCleaner(t, DefaultConfig())

	_, _, _, err := c.CleanObservations(context.Background(), "delhi", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDataQuality))
	assert.Contains(t, err.Error(), "delhi")
}

func TestQualityScore(t *testing.T) {
	nan := math.NaN()
	c := newTestCleaner(t, DefaultConfig())

	s := testutil.HourlySeries("beijing", map[domain.Parameter][]float64{
		domain.ParamPM25: {120, 50, 30, nan},
		domain.ParamPM10: {80, 80, nan, nan},
	})

	q := c.QualityScore(s)
	assert.InDelta(t, 11.36, q.Completeness, 0.01)
	assert.InDelta(t, 75, q.Consistency, 1e-9)

	empty := c.QualityScore(&domain.Series{City: "beijing"})
	assert.Zero(t, empty.Completeness)
	assert.InDelta(t, 100, empty.Consistency, 1e-9)
}
