package cleaning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "aqicli/internal/errors"
	"aqicli/internal/shared/testutil"
	"aqicli/pkg/contracts/domain"
)

func sourceObservation(city string, hour int, source string, pm25, aqi float64) domain.Observation {
	obs := domain.NewObservation(city, testutil.FixtureStart.Add(time.Duration(hour)*time.Hour), source)
	obs.SetValue(domain.ParamPM25, pm25)
	obs.SetValue(domain.ParamAQI, aqi)
	return obs
}

func TestCrossSourceConsistency_FlagsDiscrepancies(t *testing.T) {
	c := newTestCleaner(t, DefaultConfig())

	observations := []domain.Observation{
		// Hour 0: pm25 CV = 50/100 = 0.5, over the 0.30 threshold.
		sourceObservation("beijing", 0, "station", 50, 75),
		sourceObservation("beijing", 0, "satellite", 150, 80),
		// Hour 1: pm25 agrees, AQI spread 60 exceeds the 50 threshold.
		sourceObservation("beijing", 1, "station", 100, 100),
		sourceObservation("beijing", 1, "satellite", 105, 160),
		// Hours 2-4: providers agree.
		sourceObservation("beijing", 2, "station", 100, 100),
		sourceObservation("beijing", 2, "satellite", 102, 104),
		sourceObservation("beijing", 3, "station", 80, 90),
		sourceObservation("beijing", 3, "satellite", 82, 92),
		sourceObservation("beijing", 4, "station", 60, 70),
		sourceObservation("beijing", 4, "satellite", 61, 72),
		// Hour 5: single source, nothing to compare.
		sourceObservation("beijing", 5, "station", 55, 66),
	}

	report, err := c.CrossSourceConsistency(context.Background(), observations)
	require.NoError(t, err)

	assert.Equal(t, "beijing", report.City)
	assert.Equal(t, 5, report.GroupsChecked)
	assert.Equal(t, 1, report.FlaggedCV)
	assert.Equal(t, 1, report.FlaggedAQIDiff)
	assert.Equal(t, 2, report.Flagged)
	assert.Zero(t, report.MalformedRows)
	assert.InDelta(t, 60.0, report.AgreementScore, 1e-9)
}

func TestCrossSourceConsistency_DropsMalformedRows(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	c, err := NewCleaner(DefaultConfig(), logger)
	require.NoError(t, err)

	observations := []domain.Observation{
		sourceObservation("beijing", 0, "station", 100, 100),
		sourceObservation("beijing", 0, "satellite", 101, 101),
		sourceObservation("", 0, "station", 90, 90),
		domain.NewObservation("beijing", time.Time{}, "station"),
		sourceObservation("beijing", 0, "", 95, 95),
		sourceObservation("beijing", 0, "station", 100, 100), // duplicate triple
	}

	report, err := c.CrossSourceConsistency(context.Background(), observations)
	require.NoError(t, err)

	assert.Equal(t, 4, report.MalformedRows)
	assert.Equal(t, 1, report.GroupsChecked)
	assert.Zero(t, report.Flagged)
	assert.InDelta(t, 100.0, report.AgreementScore, 1e-9)
	assert.True(t, handler.ContainsMessage("dropped malformed rows"))
	testutil.AssertLogAttr(t, handler, "malformed_rows", int64(4))
}

func TestCrossSourceConsistency_SingleSourcePerfectScore(t *testing.T) {
	c := newTestCleaner(t, DefaultConfig())

	observations := []domain.Observation{
		sourceObservation("beijing", 0, "station", 100, 100),
		sourceObservation("beijing", 1, "station", 110, 105),
	}

	report, err := c.CrossSourceConsistency(context.Background(), observations)
	require.NoError(t, err)

	assert.Zero(t, report.GroupsChecked)
	assert.InDelta(t, 100.0, report.AgreementScore, 1e-9)
}

func TestCrossSourceConsistency_EmptyInput(t *testing.T) {
	c := newTestCleaner(t, DefaultConfig())

	_, err := c.CrossSourceConsistency(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDataQuality))
}

func TestMergeSources(t *testing.T) {
	observations := []domain.Observation{
		sourceObservation("beijing", 0, "station", 50, 75),
		sourceObservation("beijing", 0, "satellite", 150, 85),
		sourceObservation("beijing", 1, "station", 80, 90),
		sourceObservation("shanghai", 1, "station", 70, 80), // other city
		sourceObservation("beijing", 0, "station", 50, 75),  // duplicate triple
	}

	merged, dropped := mergeSources("beijing", observations)

	assert.Equal(t, 2, dropped)
	require.Equal(t, 2, merged.Len())
	assert.Equal(t, "beijing", merged.City)

	first := merged.Observations[0]
	assert.Equal(t, "merged", first.Source)
	assert.Equal(t, testutil.FixtureStart, first.Timestamp)
	assert.InDelta(t, 100, first.PM25, 1e-9)
	assert.InDelta(t, 80, first.AQI, 1e-9)

	second := merged.Observations[1]
	assert.InDelta(t, 80, second.PM25, 1e-9)
}

func TestMergeSources_AveragesFiniteValuesOnly(t *testing.T) {
	withTemp := sourceObservation("beijing", 0, "station", 50, 75)
	withTemp.SetValue(domain.ParamTemperature, 12)
	withoutTemp := sourceObservation("beijing", 0, "satellite", 150, 85)

	merged, dropped := mergeSources("beijing", []domain.Observation{withTemp, withoutTemp})

	assert.Zero(t, dropped)
	require.Equal(t, 1, merged.Len())

	// Temperature came from a single provider; the other's NaN does not
	// drag the average.
	assert.InDelta(t, 12, merged.Observations[0].Temperature, 1e-9)
	assert.InDelta(t, 100, merged.Observations[0].PM25, 1e-9)
}
