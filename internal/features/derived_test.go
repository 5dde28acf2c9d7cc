package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aqicli/internal/shared/testutil"
	"aqicli/pkg/contracts/domain"
)

func TestAddRatioColumn_EpsilonGuardsZeroDenominator(t *testing.T) {
	nan := math.NaN()
	s := testutil.HourlySeries("delhi", map[domain.Parameter][]float64{
		domain.ParamPM25: {50, 30, nan},
		domain.ParamPM10: {100, 0, 40},
	})
	table := domain.NewFeatureTable(s.Timestamps())

	spec := ratioSpec{"pm25_pm10_ratio", domain.ParamPM25, domain.ParamPM10}
	require.NoError(t, addRatioColumn(table, s, spec))

	// A zero denominator reads as a huge but finite ratio; a missing
	// numerator stays missing.
	assertColumn(t, []float64{50.0 / 100.1, 300, nan}, mustColumn(t, table, "pm25_pm10_ratio"))
}

func TestAddCompositeIndexColumn(t *testing.T) {
	nan := math.NaN()
	s := testutil.HourlySeries("delhi", map[domain.Parameter][]float64{
		domain.ParamPM25: {10, 10},
		domain.ParamPM10: {20, 20},
		domain.ParamNO2:  {30, 30},
		domain.ParamSO2:  {40, 40},
		domain.ParamCO:   {1000, nan},
		domain.ParamO3:   {50, 50},
	})
	table := domain.NewFeatureTable(s.Timestamps())

	require.NoError(t, addCompositeIndexColumn(table, s))

	// 0.3*10 + 0.2*20 + 0.15*30 + 0.1*40 + 0.1*(1000/100) + 0.15*50 = 24;
	// any missing component makes the whole row missing.
	assertColumn(t, []float64{24, nan}, mustColumn(t, table, "pollutant_index"))
}

func TestInteractionSpecs(t *testing.T) {
	// Saturday 2024-03-02 05:00 UTC: weekend, spring.
	obs := domain.NewObservation("delhi", time.Date(2024, 3, 2, 5, 0, 0, 0, time.UTC), "test")
	obs.SetValue(domain.ParamTemperature, 20)
	obs.SetValue(domain.ParamHumidity, 50)
	obs.SetValue(domain.ParamPM25, 10)
	obs.SetValue(domain.ParamWindSpeed, 2)

	got := make(map[string]float64, len(interactionSpecs))
	for _, spec := range interactionSpecs {
		got[spec.name] = spec.value(&obs)
	}

	assert.InDelta(t, 1000, got["temp_humidity_interaction"], 1e-9)
	assert.InDelta(t, 200, got["temp_pm25_interaction"], 1e-9)
	assert.InDelta(t, 20, got["wind_pm25_interaction"], 1e-9)
	assert.InDelta(t, 2.0/11.0, got["wind_pm25_dispersion"], 1e-9)
	assert.InDelta(t, 5, got["hour_weekend_interaction"], 1e-9, "Saturday keeps the hour")
	assert.InDelta(t, 20, got["season_pm25_interaction"], 1e-9, "spring index 2 times pm25")
}

func TestInteractionSpecs_WeekdayZeroesHourTerm(t *testing.T) {
	// Friday 2024-03-01 09:00 UTC.
	obs := domain.NewObservation("delhi", testutil.FixtureStart.Add(9*time.Hour), "test")

	for _, spec := range interactionSpecs {
		if spec.name != "hour_weekend_interaction" {
			continue
		}
		assert.Equal(t, 0.0, spec.value(&obs))
	}
}
