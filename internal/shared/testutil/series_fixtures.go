package testutil

import (
	"math"
	"math/rand"
	"time"

	"aqicli/pkg/contracts/domain"
)

// FixtureStart is the first timestamp of every generated hourly series.
var FixtureStart = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// HourlySeries builds an hourly series from explicit columns. All column
// slices must share one length; parameters not listed stay NaN.
func HourlySeries(city string, columns map[domain.Parameter][]float64) *domain.Series {
	n := 0
	for _, values := range columns {
		n = len(values)
		break
	}

	observations := make([]domain.Observation, n)
	for i := 0; i < n; i++ {
		obs := domain.NewObservation(city, FixtureStart.Add(time.Duration(i)*time.Hour), "test")
		for p, values := range columns {
			obs.SetValue(p, values[i])
		}
		observations[i] = obs
	}

	return domain.NewSeries(city, observations)
}

// AQISeries builds an hourly series with a deterministic pseudo-random
// AQI column plus correlated pollutant and weather columns. The same
// seed always yields the same series.
func AQISeries(city string, n int, seed int64) *domain.Series {
	rng := rand.New(rand.NewSource(seed))

	observations := make([]domain.Observation, n)
	for i := 0; i < n; i++ {
		obs := domain.NewObservation(city, FixtureStart.Add(time.Duration(i)*time.Hour), "test")

		// Daily cycle plus noise keeps values positive and realistic.
		base := 80 + 30*math.Sin(2*math.Pi*float64(i)/24) + rng.NormFloat64()*10
		if base < 1 {
			base = 1
		}
		pm25 := base * 0.6
		obs.SetValue(domain.ParamAQI, base)
		obs.SetValue(domain.ParamPM25, pm25)
		obs.SetValue(domain.ParamPM10, pm25*1.8)
		obs.SetValue(domain.ParamNO2, 20+rng.Float64()*30)
		obs.SetValue(domain.ParamSO2, 5+rng.Float64()*10)
		obs.SetValue(domain.ParamCO, 400+rng.Float64()*600)
		obs.SetValue(domain.ParamO3, 30+rng.Float64()*40)
		obs.SetValue(domain.ParamTemperature, 15+10*math.Sin(2*math.Pi*float64(i)/24)+rng.NormFloat64()*2)
		obs.SetValue(domain.ParamHumidity, 40+rng.Float64()*30)
		obs.SetValue(domain.ParamWindSpeed, 1+rng.Float64()*6)
		obs.SetValue(domain.ParamPressure, 1000+rng.NormFloat64()*8)

		observations[i] = obs
	}

	return domain.NewSeries(city, observations)
}

// WithGaps nulls the given indices of one parameter column. It mutates
// and returns the series for chaining.
func WithGaps(s *domain.Series, p domain.Parameter, indices ...int) *domain.Series {
	for _, i := range indices {
		s.Observations[i].SetValue(p, math.NaN())
	}
	return s
}

// MultiSourceObservations duplicates an hourly grid across the given
// sources, applying perturb to each value so providers disagree by a
// controlled amount. perturb receives the source index and base value.
func MultiSourceObservations(city string, n int, sources []string, perturb func(sourceIdx int, base float64) float64) []domain.Observation {
	var observations []domain.Observation
	for i := 0; i < n; i++ {
		ts := FixtureStart.Add(time.Duration(i) * time.Hour)
		base := 60 + 20*math.Sin(2*math.Pi*float64(i)/24)
		for si, source := range sources {
			obs := domain.NewObservation(city, ts, source)
			obs.SetValue(domain.ParamPM25, perturb(si, base))
			obs.SetValue(domain.ParamAQI, perturb(si, base*1.5))
			observations = append(observations, obs)
		}
	}
	return observations
}

// Linear fills a slice with start + i*step, handy for trend fixtures.
func Linear(n int, start, step float64) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = start + float64(i)*step
	}
	return values
}

// Constant fills a slice with a single value.
func Constant(n int, v float64) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = v
	}
	return values
}
