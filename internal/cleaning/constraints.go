package cleaning

import (
	"math"

	"aqicli/pkg/contracts/domain"
)

// nonNegativeParams are clamped to >= 0: a negative concentration or
// wind speed is a sensor artefact, not a measurement.
var nonNegativeParams = []domain.Parameter{
	domain.ParamPM25,
	domain.ParamPM10,
	domain.ParamNO2,
	domain.ParamSO2,
	domain.ParamCO,
	domain.ParamO3,
	domain.ParamAQI,
	domain.ParamWindSpeed,
}

// enforceConstraints corrects physically impossible rows in place and
// returns the number of corrections.
//
// Where pm25 exceeds pm10 the pm10 value is raised to match: PM10 mass
// includes PM2.5 mass by definition, so the finer reading is trusted and
// the coarser one lifted, never the reverse.
func enforceConstraints(s *domain.Series) int {
	violations := 0

	for i := range s.Observations {
		obs := &s.Observations[i]

		if !math.IsNaN(obs.PM25) && !math.IsNaN(obs.PM10) && obs.PM25 > obs.PM10 {
			obs.PM10 = obs.PM25
			violations++
		}

		for _, p := range nonNegativeParams {
			v := obs.Value(p)
			if !math.IsNaN(v) && v < 0 {
				obs.SetValue(p, 0)
				violations++
			}
		}

		if !math.IsNaN(obs.Humidity) {
			if obs.Humidity < 0 {
				obs.Humidity = 0
				violations++
			} else if obs.Humidity > 100 {
				obs.Humidity = 100
				violations++
			}
		}
	}

	return violations
}
