package features

import (
	"math"

	"aqicli/pkg/contracts/domain"
)

// ratioEpsilon keeps pollutant ratios finite when the denominator reads zero.
const ratioEpsilon = 0.1

type ratioSpec struct {
	name        string
	numerator   domain.Parameter
	denominator domain.Parameter
}

var ratioSpecs = []ratioSpec{
	{"pm25_pm10_ratio", domain.ParamPM25, domain.ParamPM10},
	{"no2_so2_ratio", domain.ParamNO2, domain.ParamSO2},
	{"co_no2_ratio", domain.ParamCO, domain.ParamNO2},
}

func (r ratioSpec) requires() []domain.Parameter {
	return []domain.Parameter{r.numerator, r.denominator}
}

func addRatioColumn(t *domain.FeatureTable, s *domain.Series, r ratioSpec) error {
	values := make([]float64, s.Len())
	for i := range s.Observations {
		num := s.Observations[i].Value(r.numerator)
		den := s.Observations[i].Value(r.denominator)
		values[i] = num / (den + ratioEpsilon)
	}
	return t.AddColumn(r.name, values)
}

// compositeWeights define the fixed-weight pollutant index. CO is reported in
// ug/m3 and is scaled down so it does not dominate the sum.
var compositeWeights = []struct {
	param  domain.Parameter
	weight float64
	scale  float64
}{
	{domain.ParamPM25, 0.30, 1},
	{domain.ParamPM10, 0.20, 1},
	{domain.ParamNO2, 0.15, 1},
	{domain.ParamSO2, 0.10, 1},
	{domain.ParamCO, 0.10, 100},
	{domain.ParamO3, 0.15, 1},
}

const compositeIndexColumn = "pollutant_index"

func compositeRequires() []domain.Parameter {
	params := make([]domain.Parameter, len(compositeWeights))
	for i, w := range compositeWeights {
		params[i] = w.param
	}
	return params
}

func addCompositeIndexColumn(t *domain.FeatureTable, s *domain.Series) error {
	values := make([]float64, s.Len())
	for i := range s.Observations {
		sum := 0.0
		for _, w := range compositeWeights {
			v := s.Observations[i].Value(w.param)
			if math.IsNaN(v) {
				sum = math.NaN()
				break
			}
			sum += w.weight * v / w.scale
		}
		values[i] = sum
	}
	return t.AddColumn(compositeIndexColumn, values)
}

type interactionSpec struct {
	name     string
	requires []domain.Parameter
	value    func(o *domain.Observation) float64
}

var interactionSpecs = []interactionSpec{
	{
		name:     "temp_humidity_interaction",
		requires: []domain.Parameter{domain.ParamTemperature, domain.ParamHumidity},
		value:    func(o *domain.Observation) float64 { return o.Temperature * o.Humidity },
	},
	{
		name:     "temp_pm25_interaction",
		requires: []domain.Parameter{domain.ParamTemperature, domain.ParamPM25},
		value:    func(o *domain.Observation) float64 { return o.Temperature * o.PM25 },
	},
	{
		name:     "wind_pm25_interaction",
		requires: []domain.Parameter{domain.ParamWindSpeed, domain.ParamPM25},
		value:    func(o *domain.Observation) float64 { return o.WindSpeed * o.PM25 },
	},
	{
		name:     "wind_pm25_dispersion",
		requires: []domain.Parameter{domain.ParamWindSpeed, domain.ParamPM25},
		value:    func(o *domain.Observation) float64 { return o.WindSpeed / (o.PM25 + 1) },
	},
	{
		name: "hour_weekend_interaction",
		value: func(o *domain.Observation) float64 {
			return float64(o.Timestamp.Hour()) * boolToFloat(isWeekend(o.Timestamp))
		},
	},
	{
		name:     "season_pm25_interaction",
		requires: []domain.Parameter{domain.ParamPM25},
		value: func(o *domain.Observation) float64 {
			return float64(seasonIndex(o.Timestamp.Month())) * o.PM25
		},
	},
}

func addInteractionColumn(t *domain.FeatureTable, s *domain.Series, spec interactionSpec) error {
	values := make([]float64, s.Len())
	for i := range s.Observations {
		values[i] = spec.value(&s.Observations[i])
	}
	return t.AddColumn(spec.name, values)
}
