package domain

import (
	"math"
	"time"
)

// Parameter identifies a measured column of an Observation.
type Parameter string

const (
	ParamPM25        Parameter = "pm25"
	ParamPM10        Parameter = "pm10"
	ParamNO2         Parameter = "no2"
	ParamSO2         Parameter = "so2"
	ParamCO          Parameter = "co"
	ParamO3          Parameter = "o3"
	ParamAQI         Parameter = "aqi"
	ParamTemperature Parameter = "temperature"
	ParamHumidity    Parameter = "humidity"
	ParamWindSpeed   Parameter = "wind_speed"
	ParamPressure    Parameter = "pressure"
)

// Parameters returns every measured column in canonical order.
func Parameters() []Parameter {
	return []Parameter{
		ParamPM25, ParamPM10, ParamNO2, ParamSO2, ParamCO, ParamO3, ParamAQI,
		ParamTemperature, ParamHumidity, ParamWindSpeed, ParamPressure,
	}
}

// PollutantParameters returns the pollutant concentration columns plus AQI.
func PollutantParameters() []Parameter {
	return []Parameter{ParamPM25, ParamPM10, ParamNO2, ParamSO2, ParamCO, ParamO3, ParamAQI}
}

// WeatherParameters returns the meteorological columns.
func WeatherParameters() []Parameter {
	return []Parameter{ParamTemperature, ParamHumidity, ParamWindSpeed, ParamPressure}
}

// IsValid reports whether p names a known measurement column.
func (p Parameter) IsValid() bool {
	switch p {
	case ParamPM25, ParamPM10, ParamNO2, ParamSO2, ParamCO, ParamO3, ParamAQI,
		ParamTemperature, ParamHumidity, ParamWindSpeed, ParamPressure:
		return true
	}
	return false
}

// String returns the column name.
func (p Parameter) String() string {
	return string(p)
}

// Observation represents one hourly measurement row for a city from one
// provider. Measurement fields use NaN for missing values.
type Observation struct {
	City        string    `json:"city" validate:"required"`
	Timestamp   time.Time `json:"timestamp" validate:"required"`
	Source      string    `json:"source,omitempty"`
	PM25        float64   `json:"pm25"`
	PM10        float64   `json:"pm10"`
	NO2         float64   `json:"no2"`
	SO2         float64   `json:"so2"`
	CO          float64   `json:"co"`
	O3          float64   `json:"o3"`
	AQI         float64   `json:"aqi"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	WindSpeed   float64   `json:"wind_speed"`
	Pressure    float64   `json:"pressure"`
}

// NewObservation returns an Observation with every measurement set to NaN.
func NewObservation(city string, ts time.Time, source string) Observation {
	nan := math.NaN()
	return Observation{
		City:        city,
		Timestamp:   ts,
		Source:      source,
		PM25:        nan,
		PM10:        nan,
		NO2:         nan,
		SO2:         nan,
		CO:          nan,
		O3:          nan,
		AQI:         nan,
		Temperature: nan,
		Humidity:    nan,
		WindSpeed:   nan,
		Pressure:    nan,
	}
}

// IsValid reports whether the observation has the structurally required
// fields (city and timestamp). Measurement values may still be NaN.
func (o *Observation) IsValid() bool {
	return o.City != "" && !o.Timestamp.IsZero()
}

// Value returns the measurement for the given parameter, NaN if the
// parameter is unknown.
func (o *Observation) Value(p Parameter) float64 {
	switch p {
	case ParamPM25:
		return o.PM25
	case ParamPM10:
		return o.PM10
	case ParamNO2:
		return o.NO2
	case ParamSO2:
		return o.SO2
	case ParamCO:
		return o.CO
	case ParamO3:
		return o.O3
	case ParamAQI:
		return o.AQI
	case ParamTemperature:
		return o.Temperature
	case ParamHumidity:
		return o.Humidity
	case ParamWindSpeed:
		return o.WindSpeed
	case ParamPressure:
		return o.Pressure
	}
	return math.NaN()
}

// SetValue assigns the measurement for the given parameter. Unknown
// parameters are ignored.
func (o *Observation) SetValue(p Parameter, v float64) {
	switch p {
	case ParamPM25:
		o.PM25 = v
	case ParamPM10:
		o.PM10 = v
	case ParamNO2:
		o.NO2 = v
	case ParamSO2:
		o.SO2 = v
	case ParamCO:
		o.CO = v
	case ParamO3:
		o.O3 = v
	case ParamAQI:
		o.AQI = v
	case ParamTemperature:
		o.Temperature = v
	case ParamHumidity:
		o.Humidity = v
	case ParamWindSpeed:
		o.WindSpeed = v
	case ParamPressure:
		o.Pressure = v
	}
}

// IsMissing reports whether the measurement for p is absent (NaN).
func (o *Observation) IsMissing(p Parameter) bool {
	return math.IsNaN(o.Value(p))
}
