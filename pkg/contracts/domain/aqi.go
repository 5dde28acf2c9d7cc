package domain

import "math"

// AQIBand is one severity stratum of the Air Quality Index scale.
type AQIBand struct {
	Name  string  `json:"name" yaml:"name"`
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"` // inclusive; +Inf for the open top band
}

// Contains reports whether v falls inside the band.
func (b AQIBand) Contains(v float64) bool {
	return v >= b.Lower && v <= b.Upper
}

// DefaultAQIBands returns the standard six-band US EPA stratification used
// for per-band metric reporting.
func DefaultAQIBands() []AQIBand {
	return []AQIBand{
		{Name: "Good", Lower: 0, Upper: 50},
		{Name: "Moderate", Lower: 51, Upper: 100},
		{Name: "Unhealthy-Sensitive", Lower: 101, Upper: 150},
		{Name: "Unhealthy", Lower: 151, Upper: 200},
		{Name: "Very-Unhealthy", Lower: 201, Upper: 300},
		{Name: "Hazardous", Lower: 301, Upper: math.Inf(1)},
	}
}

// BandFor returns the band containing v, or false when v is NaN or
// negative beyond every band.
func BandFor(bands []AQIBand, v float64) (AQIBand, bool) {
	if math.IsNaN(v) {
		return AQIBand{}, false
	}
	for _, b := range bands {
		if b.Contains(v) {
			return b, true
		}
	}
	return AQIBand{}, false
}
