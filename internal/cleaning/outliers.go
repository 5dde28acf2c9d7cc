package cleaning

import (
	"math"

	"aqicli/internal/stats"
	"aqicli/pkg/contracts/domain"
)

// OutlierMask marks detected outliers per parameter. Each slice is
// index-aligned with the series the mask was computed from.
type OutlierMask map[domain.Parameter][]bool

// Count returns the total number of flagged values across all parameters.
func (m OutlierMask) Count() int {
	total := 0
	for _, flags := range m {
		for _, f := range flags {
			if f {
				total++
			}
		}
	}
	return total
}

// Indices returns the flagged row indices for one parameter.
func (m OutlierMask) Indices(p domain.Parameter) []int {
	var idx []int
	for i, f := range m[p] {
		if f {
			idx = append(idx, i)
		}
	}
	return idx
}

// merge ORs other into m, growing m as needed.
func (m OutlierMask) merge(other OutlierMask) {
	for p, flags := range other {
		if _, ok := m[p]; !ok {
			m[p] = make([]bool, len(flags))
		}
		for i, f := range flags {
			if f {
				m[p][i] = true
			}
		}
	}
}

// DefaultDomainBounds returns the physically plausible interval per
// parameter. Values are concentrations in µg/m³ except CO (µg/m³ but
// reported in the thousands), temperature in °C, humidity in %,
// pressure in hPa. Wind speed carries no upper plausibility bound and
// is governed by the non-negativity constraint instead.
func DefaultDomainBounds() map[domain.Parameter]domain.Bounds {
	return map[domain.Parameter]domain.Bounds{
		domain.ParamPM25:        {Min: 0, Max: 999},
		domain.ParamPM10:        {Min: 0, Max: 999},
		domain.ParamNO2:         {Min: 0, Max: 2000},
		domain.ParamSO2:         {Min: 0, Max: 1000},
		domain.ParamCO:          {Min: 0, Max: 50000},
		domain.ParamO3:          {Min: 0, Max: 500},
		domain.ParamAQI:         {Min: 0, Max: 999},
		domain.ParamTemperature: {Min: -50, Max: 60},
		domain.ParamHumidity:    {Min: 0, Max: 100},
		domain.ParamPressure:    {Min: 850, Max: 1100},
	}
}

// zscoreMask flags values whose population z-score magnitude exceeds
// threshold. Missing values never flag, and a constant column yields no
// flags (its z-scores are undefined).
func zscoreMask(values []float64, threshold float64) []bool {
	flags := make([]bool, len(values))
	scores := stats.ZScores(values)
	for i, z := range scores {
		if !math.IsNaN(z) && math.Abs(z) > threshold {
			flags[i] = true
		}
	}
	return flags
}

// iqrMask flags values outside [Q1 − k·IQR, Q3 + k·IQR].
func iqrMask(values []float64, k float64) []bool {
	flags := make([]bool, len(values))

	q1 := stats.Percentile(values, 0.25)
	q3 := stats.Percentile(values, 0.75)
	if math.IsNaN(q1) || math.IsNaN(q3) {
		return flags
	}

	iqr := q3 - q1
	lo, hi := q1-k*iqr, q3+k*iqr
	for i, v := range values {
		if !math.IsNaN(v) && (v < lo || v > hi) {
			flags[i] = true
		}
	}
	return flags
}

// boundsMask flags values outside the closed physical interval.
func boundsMask(values []float64, b domain.Bounds) []bool {
	flags := make([]bool, len(values))
	for i, v := range values {
		if !math.IsNaN(v) && !b.Contains(v) {
			flags[i] = true
		}
	}
	return flags
}

// capColumn clips flagged values to the column's configured percentile
// band and returns how many values changed. Percentiles are computed
// over the column as it stands, outliers included, so a capped value
// lands on the empirical p5/p95 the report references.
func capColumn(values []float64, mask []bool, pLo, pHi float64) int {
	lo := stats.Percentile(values, pLo)
	hi := stats.Percentile(values, pHi)
	if math.IsNaN(lo) || math.IsNaN(hi) {
		return 0
	}

	changed := 0
	for i, flagged := range mask {
		if !flagged || math.IsNaN(values[i]) {
			continue
		}
		capped := math.Min(math.Max(values[i], lo), hi)
		if capped != values[i] {
			values[i] = capped
			changed++
		}
	}
	return changed
}

// removeColumn nulls flagged values, leaving row count unchanged.
func removeColumn(values []float64, mask []bool) int {
	removed := 0
	for i, flagged := range mask {
		if flagged && !math.IsNaN(values[i]) {
			values[i] = math.NaN()
			removed++
		}
	}
	return removed
}

// interpolateColumn nulls flagged values and re-fills them from their
// neighbours: linear interpolation for interior gaps, nearest valid
// value at the boundaries.
func interpolateColumn(values []float64, mask []bool) int {
	nulled := removeColumn(values, mask)
	if nulled == 0 {
		return 0
	}

	interpolateGaps(values)
	forwardFill(values, 0)
	backwardFill(values, 0)
	return nulled
}
