// Package stats provides the shared statistical primitives used by the
// cleaning, validation, and benchmark packages. Moment calculations are
// delegated to gonum; percentiles use linear interpolation at rank (n-1)*p
// so capping thresholds land exactly where the quality rules expect them.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Finite returns the values that are neither NaN nor infinite.
func Finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// Mean returns the arithmetic mean, NaN for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.Mean(values, nil)
}

// Min returns the smallest value, NaN for empty input.
func Min(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return floats.Min(values)
}

// Max returns the largest value, NaN for empty input.
func Max(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return floats.Max(values)
}

// StdDev returns the sample standard deviation (n-1 denominator), NaN when
// fewer than two values are given.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	return stat.StdDev(values, nil)
}

// PopStdDev returns the population standard deviation (n denominator), NaN
// for empty input.
func PopStdDev(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.PopStdDev(values, nil)
}

// Variance returns the sample variance, NaN when fewer than two values are
// given.
func Variance(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	return stat.Variance(values, nil)
}

// PopVariance returns the population variance, NaN for empty input.
func PopVariance(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.PopVariance(values, nil)
}

// Percentile returns the value at percentile p in [0,1] using linear
// interpolation between closest ranks. NaN and infinite values are ignored;
// the result is NaN when no finite values remain.
func Percentile(values []float64, p float64) float64 {
	finite := Finite(values)
	if len(finite) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(finite))
	copy(sorted, finite)
	sort.Float64s(sorted)

	n := len(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	index := p * float64(n-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Median returns the 50th percentile of the finite values.
func Median(values []float64) float64 {
	return Percentile(values, 0.5)
}

// ZScores standardises values against the finite population mean and
// standard deviation. Non-finite inputs map to NaN; a zero or undefined
// deviation yields all-NaN scores.
func ZScores(values []float64) []float64 {
	finite := Finite(values)
	scores := make([]float64, len(values))
	mean := Mean(finite)
	sigma := PopStdDev(finite)
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.IsNaN(sigma) || sigma == 0 {
			scores[i] = math.NaN()
			continue
		}
		scores[i] = (v - mean) / sigma
	}
	return scores
}

// CoefficientOfVariation returns population standard deviation divided by
// the mean, NaN when the mean is zero or no finite values exist.
func CoefficientOfVariation(values []float64) float64 {
	finite := Finite(values)
	if len(finite) == 0 {
		return math.NaN()
	}
	mean := Mean(finite)
	if mean == 0 {
		return math.NaN()
	}
	return PopStdDev(finite) / mean
}

// RSquared returns the coefficient of determination of predicted against
// actual, NaN when the actuals are constant (undefined total variance).
func RSquared(actual, predicted []float64) float64 {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return math.NaN()
	}
	if PopVariance(actual) == 0 {
		return math.NaN()
	}
	return stat.RSquaredFrom(predicted, actual, nil)
}
