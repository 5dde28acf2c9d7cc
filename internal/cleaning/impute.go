package cleaning

import (
	"math"

	"aqicli/internal/stats"
	"aqicli/pkg/contracts/domain"
)

// imputeColumn fills missing values in one column and returns the number
// of values filled. Implementations mutate values in place.
type imputeColumn func(values []float64, cfg Config) int

// imputers dispatches imputation methods through a closed lookup table so
// an unknown method is a configuration error, never a silent no-op.
var imputers = map[domain.ImputationMethod]imputeColumn{
	domain.ImputeForward: func(v []float64, cfg Config) int {
		return forwardFill(v, 0)
	},
	domain.ImputeBackward: func(v []float64, cfg Config) int {
		return backwardFill(v, 0)
	},
	domain.ImputeInterpolate: func(v []float64, cfg Config) int {
		return interpolateGaps(v)
	},
	domain.ImputeMean: func(v []float64, cfg Config) int {
		return fillConstant(v, stats.Mean(stats.Finite(v)))
	},
	domain.ImputeMedian: func(v []float64, cfg Config) int {
		return fillConstant(v, stats.Median(v))
	},
	domain.ImputeHybrid: hybridFill,
}

// hybridFill runs the ordered hybrid pipeline, each stage filling only
// the values still missing after the previous one:
// linear interpolation, forward fill (limited), backward fill (limited),
// trailing rolling mean, column median. The median fallback guarantees a
// column with at least one observed value ends fully filled.
func hybridFill(values []float64, cfg Config) int {
	filled := interpolateGaps(values)
	filled += forwardFill(values, cfg.ForwardFillLimit)
	filled += backwardFill(values, cfg.BackwardFillLimit)
	filled += rollingMeanFill(values, cfg.RollingFillWindow)
	filled += fillConstant(values, stats.Median(values))
	return filled
}

// forwardFill propagates the last seen value into subsequent gaps.
// limit caps the number of consecutive steps filled per gap; 0 means
// unlimited.
func forwardFill(values []float64, limit int) int {
	filled := 0
	last := math.NaN()
	run := 0

	for i, v := range values {
		if !math.IsNaN(v) {
			last = v
			run = 0
			continue
		}
		if math.IsNaN(last) {
			continue
		}
		run++
		if limit > 0 && run > limit {
			continue
		}
		values[i] = last
		filled++
	}

	return filled
}

// backwardFill propagates the next seen value backwards into gaps.
// limit caps the number of consecutive steps filled per gap; 0 means
// unlimited.
func backwardFill(values []float64, limit int) int {
	filled := 0
	next := math.NaN()
	run := 0

	for i := len(values) - 1; i >= 0; i-- {
		v := values[i]
		if !math.IsNaN(v) {
			next = v
			run = 0
			continue
		}
		if math.IsNaN(next) {
			continue
		}
		run++
		if limit > 0 && run > limit {
			continue
		}
		values[i] = next
		filled++
	}

	return filled
}

// interpolateGaps linearly interpolates interior gaps, using index
// distance as the abscissa. Gaps at the series boundaries have only one
// anchor and are left for the later fill stages.
func interpolateGaps(values []float64) int {
	filled := 0
	prev := -1 // index of last finite value

	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			step := (v - values[prev]) / float64(i-prev)
			for j := prev + 1; j < i; j++ {
				values[j] = values[prev] + step*float64(j-prev)
				filled++
			}
		}
		prev = i
	}

	return filled
}

// rollingMeanFill replaces each remaining gap with the mean of up to
// window prior values, requiring at least one finite value in the
// window. Earlier fills feed later windows, matching a sequential pass
// over an hourly series.
func rollingMeanFill(values []float64, window int) int {
	if window <= 0 {
		return 0
	}

	filled := 0
	for i, v := range values {
		if !math.IsNaN(v) {
			continue
		}
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		sum, n := 0.0, 0
		for j := lo; j < i; j++ {
			if !math.IsNaN(values[j]) {
				sum += values[j]
				n++
			}
		}
		if n == 0 {
			continue
		}
		values[i] = sum / float64(n)
		filled++
	}

	return filled
}

// fillConstant replaces every gap with v. A NaN fill value (empty
// column) leaves the gaps untouched.
func fillConstant(values []float64, v float64) int {
	if math.IsNaN(v) {
		return 0
	}

	filled := 0
	for i, x := range values {
		if math.IsNaN(x) {
			values[i] = v
			filled++
		}
	}

	return filled
}
