package features

import (
	"fmt"
	"math"

	"aqicli/internal/stats"
	"aqicli/pkg/contracts/domain"
)

// BoundaryPolicy controls how a windowed feature behaves while the series is
// still shorter than the window.
type BoundaryPolicy string

const (
	// PolicyPartial evaluates over however many rows are available, subject
	// to MinPeriods.
	PolicyPartial BoundaryPolicy = "partial"
	// PolicyNull emits NaN until a full window of history exists.
	PolicyNull BoundaryPolicy = "null"
)

// WindowSpec describes a trailing window over hourly rows. Size counts rows
// including the current one, MinPeriods is the minimum number of finite
// values required to emit a result.
type WindowSpec struct {
	Size       int
	MinPeriods int
	Policy     BoundaryPolicy
}

// rollingSpec is the window used for rolling aggregates of a given size.
func rollingSpec(size int) WindowSpec {
	return WindowSpec{Size: size, MinPeriods: 1, Policy: PolicyPartial}
}

// rollingApply evaluates fn over the finite values of each trailing window.
func rollingApply(values []float64, spec WindowSpec, fn func([]float64) float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		lo := i - spec.Size + 1
		if lo < 0 {
			if spec.Policy == PolicyNull {
				out[i] = math.NaN()
				continue
			}
			lo = 0
		}
		finite := stats.Finite(values[lo : i+1])
		if len(finite) < spec.MinPeriods {
			out[i] = math.NaN()
			continue
		}
		out[i] = fn(finite)
	}
	return out
}

// lagColumn shifts values forward by offset rows. The first offset rows have
// no history and are NaN.
func lagColumn(values []float64, offset int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i < offset {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[i-offset]
	}
	return out
}

// diffColumn returns values[i] - values[i-step]. Rows without enough history,
// or where either operand is missing, are NaN.
func diffColumn(values []float64, step int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i < step {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[i] - values[i-step]
	}
	return out
}

// pctChangeColumn returns the fractional change over step rows. NaN when
// history is short, either operand is missing, or the base value is zero.
func pctChangeColumn(values []float64, step int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i < step {
			out[i] = math.NaN()
			continue
		}
		base := values[i-step]
		if math.IsNaN(base) || base == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (values[i] - base) / base
	}
	return out
}

// rollingAggregates holds the per-window statistics emitted for each source
// column, in output order.
var rollingAggregates = []struct {
	name string
	fn   func([]float64) float64
}{
	{"mean", stats.Mean},
	{"std", stats.StdDev},
	{"min", stats.Min},
	{"max", stats.Max},
}

// addWindowColumns appends rolling aggregates, lags, differences and
// fractional changes for one source column.
func addWindowColumns(t *domain.FeatureTable, param domain.Parameter, values []float64, windows, lags, diffs []int) error {
	for _, size := range windows {
		spec := rollingSpec(size)
		for _, agg := range rollingAggregates {
			name := fmt.Sprintf("%s_roll_%s_%d", param, agg.name, size)
			if err := t.AddColumn(name, rollingApply(values, spec, agg.fn)); err != nil {
				return err
			}
		}
	}
	for _, offset := range lags {
		name := fmt.Sprintf("%s_lag_%d", param, offset)
		if err := t.AddColumn(name, lagColumn(values, offset)); err != nil {
			return err
		}
	}
	for _, step := range diffs {
		if err := t.AddColumn(fmt.Sprintf("%s_diff_%d", param, step), diffColumn(values, step)); err != nil {
			return err
		}
		if err := t.AddColumn(fmt.Sprintf("%s_pct_change_%d", param, step), pctChangeColumn(values, step)); err != nil {
			return err
		}
	}
	return nil
}
