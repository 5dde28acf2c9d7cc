package validation

import (
	"fmt"
	"math"

	apperrors "aqicli/internal/errors"
	"aqicli/internal/stats"
	"aqicli/pkg/contracts/domain"
)

// mapeFloor is the |actual| below which a row is excluded from MAPE so
// near-zero targets cannot blow the percentage up.
const mapeFloor = 1e-10

// Evaluate computes holdout error measures over aligned actual and
// predicted vectors. Rows where either side is non-finite are skipped;
// MAPE additionally skips near-zero actuals and reports that count.
// The forecast-only measures, directional accuracy and skill, stay NaN
// here and are filled by the forecasting validator.
func Evaluate(actual, predicted []float64) (domain.Metrics, error) {
	if len(actual) != len(predicted) {
		return domain.Metrics{}, apperrors.NewDataQualityError(
			fmt.Sprintf("actual and predicted lengths differ: %d != %d", len(actual), len(predicted)), nil)
	}

	m := domain.NewMetrics()

	var (
		act, pred []float64
		absErrs   []float64
		sqSum     float64
		absSum    float64
		biasSum   float64
		pctSum    float64
		pctRows   int
		maxAbs    float64
	)
	for i := range actual {
		a, p := actual[i], predicted[i]
		if !isFinite(a) || !isFinite(p) {
			continue
		}
		diff := p - a
		abs := math.Abs(diff)

		act = append(act, a)
		pred = append(pred, p)
		absErrs = append(absErrs, abs)
		sqSum += diff * diff
		absSum += abs
		biasSum += diff
		if abs > maxAbs {
			maxAbs = abs
		}
		if math.Abs(a) < mapeFloor {
			m.MAPESkippedRows++
		} else {
			pctSum += abs / math.Abs(a) * 100
			pctRows++
		}
	}

	n := len(act)
	m.Samples = n
	if n == 0 {
		return m, apperrors.NewDataQualityError("no overlapping finite rows to evaluate", nil)
	}

	m.RMSE = math.Sqrt(sqSum / float64(n))
	m.MAE = absSum / float64(n)
	m.Bias = biasSum / float64(n)
	m.MaxError = maxAbs
	m.MedianAbsError = stats.Median(absErrs)
	m.R2 = stats.RSquared(act, pred)
	if pctRows > 0 {
		m.MAPE = pctSum / float64(pctRows)
	}

	return m, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// rmseOf is Evaluate reduced to the single measure the skill score needs.
// NaN when no row pair is finite.
func rmseOf(actual, predicted []float64) float64 {
	var sqSum float64
	n := 0
	for i := range actual {
		if !isFinite(actual[i]) || !isFinite(predicted[i]) {
			continue
		}
		diff := predicted[i] - actual[i]
		sqSum += diff * diff
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return math.Sqrt(sqSum / float64(n))
}

// maeOf computes the mean absolute error over finite pairs, NaN when no
// pair is finite.
func maeOf(actual, predicted []float64) float64 {
	var absSum float64
	n := 0
	for i := range actual {
		if !isFinite(actual[i]) || !isFinite(predicted[i]) {
			continue
		}
		absSum += math.Abs(predicted[i] - actual[i])
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return absSum / float64(n)
}

// directionalAccuracy is the fraction of rows whose predicted movement
// direction, relative to the value known at the feature row, matches the
// actual direction. Zero deltas only match zero deltas. NaN when no row
// is comparable.
func directionalAccuracy(reference, actual, predicted []float64) float64 {
	matches, total := 0, 0
	for i := range reference {
		if !isFinite(reference[i]) || !isFinite(actual[i]) || !isFinite(predicted[i]) {
			continue
		}
		total++
		if sign(predicted[i]-reference[i]) == sign(actual[i]-reference[i]) {
			matches++
		}
	}
	if total == 0 {
		return math.NaN()
	}
	return float64(matches) / float64(total)
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// skillScore is 1 - RMSE(model)/RMSE(reference baseline). Positive means
// the model beats the baseline; negative is a valid, reportable outcome.
func skillScore(modelRMSE, baselineRMSE float64) float64 {
	if !isFinite(modelRMSE) || !isFinite(baselineRMSE) || baselineRMSE == 0 {
		return math.NaN()
	}
	return 1 - modelRMSE/baselineRMSE
}
