package export

import (
	"fmt"
	"math"
	"strconv"
)

// formatValue renders a numeric CSV cell at full precision; missing values
// become empty cells, which the ingest loader reads back as NaN.
func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// formatMetric renders a metric for display tables with fixed precision;
// measures a validator did not compute print as n/a.
func formatMetric(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", v)
}

// formatPercent renders a ratio as a signed percentage.
func formatPercent(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%+.1f%%", v*100)
}
