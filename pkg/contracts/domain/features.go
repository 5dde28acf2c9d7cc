package domain

import (
	"fmt"
	"time"
)

// FeatureVector is one derived numeric row keyed by feature name.
type FeatureVector map[string]float64

// FeatureTable is the dense column-ordered form of engineered features.
// Rows align one-to-one with the source series rows; missing values are NaN.
type FeatureTable struct {
	Columns    []string    `json:"columns"`
	Rows       [][]float64 `json:"rows"`
	Timestamps []time.Time `json:"timestamps"`
}

// NewFeatureTable allocates an empty table for n rows with their timestamps.
func NewFeatureTable(timestamps []time.Time) *FeatureTable {
	return &FeatureTable{
		Rows:       make([][]float64, len(timestamps)),
		Timestamps: timestamps,
	}
}

// NumRows returns the number of feature rows.
func (t *FeatureTable) NumRows() int {
	return len(t.Rows)
}

// NumColumns returns the number of feature columns.
func (t *FeatureTable) NumColumns() int {
	return len(t.Columns)
}

// ColumnIndex returns the position of a named column.
func (t *FeatureTable) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// AddColumn appends a named column. The value count must match the row
// count established by the timestamps.
func (t *FeatureTable) AddColumn(name string, values []float64) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), len(t.Rows))
	}
	if _, exists := t.ColumnIndex(name); exists {
		return fmt.Errorf("column %q already exists", name)
	}
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], values[i])
	}
	return nil
}

// Column returns a copy of one named column.
func (t *FeatureTable) Column(name string) ([]float64, error) {
	idx, ok := t.ColumnIndex(name)
	if !ok {
		return nil, fmt.Errorf("unknown feature column %q", name)
	}
	values := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values, nil
}

// Row materialises row i as a FeatureVector.
func (t *FeatureTable) Row(i int) FeatureVector {
	vec := make(FeatureVector, len(t.Columns))
	for j, name := range t.Columns {
		vec[name] = t.Rows[i][j]
	}
	return vec
}

// SliceRows returns a table over rows [lo, hi) sharing column names but
// with copied row slices.
func (t *FeatureTable) SliceRows(lo, hi int) *FeatureTable {
	if lo < 0 {
		lo = 0
	}
	if hi > len(t.Rows) {
		hi = len(t.Rows)
	}
	if lo >= hi {
		return &FeatureTable{Columns: t.Columns}
	}
	rows := make([][]float64, hi-lo)
	for i := lo; i < hi; i++ {
		row := make([]float64, len(t.Rows[i]))
		copy(row, t.Rows[i])
		rows[i-lo] = row
	}
	timestamps := make([]time.Time, hi-lo)
	copy(timestamps, t.Timestamps[lo:hi])
	return &FeatureTable{Columns: t.Columns, Rows: rows, Timestamps: timestamps}
}

// Matrix returns the raw row-major feature matrix for adapter calls.
func (t *FeatureTable) Matrix() [][]float64 {
	return t.Rows
}
