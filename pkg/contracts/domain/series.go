package domain

import (
	"fmt"
	"sort"
	"time"
)

// Series is a time-ascending sequence of Observations for one city.
// Gaps are allowed; duplicate timestamps are not.
type Series struct {
	City         string        `json:"city"`
	Observations []Observation `json:"observations"`
}

// NewSeries constructs a Series and sorts its observations by timestamp.
func NewSeries(city string, observations []Observation) *Series {
	s := &Series{City: city, Observations: observations}
	s.SortByTime()
	return s
}

// Len returns the number of observations.
func (s *Series) Len() int {
	return len(s.Observations)
}

// IsEmpty reports whether the series has no observations.
func (s *Series) IsEmpty() bool {
	return len(s.Observations) == 0
}

// SortByTime sorts observations ascending by timestamp. The sort is stable
// so equal timestamps keep their input order until Validate rejects them.
func (s *Series) SortByTime() {
	sort.SliceStable(s.Observations, func(i, j int) bool {
		return s.Observations[i].Timestamp.Before(s.Observations[j].Timestamp)
	})
}

// Validate checks the series invariants: at least one observation,
// strictly increasing timestamps (which implies uniqueness), and a
// consistent city on every row.
func (s *Series) Validate() error {
	if len(s.Observations) == 0 {
		return fmt.Errorf("series for city %q is empty", s.City)
	}
	for i, obs := range s.Observations {
		if obs.City != s.City {
			return fmt.Errorf("observation %d belongs to city %q, series is %q", i, obs.City, s.City)
		}
		if obs.Timestamp.IsZero() {
			return fmt.Errorf("observation %d has no timestamp", i)
		}
		if i > 0 && !s.Observations[i-1].Timestamp.Before(obs.Timestamp) {
			return fmt.Errorf("timestamps not strictly increasing at index %d (%s >= %s)",
				i, s.Observations[i-1].Timestamp.Format(time.RFC3339), obs.Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// Timestamps returns the timestamp of every observation in order.
func (s *Series) Timestamps() []time.Time {
	ts := make([]time.Time, len(s.Observations))
	for i, obs := range s.Observations {
		ts[i] = obs.Timestamp
	}
	return ts
}

// Column returns a copy of the values of one parameter in row order.
func (s *Series) Column(p Parameter) []float64 {
	values := make([]float64, len(s.Observations))
	for i := range s.Observations {
		values[i] = s.Observations[i].Value(p)
	}
	return values
}

// SetColumn writes values back into one parameter column. The length must
// match the series length.
func (s *Series) SetColumn(p Parameter, values []float64) error {
	if len(values) != len(s.Observations) {
		return fmt.Errorf("column length %d does not match series length %d", len(values), len(s.Observations))
	}
	for i := range s.Observations {
		s.Observations[i].SetValue(p, values[i])
	}
	return nil
}

// MissingCount returns the number of NaN values in one parameter column.
func (s *Series) MissingCount(p Parameter) int {
	count := 0
	for i := range s.Observations {
		if s.Observations[i].IsMissing(p) {
			count++
		}
	}
	return count
}

// Clone returns a deep copy of the series.
func (s *Series) Clone() *Series {
	observations := make([]Observation, len(s.Observations))
	copy(observations, s.Observations)
	return &Series{City: s.City, Observations: observations}
}

// Slice returns a new Series over rows [lo, hi). The observation slice is
// copied so mutations of the result do not alias the original.
func (s *Series) Slice(lo, hi int) *Series {
	if lo < 0 {
		lo = 0
	}
	if hi > len(s.Observations) {
		hi = len(s.Observations)
	}
	if lo >= hi {
		return &Series{City: s.City}
	}
	observations := make([]Observation, hi-lo)
	copy(observations, s.Observations[lo:hi])
	return &Series{City: s.City, Observations: observations}
}
