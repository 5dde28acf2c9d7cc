package domain

import "time"

// Segment is one contiguous, time-ordered slice of rows [Start, End).
type Segment struct {
	Start     int       `json:"start"`
	End       int       `json:"end"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Len returns the number of rows in the segment.
func (s Segment) Len() int {
	return s.End - s.Start
}

// SplitResult holds the chronological train/validation/test partition of a
// dataset. Train strictly precedes validation, which strictly precedes test;
// the segments are disjoint and their union covers every row.
type SplitResult struct {
	Train      Segment `json:"train"`
	Validation Segment `json:"validation"`
	Test       Segment `json:"test"`
}

// TotalRows returns the number of rows covered by the three segments.
func (r SplitResult) TotalRows() int {
	return r.Train.Len() + r.Validation.Len() + r.Test.Len()
}
