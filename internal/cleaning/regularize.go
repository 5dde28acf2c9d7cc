package cleaning

import (
	"time"

	"aqicli/pkg/contracts/domain"
)

// regularize rebuilds the hourly grid by inserting all-missing rows
// wherever consecutive observations are more than one hour apart. Lag
// and rolling features are index-based downstream, so a gapless grid is
// what makes "offset 24" mean "24 hours".
//
// The grid is anchored at each gap's left edge; an inserted row carries
// the series' city and an empty source. Returns the number of rows
// inserted.
func regularize(s *domain.Series) int {
	if s.Len() < 2 {
		return 0
	}

	out := make([]domain.Observation, 0, s.Len())
	inserted := 0

	for i, obs := range s.Observations {
		if i > 0 {
			prev := out[len(out)-1].Timestamp
			for ts := prev.Add(time.Hour); ts.Before(obs.Timestamp); ts = ts.Add(time.Hour) {
				out = append(out, domain.NewObservation(s.City, ts, ""))
				inserted++
			}
		}
		out = append(out, obs)
	}

	s.Observations = out
	return inserted
}
