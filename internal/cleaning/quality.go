package cleaning

import (
	"math"

	"aqicli/pkg/contracts/domain"
)

// snapshotQuality measures dataset quality at one point in the pipeline.
// Completeness is 100 minus the mean missing percentage across all
// measurement columns; consistency is the percentage of rows whose
// pm25/pm10 pair is physically ordered (rows with either value missing
// cannot violate and count as consistent).
func snapshotQuality(s *domain.Series) domain.QualitySnapshot {
	n := s.Len()
	if n == 0 {
		return domain.QualitySnapshot{Completeness: 0, Consistency: 100}
	}

	params := domain.Parameters()
	missingPctSum := 0.0
	for _, p := range params {
		missing := 0
		for i := range s.Observations {
			if s.Observations[i].IsMissing(p) {
				missing++
			}
		}
		missingPctSum += 100 * float64(missing) / float64(n)
	}

	violations := 0
	for i := range s.Observations {
		obs := &s.Observations[i]
		if !math.IsNaN(obs.PM25) && !math.IsNaN(obs.PM10) && obs.PM25 > obs.PM10 {
			violations++
		}
	}

	return domain.QualitySnapshot{
		Completeness: 100 - missingPctSum/float64(len(params)),
		Consistency:  100 * float64(n-violations) / float64(n),
	}
}
