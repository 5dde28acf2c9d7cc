package cleaning

import (
	"math"

	"aqicli/internal/stats"
	"aqicli/pkg/contracts/domain"
)

// minAnomalyWindow is the minimum number of valid prior values required
// before a rolling z-score is meaningful.
const minAnomalyWindow = 3

// sigmaFloor guards against flagging on numerically-zero rolling std.
const sigmaFloor = 1e-9

// detectTemporalAnomalies flags values that depart sharply from their
// recent rolling statistics. The window covers the observations strictly
// before each index: including the candidate value in its own window
// deflates the score enough that a 24-hour window could never reach the
// high-severity threshold.
func detectTemporalAnomalies(s *domain.Series, window int, flagSigma, highSigma float64) []domain.TemporalAnomaly {
	var anomalies []domain.TemporalAnomaly

	for _, p := range domain.Parameters() {
		values := s.Column(p)

		for i, v := range values {
			if math.IsNaN(v) {
				continue
			}

			lo := i - window
			if lo < 0 {
				lo = 0
			}
			prior := stats.Finite(values[lo:i])
			if len(prior) < minAnomalyWindow {
				continue
			}

			mean := stats.Mean(prior)
			sigma := stats.StdDev(prior)
			if math.IsNaN(sigma) || sigma < sigmaFloor {
				continue
			}

			distance := math.Abs(v-mean) / sigma
			if distance <= flagSigma {
				continue
			}

			severity := domain.SeverityMedium
			if distance > highSigma {
				severity = domain.SeverityHigh
			}

			anomalies = append(anomalies, domain.TemporalAnomaly{
				Index:     i,
				Timestamp: s.Observations[i].Timestamp,
				Parameter: p,
				Value:     v,
				Mean:      mean,
				Sigmas:    distance,
				Severity:  severity,
			})
		}
	}

	return anomalies
}
