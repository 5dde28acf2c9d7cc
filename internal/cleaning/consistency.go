package cleaning

import (
	"context"
	"math"
	"time"

	"aqicli/internal/stats"
	"aqicli/pkg/contracts/domain"
)

type groupKey struct {
	city string
	ts   time.Time
}

type sourceGroup struct {
	pm25 []float64
	aqi  []float64
	seen map[string]bool
}

// CrossSourceConsistency scores agreement between providers reporting
// the same (city, timestamp). Groups with at least two sources are
// checked for pm25 coefficient-of-variation and absolute AQI spread;
// either exceeding its threshold flags the group as a discrepancy.
//
// Malformed rows (missing city, timestamp, or source, or a duplicate
// (city, timestamp, source) triple) are dropped from the statistics and
// surfaced as a count, never as an error.
func (c *Cleaner) CrossSourceConsistency(ctx context.Context, observations []domain.Observation) (*domain.ConsistencyReport, error) {
	if len(observations) == 0 {
		return nil, newEmptyInputError("no observations for consistency check")
	}

	groups := make(map[groupKey]*sourceGroup)
	cities := make(map[string]bool)
	malformed := 0

	for _, obs := range observations {
		if obs.City == "" || obs.Timestamp.IsZero() || obs.Source == "" {
			malformed++
			continue
		}

		key := groupKey{city: obs.City, ts: obs.Timestamp}
		g := groups[key]
		if g == nil {
			g = &sourceGroup{seen: make(map[string]bool)}
			groups[key] = g
		}
		if g.seen[obs.Source] {
			malformed++
			continue
		}
		g.seen[obs.Source] = true
		cities[obs.City] = true

		if !math.IsNaN(obs.PM25) {
			g.pm25 = append(g.pm25, obs.PM25)
		}
		if !math.IsNaN(obs.AQI) {
			g.aqi = append(g.aqi, obs.AQI)
		}
	}

	report := &domain.ConsistencyReport{MalformedRows: malformed}
	if len(cities) == 1 {
		for city := range cities {
			report.City = city
		}
	}

	for _, g := range groups {
		if len(g.seen) < 2 {
			continue
		}
		report.GroupsChecked++

		flaggedCV := false
		if len(g.pm25) >= 2 {
			cv := stats.CoefficientOfVariation(g.pm25)
			if !math.IsNaN(cv) && cv > c.cfg.CVThreshold {
				flaggedCV = true
				report.FlaggedCV++
			}
		}

		flaggedAQI := false
		if len(g.aqi) >= 2 {
			lo, hi := g.aqi[0], g.aqi[0]
			for _, v := range g.aqi[1:] {
				lo = math.Min(lo, v)
				hi = math.Max(hi, v)
			}
			if hi-lo > c.cfg.AQIDifferenceThreshold {
				flaggedAQI = true
				report.FlaggedAQIDiff++
			}
		}

		if flaggedCV || flaggedAQI {
			report.Flagged++
		}
	}

	if report.GroupsChecked > 0 {
		report.AgreementScore = 100 * (1 - float64(report.Flagged)/float64(report.GroupsChecked))
	} else {
		report.AgreementScore = 100
	}

	if malformed > 0 {
		c.logger.WarnContext(ctx, "dropped malformed rows from consistency check",
			"city", report.City,
			"malformed_rows", malformed,
		)
	}

	c.logger.InfoContext(ctx, "cross-source consistency checked",
		"city", report.City,
		"groups_checked", report.GroupsChecked,
		"flagged", report.Flagged,
		"agreement_score", report.AgreementScore,
	)

	return report, nil
}

// mergeSources consolidates multi-provider observations into one series
// row per timestamp, averaging finite values per parameter. Rows the
// consistency check would call malformed are skipped here too, so the
// two views stay aligned.
func mergeSources(city string, observations []domain.Observation) (*domain.Series, int) {
	type agg struct {
		sum   map[domain.Parameter]float64
		count map[domain.Parameter]int
	}

	byTime := make(map[time.Time]*agg)
	seen := make(map[groupKey]map[string]bool)
	dropped := 0

	for _, obs := range observations {
		if obs.City == "" || obs.Timestamp.IsZero() || obs.Source == "" || obs.City != city {
			dropped++
			continue
		}
		key := groupKey{city: obs.City, ts: obs.Timestamp}
		if seen[key] == nil {
			seen[key] = make(map[string]bool)
		}
		if seen[key][obs.Source] {
			dropped++
			continue
		}
		seen[key][obs.Source] = true

		a := byTime[obs.Timestamp]
		if a == nil {
			a = &agg{
				sum:   make(map[domain.Parameter]float64),
				count: make(map[domain.Parameter]int),
			}
			byTime[obs.Timestamp] = a
		}
		for _, p := range domain.Parameters() {
			v := obs.Value(p)
			if !math.IsNaN(v) {
				a.sum[p] += v
				a.count[p]++
			}
		}
	}

	merged := make([]domain.Observation, 0, len(byTime))
	for ts, a := range byTime {
		row := domain.NewObservation(city, ts, "merged")
		for p, n := range a.count {
			row.SetValue(p, a.sum[p]/float64(n))
		}
		merged = append(merged, row)
	}

	return domain.NewSeries(city, merged), dropped
}
