package features

import (
	"math"
	"time"

	"aqicli/pkg/contracts/domain"
)

// dayOfWeek maps Go weekdays onto the Monday=0 .. Sunday=6 convention used
// by the downstream models.
func dayOfWeek(ts time.Time) int {
	return (int(ts.Weekday()) + 6) % 7
}

func isWeekend(ts time.Time) bool {
	return dayOfWeek(ts) >= 5
}

// isRushHour marks the morning (07-10) and evening (17-20) commute windows,
// boundary hours included.
func isRushHour(ts time.Time) bool {
	h := ts.Hour()
	return (h >= 7 && h <= 10) || (h >= 17 && h <= 20)
}

// seasonIndex returns winter=1, spring=2, summer=3, autumn=4 for use in
// interaction terms. December belongs to winter.
func seasonIndex(m time.Month) int {
	switch m {
	case time.December, time.January, time.February:
		return 1
	case time.March, time.April, time.May:
		return 2
	case time.June, time.July, time.August:
		return 3
	default:
		return 4
	}
}

// timeOfDay buckets the hour into night [0,6), morning [6,12),
// afternoon [12,18) and evening [18,24).
func timeOfDay(ts time.Time) int {
	return ts.Hour() / 6
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func cyclical(value, period float64) (sin, cos float64) {
	angle := 2 * math.Pi * value / period
	return math.Sin(angle), math.Cos(angle)
}

// calendarColumns lists every feature derivable from the timestamp alone, in
// output order. These never depend on observed values and are always present.
var calendarColumns = []struct {
	name  string
	value func(ts time.Time) float64
}{
	{"hour", func(ts time.Time) float64 { return float64(ts.Hour()) }},
	{"day_of_week", func(ts time.Time) float64 { return float64(dayOfWeek(ts)) }},
	{"month", func(ts time.Time) float64 { return float64(ts.Month()) }},
	{"quarter", func(ts time.Time) float64 { return float64((int(ts.Month())-1)/3 + 1) }},
	{"day_of_year", func(ts time.Time) float64 { return float64(ts.YearDay()) }},
	{"week_of_year", func(ts time.Time) float64 { _, week := ts.ISOWeek(); return float64(week) }},
	{"hour_sin", func(ts time.Time) float64 { s, _ := cyclical(float64(ts.Hour()), 24); return s }},
	{"hour_cos", func(ts time.Time) float64 { _, c := cyclical(float64(ts.Hour()), 24); return c }},
	{"dow_sin", func(ts time.Time) float64 { s, _ := cyclical(float64(dayOfWeek(ts)), 7); return s }},
	{"dow_cos", func(ts time.Time) float64 { _, c := cyclical(float64(dayOfWeek(ts)), 7); return c }},
	{"month_sin", func(ts time.Time) float64 { s, _ := cyclical(float64(ts.Month()), 12); return s }},
	{"month_cos", func(ts time.Time) float64 { _, c := cyclical(float64(ts.Month()), 12); return c }},
	{"doy_sin", func(ts time.Time) float64 { s, _ := cyclical(float64(ts.YearDay()), 365); return s }},
	{"doy_cos", func(ts time.Time) float64 { _, c := cyclical(float64(ts.YearDay()), 365); return c }},
	{"season_winter", func(ts time.Time) float64 { return boolToFloat(seasonIndex(ts.Month()) == 1) }},
	{"season_spring", func(ts time.Time) float64 { return boolToFloat(seasonIndex(ts.Month()) == 2) }},
	{"season_summer", func(ts time.Time) float64 { return boolToFloat(seasonIndex(ts.Month()) == 3) }},
	{"season_autumn", func(ts time.Time) float64 { return boolToFloat(seasonIndex(ts.Month()) == 4) }},
	{"is_weekend", func(ts time.Time) float64 { return boolToFloat(isWeekend(ts)) }},
	{"is_rush_hour", func(ts time.Time) float64 { return boolToFloat(isRushHour(ts)) }},
	{"tod_night", func(ts time.Time) float64 { return boolToFloat(timeOfDay(ts) == 0) }},
	{"tod_morning", func(ts time.Time) float64 { return boolToFloat(timeOfDay(ts) == 1) }},
	{"tod_afternoon", func(ts time.Time) float64 { return boolToFloat(timeOfDay(ts) == 2) }},
	{"tod_evening", func(ts time.Time) float64 { return boolToFloat(timeOfDay(ts) == 3) }},
}

// addCalendarColumns appends the full calendar block to the table.
func addCalendarColumns(t *domain.FeatureTable) error {
	for _, col := range calendarColumns {
		values := make([]float64, len(t.Timestamps))
		for i, ts := range t.Timestamps {
			values[i] = col.value(ts)
		}
		if err := t.AddColumn(col.name, values); err != nil {
			return err
		}
	}
	return nil
}
