// Package features turns cleaned hourly air-quality series into dense
// feature tables for the forecasting validators. Each output row aligns
// with exactly one input row; features that need more history than a row
// has are NaN, never imputed here.
//
// # Feature blocks
//
//   - calendar: raw time fields, sin/cos cyclical encodings, season and
//     time-of-day one-hots, weekend and rush-hour indicators
//   - ratios: pollutant ratios with an epsilon guard on the denominator
//   - pollutant_index: fixed-weight composite across the six pollutants
//   - interactions: weather/pollutant and calendar/pollutant products
//   - windows: rolling mean/std/min/max, lags, differences and
//     fractional changes per pollutant column and AQI
//
// Rolling aggregates evaluate partial windows at the start of a series
// (minimum one finite value), while lags and differences stay NaN until a
// full window of history exists. A feature group whose source columns
// carry no data at all is skipped and logged rather than zero-filled, so
// a missing weather feed degrades the table instead of poisoning it.
//
// # Architecture
//
//   - engineer.go: Config and the Engineer orchestrator
//   - calendar.go: timestamp-derived columns
//   - derived.go: ratios, composite index, interaction terms
//   - windows.go: WindowSpec and the rolling/lag/diff builders
package features
