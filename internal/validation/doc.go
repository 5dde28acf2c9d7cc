// Package validation scores forecasting models against held-out air
// quality data. It answers three questions about every model: how well
// it reconstructs a city it trained on, how much it degrades when moved
// to a city it never saw, and how far ahead it stays better than the
// trivial baselines.
//
// Evaluation is chronological everywhere. Holdout units fit on the past
// and score the future of the same city; forecasting units align each
// feature row with a target a fixed number of hours ahead and replay
// history with an expanding walk-forward window, retraining before every
// evaluation point. Targets are never visible at fit time.
//
// Forecast results carry two measures beyond the standard error stats:
// directional accuracy, the share of evaluations where the predicted
// movement from the current value has the right sign, and the skill
// score 1 - RMSE(model)/RMSE(persistence). Skill below zero means the
// model loses to "tomorrow equals today" and is reported as such, not
// clamped.
//
// The sweep runner fans units out over a bounded worker pool. A fresh
// adapter is built per unit, adapter calls are rate limited through a
// shared limiter, failures are recorded on the unit's result without
// stopping siblings, and output ordering is independent of scheduling.
//
// Architecture:
//
//   - metrics.go: error measures over aligned actual/predicted vectors
//   - walkforward.go: expanding-window fold iterator
//   - baselines.go: persistence, seasonal-naive and climatology adapters
//   - forecasting.go: pair construction and per-horizon validation
//   - multicity.go: holdout, band stratification and city transfer
//   - runner.go: the concurrent (model, city, horizon) sweep
package validation
