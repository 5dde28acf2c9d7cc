// Package cleaning implements the data-quality pipeline for hourly
// air-quality series: missing-value imputation, outlier detection and
// handling, physical-constraint enforcement, cross-source consistency
// scoring, temporal anomaly detection, and quality scoring.
//
// # Pipeline
//
// The comprehensive pipeline runs a fixed stage order:
//
//  1. quality snapshot (before)
//  2. imputation (hybrid by default)
//  3. outlier detection + handling (combined detection, cap by default)
//  4. physical constraint validation
//  5. cross-source consistency check (multi-source input only)
//  6. temporal anomaly detection
//  7. quality snapshot (after)
//
// The order is load-bearing: imputation must precede outlier statistics
// because NaNs bias z-scores, and constraint validation must follow
// capping because capping can reintroduce boundary violations.
//
// # Architecture
//
//   - cleaner.go: Config and the Cleaner orchestrator
//   - impute.go: per-column imputation methods and the hybrid pipeline
//   - outliers.go: z-score/IQR/domain detectors and outlier actions
//   - constraints.go: physical plausibility enforcement
//   - consistency.go: cross-source agreement scoring
//   - anomalies.go: rolling-window temporal anomaly detection
//   - quality.go: completeness/consistency snapshots
//   - regularize.go: hourly grid reconstruction
//
// All stages are pure with respect to process state: every knob lives in
// a caller-owned Config and the only side effects are mutations of the
// series passed in.
package cleaning
