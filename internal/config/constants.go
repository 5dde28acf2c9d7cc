package config

import "aqicli/pkg/contracts"

// Application identity and the on-disk naming conventions shared by the
// pipeline and validation CLIs.
const (
	AppName    = "aqicli"
	AppVersion = contracts.Version

	// Workspace subdirectories, relative to the workspace base directory.
	DefaultInputDir    = "input"
	DefaultCleanedDir  = "cleaned"
	DefaultFeaturesDir = "features"
	DefaultReportsDir  = "reports"
	DefaultLogsDir     = "logs"

	// Input discovery patterns.
	DefaultInputPattern = "*.csv"
	XLSXInputPattern    = "*.xlsx"

	// Per-city artifact suffixes.
	CleanedFileSuffix        = "_cleaned.csv"
	FeaturesFileSuffix       = "_features.csv"
	CleaningReportFileSuffix = "_cleaning.json"

	// Validation report files.
	ReportJSONName     = "validation_report.json"
	ReportMarkdownName = "validation_report.md"
	ResultsCSVName     = "validation_results.csv"
	RankingsCSVName    = "model_rankings.csv"
)
