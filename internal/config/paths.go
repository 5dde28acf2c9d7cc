package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains all the workspace paths used by the CLIs.
// This is the single source of truth for file locations: every artifact
// the pipeline reads or writes resolves through it.
type Paths struct {
	BaseDir     string
	InputDir    string
	CleanedDir  string
	FeaturesDir string
	ReportsDir  string
	LogsDir     string

	// Well-known validation report files.
	ReportJSON     string
	ReportMarkdown string
	ResultsCSV     string
	RankingsCSV    string
}

// NewPaths lays out the workspace under baseDir. An empty baseDir means
// the current working directory.
func NewPaths(baseDir string) *Paths {
	if baseDir == "" {
		baseDir = "."
	}

	reportsDir := filepath.Join(baseDir, DefaultReportsDir)

	return &Paths{
		BaseDir:     baseDir,
		InputDir:    filepath.Join(baseDir, DefaultInputDir),
		CleanedDir:  filepath.Join(baseDir, DefaultCleanedDir),
		FeaturesDir: filepath.Join(baseDir, DefaultFeaturesDir),
		ReportsDir:  reportsDir,
		LogsDir:     filepath.Join(baseDir, DefaultLogsDir),

		ReportJSON:     filepath.Join(reportsDir, ReportJSONName),
		ReportMarkdown: filepath.Join(reportsDir, ReportMarkdownName),
		ResultsCSV:     filepath.Join(reportsDir, ResultsCSVName),
		RankingsCSV:    filepath.Join(reportsDir, RankingsCSVName),
	}
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.InputDir,
		p.CleanedDir,
		p.FeaturesDir,
		p.ReportsDir,
		p.LogsDir,
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// CleanedCSV returns the cleaned observation file for a city.
func (p *Paths) CleanedCSV(city string) string {
	return filepath.Join(p.CleanedDir, city+CleanedFileSuffix)
}

// FeatureCSV returns the feature table file for a city.
func (p *Paths) FeatureCSV(city string) string {
	return filepath.Join(p.FeaturesDir, city+FeaturesFileSuffix)
}

// CleaningReportJSON returns the cleaning report file for a city.
func (p *Paths) CleaningReportJSON(city string) string {
	return filepath.Join(p.ReportsDir, city+CleaningReportFileSuffix)
}

// LogFile returns the path for a log file inside the workspace.
func (p *Paths) LogFile(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
