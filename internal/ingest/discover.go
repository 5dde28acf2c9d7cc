package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "aqicli/internal/errors"
)

// InputFile is one discovered observation file, with the city and period
// extracted from its name.
type InputFile struct {
	Path    string
	Name    string
	City    string
	Date    time.Time
	Size    int64
	ModTime time.Time
}

// Discovery locates observation input files under a base directory.
type Discovery struct {
	basePath string
	logger   *slog.Logger
}

// NewDiscovery creates a discovery rooted at basePath. Absolute patterns and
// directories bypass the base.
func NewDiscovery(basePath string, logger *slog.Logger) *Discovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discovery{basePath: basePath, logger: logger}
}

// dateLayouts are tried against filename suffixes, most specific first.
var dateLayouts = []string{"2006-01-02", "2006-01"}

// Discover returns files matching the glob pattern, sorted chronologically
// by filename date and then by name. Filenames follow
// "<city>_<YYYY-MM[-DD]>.<ext>" with underscores accepted in place of
// hyphens; undated files keep a zero date and sort first. Spreadsheet lock
// files ("~$...") are ignored.
func (d *Discovery) Discover(ctx context.Context, pattern string) ([]InputFile, error) {
	searchPattern := pattern
	if !filepath.IsAbs(pattern) {
		searchPattern = filepath.Join(d.basePath, pattern)
	}
	matches, err := filepath.Glob(searchPattern)
	if err != nil {
		return nil, apperrors.NewConfigurationError("invalid file pattern "+pattern, err)
	}

	files := make([]InputFile, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		name := filepath.Base(match)
		if strings.HasPrefix(name, "~$") {
			continue
		}
		city, date := parseFileName(name)
		files = append(files, InputFile{
			Path:    match,
			Name:    name,
			City:    city,
			Date:    date,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	SortFiles(files)

	d.logger.DebugContext(ctx, "input files discovered",
		"pattern", pattern,
		"files", len(files))
	return files, nil
}

// ValidateInputDir checks that the input directory exists and reports how
// many files match the pattern. Zero matches is not an error, just nothing
// to do.
func (d *Discovery) ValidateInputDir(ctx context.Context, dir, pattern string) error {
	full := dir
	if !filepath.IsAbs(dir) {
		full = filepath.Join(d.basePath, dir)
	}
	info, err := os.Stat(full)
	if os.IsNotExist(err) {
		return apperrors.NewStorageError("input directory "+full+" does not exist", nil)
	}
	if err != nil {
		return apperrors.NewStorageError("stat input directory "+full, err)
	}
	if !info.IsDir() {
		return apperrors.NewStorageError(full+" is not a directory", nil)
	}
	if pattern == "" {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(full, pattern))
	if err != nil {
		return apperrors.NewConfigurationError("invalid file pattern "+pattern, err)
	}
	if len(matches) == 0 {
		d.logger.WarnContext(ctx, "no input files match pattern",
			"directory", full,
			"pattern", pattern)
		return nil
	}
	d.logger.InfoContext(ctx, "input directory validated",
		"directory", full,
		"files_found", len(matches),
		"pattern", pattern)
	return nil
}

// EnsureOutputDir creates the directory if needed and probes that it is
// writable.
func EnsureOutputDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.NewStorageError("create output directory "+dir, err)
	}
	probe := filepath.Join(dir, ".write_probe")
	f, err := os.Create(probe)
	if err != nil {
		return apperrors.NewStorageError("output directory "+dir+" is not writable", err)
	}
	f.Close()
	os.Remove(probe)
	return nil
}

// SortFiles orders files chronologically by filename date, then by name.
func SortFiles(files []InputFile) {
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].Date.Equal(files[j].Date) {
			return files[i].Date.Before(files[j].Date)
		}
		return files[i].Name < files[j].Name
	})
}

// parseFileName splits "<city>_<date>" stems. The first underscore suffix
// that parses as a date wins, so multi-word cities keep their underscores.
func parseFileName(name string) (string, time.Time) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	for i := 0; i < len(stem); i++ {
		if stem[i] != '_' {
			continue
		}
		candidate := strings.ReplaceAll(stem[i+1:], "_", "-")
		for _, layout := range dateLayouts {
			if date, err := time.ParseInLocation(layout, candidate, time.UTC); err == nil {
				return strings.ToLower(stem[:i]), date
			}
		}
	}
	return strings.ToLower(stem), time.Time{}
}
