// Package ingest loads hourly observation files from disk: header-mapped
// CSV, multi-sheet XLSX workbooks, and filename-dated input discovery.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "aqicli/internal/errors"
	"aqicli/pkg/contracts/domain"
)

// Column headers are matched after normalization, so "PM2.5", "pm2_5" and
// "PM 2.5" all land on the same parameter.
var headerAliases = map[string]domain.Parameter{
	"pm25":        domain.ParamPM25,
	"pm2_5":       domain.ParamPM25,
	"pm10":        domain.ParamPM10,
	"pm_10":       domain.ParamPM10,
	"no2":         domain.ParamNO2,
	"so2":         domain.ParamSO2,
	"co":          domain.ParamCO,
	"o3":          domain.ParamO3,
	"ozone":       domain.ParamO3,
	"aqi":         domain.ParamAQI,
	"us_aqi":      domain.ParamAQI,
	"temperature": domain.ParamTemperature,
	"temp":        domain.ParamTemperature,
	"humidity":    domain.ParamHumidity,
	"rh":          domain.ParamHumidity,
	"wind_speed":  domain.ParamWindSpeed,
	"windspeed":   domain.ParamWindSpeed,
	"wind":        domain.ParamWindSpeed,
	"pressure":    domain.ParamPressure,
}

var (
	timestampHeaders = map[string]bool{"timestamp": true, "time": true, "datetime": true, "date": true, "ts": true, "date_utc": true}
	cityHeaders      = map[string]bool{"city": true, "location": true, "station": true}
	sourceHeaders    = map[string]bool{"source": true, "provider": true}
)

// missingTokens are cell values loaded as an absent measurement rather than
// a parse failure.
var missingTokens = map[string]bool{"": true, "na": true, "n/a": true, "nan": true, "null": true, "-": true}

// CSVConfig controls observation file parsing. The same configuration drives
// both the CSV and the XLSX loader.
type CSVConfig struct {
	// TimestampFormats are tried in order; a cell of plain digits
	// additionally parses as Unix seconds.
	TimestampFormats []string
	// DefaultCity labels rows when the file carries no city column.
	DefaultCity string
	// DefaultSource labels rows when the file carries no source column.
	DefaultSource string
}

// DefaultCSVConfig returns parsing defaults covering the timestamp shapes
// the public air-quality archives export.
func DefaultCSVConfig() CSVConfig {
	return CSVConfig{
		TimestampFormats: []string{
			time.RFC3339,
			"2006-01-02 15:04:05",
			"2006-01-02T15:04",
			"2006-01-02 15:04",
			"2006-01-02",
		},
	}
}

// Validate checks the configuration for structural problems.
func (c CSVConfig) Validate() error {
	if len(c.TimestampFormats) == 0 {
		return apperrors.NewConfigurationError("at least one timestamp format is required", nil)
	}
	return nil
}

// LoadReport counts what one file contributed. SkippedRows covers rows the
// loader could not place on the time axis or attribute to a city; BadCells
// covers individual measurement cells that were non-numeric and loaded as
// missing instead.
type LoadReport struct {
	Path          string `json:"path"`
	Sheets        int    `json:"sheets,omitempty"`
	SkippedSheets int    `json:"skipped_sheets,omitempty"`
	Rows          int    `json:"rows"`
	Loaded        int    `json:"loaded"`
	SkippedRows   int    `json:"skipped_rows"`
	BadCells      int    `json:"bad_cells"`
}

// CSVLoader reads hourly observation CSV files.
type CSVLoader struct {
	cfg    CSVConfig
	logger *slog.Logger
}

// NewCSVLoader creates a loader with the given configuration.
func NewCSVLoader(cfg CSVConfig, logger *slog.Logger) (*CSVLoader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVLoader{cfg: cfg, logger: logger}, nil
}

// Config returns the loader configuration.
func (l *CSVLoader) Config() CSVConfig {
	return l.cfg
}

// Load reads every observation row of one CSV file. Malformed rows are
// skipped and counted, never fatal; an unusable header or a file with no
// loadable rows is.
func (l *CSVLoader) Load(ctx context.Context, path string) ([]domain.Observation, *LoadReport, error) {
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, apperrors.NewStorageError("open "+path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, nil, apperrors.NewParsingError("read header of "+path, err)
	}
	cm, err := mapHeader(header)
	if err != nil {
		return nil, nil, err
	}

	report := &LoadReport{Path: path}
	var observations []domain.Observation
	for rowNum := 2; ; rowNum++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		report.Rows++
		if err != nil {
			report.SkippedRows++
			l.logger.WarnContext(ctx, "skipping malformed csv row",
				"path", path,
				"row", rowNum,
				"error", err)
			continue
		}
		obs, badCells, ok := parseRow(l.cfg, cm, record)
		report.BadCells += badCells
		if !ok {
			report.SkippedRows++
			l.logger.WarnContext(ctx, "skipping observation row",
				"path", path,
				"row", rowNum)
			continue
		}
		observations = append(observations, obs)
		report.Loaded++
	}

	if report.Loaded == 0 {
		return nil, report, apperrors.NewParsingError("no loadable observation rows in "+path, nil)
	}

	l.logger.InfoContext(ctx, "csv file loaded",
		"path", path,
		"rows", report.Rows,
		"loaded", report.Loaded,
		"skipped_rows", report.SkippedRows,
		"bad_cells", report.BadCells,
		"duration", time.Since(start))
	return observations, report, nil
}

// GroupByCity splits observations into per-city groups, each sorted by
// timestamp. The sort is stable so input order breaks timestamp ties and
// repeated loads stay deterministic.
func GroupByCity(observations []domain.Observation) map[string][]domain.Observation {
	groups := make(map[string][]domain.Observation)
	for _, obs := range observations {
		groups[obs.City] = append(groups[obs.City], obs)
	}
	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Timestamp.Before(group[j].Timestamp)
		})
	}
	return groups
}

// columnMap is the header-resolved layout of one observation table.
type columnMap struct {
	timestamp int
	city      int
	source    int
	params    map[int]domain.Parameter
}

// mapHeader resolves a header row. The timestamp and AQI columns are
// mandatory; unrecognized columns are ignored.
func mapHeader(header []string) (columnMap, error) {
	cm := columnMap{timestamp: -1, city: -1, source: -1, params: make(map[int]domain.Parameter)}
	for i, h := range header {
		name := normalizeHeader(h)
		switch {
		case timestampHeaders[name]:
			if cm.timestamp == -1 {
				cm.timestamp = i
			}
		case cityHeaders[name]:
			if cm.city == -1 {
				cm.city = i
			}
		case sourceHeaders[name]:
			if cm.source == -1 {
				cm.source = i
			}
		default:
			if p, ok := headerAliases[name]; ok {
				cm.params[i] = p
			}
		}
	}
	if cm.timestamp == -1 {
		return cm, apperrors.NewParsingError("no timestamp column in header", nil)
	}
	hasAQI := false
	for _, p := range cm.params {
		if p == domain.ParamAQI {
			hasAQI = true
			break
		}
	}
	if !hasAQI {
		return cm, apperrors.NewParsingError("no aqi column in header", nil)
	}
	return cm, nil
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "_", ".", "_", "-", "_").Replace(h)
}

// parseRow turns one record into an Observation. badCells counts non-numeric
// measurement cells loaded as missing; ok is false when the row has no
// usable timestamp or city.
func parseRow(cfg CSVConfig, cm columnMap, record []string) (domain.Observation, int, bool) {
	badCells := 0
	if cm.timestamp >= len(record) {
		return domain.Observation{}, badCells, false
	}
	ts, ok := parseTimestamp(record[cm.timestamp], cfg.TimestampFormats)
	if !ok {
		return domain.Observation{}, badCells, false
	}

	city := cfg.DefaultCity
	if cm.city >= 0 && cm.city < len(record) && strings.TrimSpace(record[cm.city]) != "" {
		city = record[cm.city]
	}
	city = strings.ToLower(strings.TrimSpace(city))
	if city == "" {
		return domain.Observation{}, badCells, false
	}

	source := cfg.DefaultSource
	if cm.source >= 0 && cm.source < len(record) && strings.TrimSpace(record[cm.source]) != "" {
		source = strings.TrimSpace(record[cm.source])
	}

	obs := domain.NewObservation(city, ts, source)
	for idx, p := range cm.params {
		if idx >= len(record) {
			continue
		}
		v, numeric := parseMeasurement(record[idx])
		if !numeric {
			badCells++
		}
		obs.SetValue(p, v)
	}
	return obs, badCells, true
}

func parseTimestamp(cell string, formats []string) (time.Time, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return time.Time{}, false
	}
	for _, layout := range formats {
		if ts, err := time.ParseInLocation(layout, cell, time.UTC); err == nil {
			return ts, true
		}
	}
	if sec, err := strconv.ParseInt(cell, 10, 64); err == nil && sec > 0 {
		return time.Unix(sec, 0).UTC(), true
	}
	return time.Time{}, false
}

// parseMeasurement returns the cell as a float, NaN for missing tokens, and
// numeric=false for non-numeric garbage. Thousands separators are stripped
// the way spreadsheet exports write them.
func parseMeasurement(cell string) (float64, bool) {
	cell = strings.ToLower(strings.TrimSpace(cell))
	if missingTokens[cell] {
		return math.NaN(), true
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", ""), 64)
	if err != nil {
		return math.NaN(), false
	}
	return v, true
}
