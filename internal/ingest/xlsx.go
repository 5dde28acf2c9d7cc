package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "aqicli/internal/errors"
	"aqicli/pkg/contracts/domain"
)

// headerSearchDepth caps how many leading rows of a sheet are scanned for a
// header; exports often stack title rows above the real one.
const headerSearchDepth = 10

// XLSXLoader reads observation workbooks. Each sheet is parsed with the same
// header mapping as a CSV file; the sheet name becomes the source tag unless
// the sheet carries its own source column.
type XLSXLoader struct {
	cfg    CSVConfig
	logger *slog.Logger
}

// NewXLSXLoader creates a workbook loader with the given configuration.
func NewXLSXLoader(cfg CSVConfig, logger *slog.Logger) (*XLSXLoader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXLoader{cfg: cfg, logger: logger}, nil
}

// Config returns the loader configuration.
func (l *XLSXLoader) Config() CSVConfig {
	return l.cfg
}

// Load reads every sheet of an observation workbook. Sheets without a
// recognizable header are skipped and counted; a workbook where no sheet
// yields a row is a parsing error.
func (l *XLSXLoader) Load(ctx context.Context, path string) ([]domain.Observation, *LoadReport, error) {
	start := time.Now()

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, apperrors.NewStorageError("open "+path, err)
	}
	defer f.Close()

	report := &LoadReport{Path: path}
	var observations []domain.Observation
	for _, sheet := range f.GetSheetList() {
		report.Sheets++
		rows, err := f.GetRows(sheet)
		if err != nil {
			report.SkippedSheets++
			l.logger.WarnContext(ctx, "skipping unreadable sheet",
				"path", path,
				"sheet", sheet,
				"error", err)
			continue
		}
		headerRow, cm := findHeader(rows)
		if headerRow < 0 {
			report.SkippedSheets++
			l.logger.WarnContext(ctx, "skipping sheet without observation header",
				"path", path,
				"sheet", sheet)
			continue
		}

		sheetCfg := l.cfg
		if sheetCfg.DefaultSource == "" {
			sheetCfg.DefaultSource = sheet
		}
		for i := headerRow + 1; i < len(rows); i++ {
			report.Rows++
			obs, badCells, ok := parseRow(sheetCfg, cm, rows[i])
			report.BadCells += badCells
			if !ok {
				report.SkippedRows++
				l.logger.WarnContext(ctx, "skipping observation row",
					"path", path,
					"sheet", sheet,
					"row", i+1)
				continue
			}
			observations = append(observations, obs)
			report.Loaded++
		}
	}

	if report.Loaded == 0 {
		return nil, report, apperrors.NewParsingError("no loadable observation rows in "+path, nil)
	}

	l.logger.InfoContext(ctx, "workbook loaded",
		"path", path,
		"sheets", report.Sheets,
		"skipped_sheets", report.SkippedSheets,
		"rows", report.Rows,
		"loaded", report.Loaded,
		"skipped_rows", report.SkippedRows,
		"bad_cells", report.BadCells,
		"duration", time.Since(start))
	return observations, report, nil
}

// findHeader scans the leading rows for one that maps to a usable column
// layout.
func findHeader(rows [][]string) (int, columnMap) {
	limit := len(rows)
	if limit > headerSearchDepth {
		limit = headerSearchDepth
	}
	for i := 0; i < limit; i++ {
		if cm, err := mapHeader(rows[i]); err == nil {
			return i, cm
		}
	}
	return -1, columnMap{}
}
