// Package export renders pipeline outputs to files: observation and feature
// CSVs, the report JSON, and a Markdown ranking summary.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	apperrors "aqicli/internal/errors"
	"aqicli/pkg/contracts/domain"
)

// CSVWriter writes CSV files with optional append and UTF-8 BOM handling.
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a CSV writer.
func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{logger: logger}
}

// WriteOptions configures one CSV write.
type WriteOptions struct {
	Headers []string
	Records [][]string
	Append  bool
	// BOMPrefix adds a UTF-8 BOM so spreadsheet tools detect the encoding.
	BOMPrefix bool
}

// WriteCSV writes data to a CSV file, creating parent directories as needed.
// Appending skips the header and the BOM.
func (w *CSVWriter) WriteCSV(path string, options WriteOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewStorageError("create directory for "+path, err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if options.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return apperrors.NewStorageError("open "+path, err)
	}
	defer file.Close()

	if options.BOMPrefix && !options.Append {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return apperrors.NewStorageError("write BOM to "+path, err)
		}
	}

	writer := csv.NewWriter(file)
	if !options.Append && len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return apperrors.NewStorageError("write headers to "+path, err)
		}
	}
	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("write record %d to %s", i, path), err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return apperrors.NewStorageError("flush "+path, err)
	}
	return nil
}

// StreamWriter writes CSV rows incrementally for large outputs.
type StreamWriter struct {
	file   *os.File
	writer *csv.Writer
}

// CreateStreamWriter opens path for streaming CSV output and writes the
// header row.
func (w *CSVWriter) CreateStreamWriter(path string, headers []string) (*StreamWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, apperrors.NewStorageError("create directory for "+path, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, apperrors.NewStorageError("create "+path, err)
	}
	writer := csv.NewWriter(file)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			file.Close()
			return nil, apperrors.NewStorageError("write headers to "+path, err)
		}
	}
	return &StreamWriter{file: file, writer: writer}, nil
}

// WriteRecord writes a single record to the stream.
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Close flushes buffered rows and closes the file.
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// SeriesExporter writes cleaned observation series and engineered feature
// tables as CSV, streaming row by row.
type SeriesExporter struct {
	csv    *CSVWriter
	logger *slog.Logger
}

// NewSeriesExporter creates a series exporter.
func NewSeriesExporter(logger *slog.Logger) *SeriesExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SeriesExporter{csv: NewCSVWriter(logger), logger: logger}
}

// seriesHeaders lists the observation columns in canonical order. The layout
// round-trips through the ingest loader: missing values export as empty
// cells and load back as NaN.
func seriesHeaders() []string {
	headers := []string{"timestamp", "city", "source"}
	for _, p := range domain.Parameters() {
		headers = append(headers, p.String())
	}
	return headers
}

func observationToRow(obs domain.Observation) []string {
	row := []string{obs.Timestamp.UTC().Format(time.RFC3339), obs.City, obs.Source}
	for _, p := range domain.Parameters() {
		row = append(row, formatValue(obs.Value(p)))
	}
	return row
}

// ExportSeries streams one city's observations to path.
func (e *SeriesExporter) ExportSeries(ctx context.Context, path string, s *domain.Series) error {
	if s == nil || s.IsEmpty() {
		return apperrors.NewDataQualityError("cannot export an empty series", nil)
	}
	start := time.Now()

	stream, err := e.csv.CreateStreamWriter(path, seriesHeaders())
	if err != nil {
		return err
	}
	for _, obs := range s.Observations {
		if err := stream.WriteRecord(observationToRow(obs)); err != nil {
			stream.Close()
			return apperrors.NewStorageError("write observation row to "+path, err)
		}
	}
	if err := stream.Close(); err != nil {
		return apperrors.NewStorageError("close "+path, err)
	}

	e.logger.InfoContext(ctx, "series exported",
		"city", s.City,
		"path", path,
		"rows", s.Len(),
		"duration", time.Since(start))
	return nil
}

// ExportFeatureTable streams an engineered feature table to path.
func (e *SeriesExporter) ExportFeatureTable(ctx context.Context, path string, table *domain.FeatureTable) error {
	if table == nil || table.NumRows() == 0 {
		return apperrors.NewDataQualityError("cannot export an empty feature table", nil)
	}
	start := time.Now()

	stream, err := e.csv.CreateStreamWriter(path, append([]string{"timestamp"}, table.Columns...))
	if err != nil {
		return err
	}
	for i, row := range table.Rows {
		record := make([]string, 0, len(row)+1)
		record = append(record, table.Timestamps[i].UTC().Format(time.RFC3339))
		for _, v := range row {
			record = append(record, formatValue(v))
		}
		if err := stream.WriteRecord(record); err != nil {
			stream.Close()
			return apperrors.NewStorageError("write feature row to "+path, err)
		}
	}
	if err := stream.Close(); err != nil {
		return apperrors.NewStorageError("close "+path, err)
	}

	e.logger.InfoContext(ctx, "feature table exported",
		"path", path,
		"rows", table.NumRows(),
		"columns", table.NumColumns(),
		"duration", time.Since(start))
	return nil
}

// ResultsCSV flattens the per-unit validation results into write options for
// one flat table; holdout and forecast sections share it, distinguished by
// the section column.
func ResultsCSV(report *domain.ValidationReport) WriteOptions {
	headers := []string{
		"section", "model_id", "city", "horizon_hours", "samples",
		"rmse", "mae", "mape", "r2", "bias", "max_error", "median_abs_error",
		"directional_accuracy", "skill_score", "error",
	}
	records := make([][]string, 0, len(report.Holdout)+len(report.Forecast))
	for _, res := range report.Holdout {
		records = append(records, resultRow("holdout", res))
	}
	for _, res := range report.Forecast {
		records = append(records, resultRow("forecast", res))
	}
	return WriteOptions{Headers: headers, Records: records}
}

func resultRow(section string, res domain.ValidationResult) []string {
	m := res.Metrics
	return []string{
		section,
		res.ModelID,
		res.City,
		strconv.Itoa(res.HorizonHours),
		strconv.Itoa(m.Samples),
		formatValue(m.RMSE),
		formatValue(m.MAE),
		formatValue(m.MAPE),
		formatValue(m.R2),
		formatValue(m.Bias),
		formatValue(m.MaxError),
		formatValue(m.MedianAbsError),
		formatValue(m.DirectionalAccuracy),
		formatValue(m.SkillScore),
		res.Err,
	}
}

// RankingsCSV renders the ranked model table as write options.
func RankingsCSV(report *domain.ValidationReport) WriteOptions {
	headers := []string{
		"rank", "model_id", "score", "multi_city_r2", "forecast_rmse",
		"norm_inverse_rmse", "cross_city_variance",
	}
	records := make([][]string, 0, len(report.Rankings))
	for _, r := range report.Rankings {
		records = append(records, []string{
			strconv.Itoa(r.Rank),
			r.ModelID,
			formatValue(r.Score),
			formatValue(r.MultiCityR2),
			formatValue(r.ForecastRMSE),
			formatValue(r.NormInverseRMSE),
			formatValue(r.CrossCityVariance),
		})
	}
	return WriteOptions{Headers: headers, Records: records}
}
