package ingest

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "aqicli/internal/errors"
)

type sheetFixture struct {
	name string
	rows [][]interface{}
}

func writeWorkbook(t *testing.T, path string, sheets []sheetFixture) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, sheet := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", sheet.name))
		} else {
			_, err := f.NewSheet(sheet.name)
			require.NoError(t, err)
		}
		for r, row := range sheet.rows {
			for c, v := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				require.NoError(t, err)
				require.NoError(t, f.SetCellValue(sheet.name, cell, v))
			}
		}
	}
	require.NoError(t, f.SaveAs(path))
}

func TestXLSXLoader_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "delhi_2024-03.xlsx")
	writeWorkbook(t, path, []sheetFixture{
		{
			name: "openaq",
			rows: [][]interface{}{
				{"air quality export, march"},
				{"datetime", "city", "pm25", "aqi"},
				{"2024-03-01 00:00:00", "delhi", 12.5, 110},
				{"2024-03-01 01:00:00", "delhi", "", 115},
				{"garbage", "delhi", 1, 2},
			},
		},
		{
			name: "iqair",
			rows: [][]interface{}{
				{"timestamp", "city", "aqi"},
				{"2024-03-01 00:00:00", "delhi", 105},
			},
		},
		{
			name: "notes",
			rows: [][]interface{}{
				{"just text"},
				{"nothing tabular"},
			},
		},
	})

	loader, err := NewXLSXLoader(DefaultCSVConfig(), discardLogger())
	require.NoError(t, err)

	observations, report, err := loader.Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Sheets)
	assert.Equal(t, 1, report.SkippedSheets)
	assert.Equal(t, 4, report.Rows)
	assert.Equal(t, 3, report.Loaded)
	assert.Equal(t, 1, report.SkippedRows)
	assert.Equal(t, 0, report.BadCells)
	require.Len(t, observations, 3)

	first := observations[0]
	assert.Equal(t, "delhi", first.City)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), first.Timestamp)
	assert.Equal(t, "openaq", first.Source, "sheet name becomes the source tag")
	assert.Equal(t, 12.5, first.PM25)
	assert.Equal(t, 110.0, first.AQI)

	assert.True(t, math.IsNaN(observations[1].PM25))
	assert.Equal(t, 115.0, observations[1].AQI)

	assert.Equal(t, "iqair", observations[2].Source)
	assert.Equal(t, 105.0, observations[2].AQI)
}

func TestXLSXLoader_SourceColumnBeatsSheetName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs.xlsx")
	writeWorkbook(t, path, []sheetFixture{
		{
			name: "feed",
			rows: [][]interface{}{
				{"timestamp", "city", "aqi", "provider"},
				{"2024-03-01 00:00:00", "lahore", 140, "monitor-x"},
				{"2024-03-01 01:00:00", "lahore", 150, ""},
			},
		},
	})

	loader, err := NewXLSXLoader(DefaultCSVConfig(), discardLogger())
	require.NoError(t, err)

	observations, _, err := loader.Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, observations, 2)
	assert.Equal(t, "monitor-x", observations[0].Source)
	assert.Equal(t, "feed", observations[1].Source, "empty provider cell falls back to the sheet name")
}

func TestXLSXLoader_NoParseableSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.xlsx")
	writeWorkbook(t, path, []sheetFixture{
		{name: "notes", rows: [][]interface{}{{"just text"}}},
	})

	loader, err := NewXLSXLoader(DefaultCSVConfig(), discardLogger())
	require.NoError(t, err)

	_, report, err := loader.Load(context.Background(), path)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
	assert.Equal(t, 1, report.SkippedSheets)
}

func TestXLSXLoader_MissingFile(t *testing.T) {
	loader, err := NewXLSXLoader(DefaultCSVConfig(), discardLogger())
	require.NoError(t, err)

	_, _, err = loader.Load(context.Background(), filepath.Join(t.TempDir(), "absent.xlsx"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
}
