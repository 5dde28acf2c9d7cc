package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "aqicli/internal/errors"
	"aqicli/internal/shared/testutil"
)

func TestDiscovery_Discover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"Beijing_2024-03.csv",
		"delhi_2024_03_02.csv",
		"tel_aviv_2024-03-01.csv",
		"notes.csv",
		"~$beijing_2024-03.csv",
		"readme.txt",
	} {
		writeFile(t, dir, name, "placeholder")
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive.csv"), 0755))

	d := NewDiscovery(dir, discardLogger())
	files, err := d.Discover(context.Background(), "*.csv")
	require.NoError(t, err)
	require.Len(t, files, 4)

	// Undated files sort first; equal dates fall back to name order.
	assert.Equal(t, "notes", files[0].City)
	assert.True(t, files[0].Date.IsZero())

	assert.Equal(t, "beijing", files[1].City)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), files[1].Date)

	assert.Equal(t, "tel_aviv", files[2].City)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), files[2].Date)

	assert.Equal(t, "delhi", files[3].City)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), files[3].Date)
}

func TestDiscovery_DiscoverBadPattern(t *testing.T) {
	d := NewDiscovery(t.TempDir(), discardLogger())
	_, err := d.Discover(context.Background(), "[")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfiguration))
}

func TestDiscovery_ValidateInputDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "beijing_2024-03.csv", "placeholder")

	d := NewDiscovery(dir, discardLogger())
	require.NoError(t, d.ValidateInputDir(context.Background(), ".", "*.csv"))

	err := d.ValidateInputDir(context.Background(), "missing", "*.csv")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))

	err = d.ValidateInputDir(context.Background(), "beijing_2024-03.csv", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
}

func TestDiscovery_ValidateInputDirWarnsOnZeroMatches(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	d := NewDiscovery(t.TempDir(), logger)

	require.NoError(t, d.ValidateInputDir(context.Background(), ".", "*.csv"))
	testutil.AssertLogContains(t, handler, slog.LevelWarn, "no input files match pattern")
}

func TestEnsureOutputDir(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out", "reports")
	require.NoError(t, EnsureOutputDir(target))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	blocker := writeFile(t, dir, "blocker", "placeholder")
	err = EnsureOutputDir(filepath.Join(blocker, "sub"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
}

func TestParseFileName(t *testing.T) {
	tests := []struct {
		name     string
		wantCity string
		wantDate time.Time
	}{
		{"beijing_2024-03-01.csv", "beijing", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"beijing_2024_03_01.xlsx", "beijing", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"Mexico_City_2024-11.csv", "mexico_city", time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)},
		{"observations.csv", "observations", time.Time{}},
		{"delhi_backfill.csv", "delhi_backfill", time.Time{}},
	}
	for _, tt := range tests {
		city, date := parseFileName(tt.name)
		assert.Equal(t, tt.wantCity, city, tt.name)
		assert.Equal(t, tt.wantDate, date, tt.name)
	}
}
