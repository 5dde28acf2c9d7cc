package validation

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"aqicli/internal/shared/testutil"
	"aqicli/pkg/contracts/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestForecaster(t *testing.T, cfg ForecastingConfig) *ForecastingValidator {
	t.Helper()
	v, err := NewForecastingValidator(cfg, discardLogger())
	require.NoError(t, err)
	return v
}

func newTestMultiCity(t *testing.T) *MultiCityValidator {
	t.Helper()
	v, err := NewMultiCityValidator(DefaultMultiCityConfig(), discardLogger())
	require.NoError(t, err)
	return v
}

// lineDataset builds a city whose AQI climbs linearly, with a single
// feature column mirroring the current AQI so an echo model can
// reconstruct it exactly.
func lineDataset(t *testing.T, city string, n int, start, step float64) *CityDataset {
	t.Helper()
	values := testutil.Linear(n, start, step)
	s := testutil.HourlySeries(city, map[domain.Parameter][]float64{
		domain.ParamAQI: values,
	})
	table := domain.NewFeatureTable(s.Timestamps())
	require.NoError(t, table.AddColumn("aqi_copy", values))

	ds, err := NewCityDataset(s, table)
	require.NoError(t, err)
	return ds
}

// alternating fills a slice with low on even and high on odd indices.
func alternating(n int, low, high float64) []float64 {
	values := make([]float64, n)
	for i := range values {
		if i%2 == 0 {
			values[i] = low
		} else {
			values[i] = high
		}
	}
	return values
}

// offsetAdapter predicts one feature column plus a fixed offset. With
// offset zero it echoes the column exactly.
type offsetAdapter struct {
	id     string
	column int
	offset float64
}

func (a *offsetAdapter) ID() string {
	return a.id
}

func (a *offsetAdapter) Fit(ctx context.Context, features [][]float64, target []float64) error {
	return nil
}

func (a *offsetAdapter) Predict(ctx context.Context, features [][]float64) ([]float64, error) {
	out := make([]float64, len(features))
	for i, row := range features {
		out[i] = row[a.column] + a.offset
	}
	return out, nil
}

// failingAdapter fails every call with a fixed error.
type failingAdapter struct {
	id  string
	err error
}

func (a *failingAdapter) ID() string {
	return a.id
}

func (a *failingAdapter) Fit(ctx context.Context, features [][]float64, target []float64) error {
	return a.err
}

func (a *failingAdapter) Predict(ctx context.Context, features [][]float64) ([]float64, error) {
	return nil, a.err
}

// countingAdapter counts fit and predict calls through to an inner
// adapter. Counters are not synchronized, so use one instance per unit.
type countingAdapter struct {
	inner    domain.ModelAdapter
	fits     int
	predicts int
}

func (a *countingAdapter) ID() string {
	return a.inner.ID()
}

func (a *countingAdapter) Fit(ctx context.Context, features [][]float64, target []float64) error {
	a.fits++
	return a.inner.Fit(ctx, features, target)
}

func (a *countingAdapter) Predict(ctx context.Context, features [][]float64) ([]float64, error) {
	a.predicts++
	return a.inner.Predict(ctx, features)
}

// funcAdapter delegates to injected functions, for odd-shaped failures.
type funcAdapter struct {
	id      string
	fit     func(ctx context.Context, features [][]float64, target []float64) error
	predict func(ctx context.Context, features [][]float64) ([]float64, error)
}

func (a *funcAdapter) ID() string {
	return a.id
}

func (a *funcAdapter) Fit(ctx context.Context, features [][]float64, target []float64) error {
	if a.fit == nil {
		return nil
	}
	return a.fit(ctx, features, target)
}

func (a *funcAdapter) Predict(ctx context.Context, features [][]float64) ([]float64, error) {
	return a.predict(ctx, features)
}
