package cleaning

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aqicli/internal/shared/testutil"
	"aqicli/pkg/contracts/domain"
)

func TestValidatePhysicalConstraints_PMOrdering(t *testing.T) {
	c := newTestCleaner(t, DefaultConfig())
	s := testutil.HourlySeries("beijing", map[domain.Parameter][]float64{
		domain.ParamPM25: {120, 50},
		domain.ParamPM10: {80, 80},
	})

	fixed, err := c.ValidatePhysicalConstraints(context.Background(), s)
	require.NoError(t, err)

	// PM10 mass includes PM2.5 mass, so the coarser reading is raised.
	assert.Equal(t, 1, fixed)
	assertColumn(t, []float64{120, 50}, s.Column(domain.ParamPM25))
	assertColumn(t, []float64{120, 80}, s.Column(domain.ParamPM10))
}

func TestValidatePhysicalConstraints_Rules(t *testing.T) {
	nan := math.NaN()

	tests := []struct {
		name      string
		param     domain.Parameter
		input     []float64
		want      []float64
		wantFixed int
	}{
		{
			name:      "negative concentration zeroed",
			param:     domain.ParamPM25,
			input:     []float64{-5, 10},
			want:      []float64{0, 10},
			wantFixed: 1,
		},
		{
			name:      "negative wind speed zeroed",
			param:     domain.ParamWindSpeed,
			input:     []float64{-3, 4},
			want:      []float64{0, 4},
			wantFixed: 1,
		},
		{
			name:      "humidity clamped to 100",
			param:     domain.ParamHumidity,
			input:     []float64{150, 60},
			want:      []float64{100, 60},
			wantFixed: 1,
		},
		{
			name:      "humidity clamped to 0",
			param:     domain.ParamHumidity,
			input:     []float64{-20, 60},
			want:      []float64{0, 60},
			wantFixed: 1,
		},
		{
			name:      "sub-zero temperature is legitimate",
			param:     domain.ParamTemperature,
			input:     []float64{-25, 5},
			want:      []float64{-25, 5},
			wantFixed: 0,
		},
		{
			name:      "missing values never corrected",
			param:     domain.ParamPM25,
			input:     []float64{nan, 10},
			want:      []float64{nan, 10},
			wantFixed: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCleaner(t, DefaultConfig())
			s := testutil.HourlySeries("beijing", map[domain.Parameter][]float64{
				tt.param: tt.input,
			})

			fixed, err := c.ValidatePhysicalConstraints(context.Background(), s)
			require.NoError(t, err)

			assert.Equal(t, tt.wantFixed, fixed)
			assertColumn(t, tt.want, s.Column(tt.param))
		})
	}
}

func TestValidatePhysicalConstraints_SkipsHalfMissingPairs(t *testing.T) {
	nan := math.NaN()
	c := newTestCleaner(t, DefaultConfig())
	s := testutil.HourlySeries("beijing", map[domain.Parameter][]float64{
		domain.ParamPM25: {120, nan},
		domain.ParamPM10: {nan, 80},
	})

	fixed, err := c.ValidatePhysicalConstraints(context.Background(), s)
	require.NoError(t, err)

	assert.Zero(t, fixed)
	assertColumn(t, []float64{nan, 80}, s.Column(domain.ParamPM10))
}

func TestValidatePhysicalConstraints_Idempotent(t *testing.T) {
	c := newTestCleaner(t, DefaultConfig())
	s := testutil.HourlySeries("beijing", map[domain.Parameter][]float64{
		domain.ParamPM25:     {120, -5},
		domain.ParamPM10:     {80, 90},
		domain.ParamHumidity: {150, 40},
	})

	fixed, err := c.ValidatePhysicalConstraints(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 3, fixed)

	fixed, err = c.ValidatePhysicalConstraints(context.Background(), s)
	require.NoError(t, err)
	assert.Zero(t, fixed)
}
