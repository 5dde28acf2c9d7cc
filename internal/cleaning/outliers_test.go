package cleaning

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "aqicli/internal/errors"
	"aqicli/internal/shared/testutil"
	"aqicli/pkg/contracts/domain"
)

// spikedColumn returns 100 values alternating 45/55 with one extreme
// value appended. Population mean is ~54.5 and the spike sits near ten
// standard deviations out, so only it crosses the z-score threshold.
func spikedColumn(spike float64) []float64 {
	values := make([]float64, 101)
	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			values[i] = 45
		} else {
			values[i] = 55
		}
	}
	values[100] = spike
	return values
}

func TestDetectOutliers_ZScoreThenCap(t *testing.T) {
	c := newTestCleaner(t, DefaultConfig())
	s := testutil.HourlySeries("delhi", map[domain.Parameter][]float64{
		domain.ParamPM25: spikedColumn(500),
	})

	mask, err := c.DetectOutliers(context.Background(), s, domain.OutlierZScore)
	require.NoError(t, err)

	assert.Equal(t, 1, mask.Count())
	assert.Equal(t, []int{100}, mask.Indices(domain.ParamPM25))

	handled, flagged, err := c.HandleOutliers(context.Background(), s, mask, domain.ActionCap)
	require.NoError(t, err)

	// The spike is clipped to the column's empirical 95th percentile and
	// the row itself survives.
	col := s.Column(domain.ParamPM25)
	assert.Equal(t, 1, handled)
	assert.Nil(t, flagged)
	assert.InDelta(t, 55, col[100], 1e-9)
	assert.InDelta(t, 45, col[0], 1e-9)
	assert.InDelta(t, 55, col[1], 1e-9)
	assert.Equal(t, 101, s.Len())
}

func TestDetectOutliers_MethodsAndUnion(t *testing.T) {
	// Index 0 is negative: inside the z-score envelope but outside both
	// the IQR fences and the physical bounds. Index 100 is the spike
	// caught by z-score and IQR but inside the physical bounds.
	values := spikedColumn(500)
	values[0] = -10

	tests := []struct {
		name        string
		method      domain.OutlierMethod
		wantCount   int
		wantIndices []int
	}{
		{"zscore catches the spike", domain.OutlierZScore, 1, []int{100}},
		{"iqr catches both", domain.OutlierIQR, 2, []int{0, 100}},
		{"domain catches the negative", domain.OutlierDomain, 1, []int{0}},
		{"combined is the union", domain.OutlierCombined, 2, []int{0, 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCleaner(t, DefaultConfig())
			s := testutil.HourlySeries("delhi", map[domain.Parameter][]float64{
				domain.ParamPM25: values,
			})

			mask, err := c.DetectOutliers(context.Background(), s, tt.method)
			require.NoError(t, err)

			assert.Equal(t, tt.wantCount, mask.Count())
			assert.Equal(t, tt.wantIndices, mask.Indices(domain.ParamPM25))
		})
	}
}

func TestDetectOutliers_UnknownMethod(t *testing.T) {
	c := newTestCleaner(t, DefaultConfig())
	s := testutil.HourlySeries("delhi", map[domain.Parameter][]float64{
		domain.ParamPM25: {10, 20},
	})

	_, err := c.DetectOutliers(context.Background(), s, domain.OutlierMethod("mad"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfiguration))
}

func TestDetectOutliers_UnboundedParameterNeverFlags(t *testing.T) {
	// Wind speed has no plausibility interval, so the domain method must
	// pass even hurricane values through.
	c := newTestCleaner(t, DefaultConfig())
	s := testutil.HourlySeries("delhi", map[domain.Parameter][]float64{
		domain.ParamWindSpeed: {2, 150, 3},
	})

	mask, err := c.DetectOutliers(context.Background(), s, domain.OutlierDomain)
	require.NoError(t, err)

	assert.Zero(t, mask.Count())
	assert.Len(t, mask[domain.ParamWindSpeed], 3)
}

func TestHandleOutliers_Actions(t *testing.T) {
	nan := math.NaN()

	tests := []struct {
		name        string
		action      domain.OutlierAction
		want        []float64
		wantHandled int
		wantFlagged map[domain.Parameter][]int
	}{
		{
			name:        "cap clips to the percentile band",
			action:      domain.ActionCap,
			want:        []float64{10, 20, 261, 40},
			wantHandled: 1,
		},
		{
			name:        "remove nulls the value",
			action:      domain.ActionRemove,
			want:        []float64{10, 20, nan, 40},
			wantHandled: 1,
		},
		{
			name:        "interpolate rebuilds from neighbours",
			action:      domain.ActionInterpolate,
			want:        []float64{10, 20, 30, 40},
			wantHandled: 1,
		},
		{
			name:        "flag records indices without touching values",
			action:      domain.ActionFlag,
			want:        []float64{10, 20, 300, 40},
			wantHandled: 1,
			wantFlagged: map[domain.Parameter][]int{domain.ParamPM25: {2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCleaner(t, DefaultConfig())
			s := testutil.HourlySeries("delhi", map[domain.Parameter][]float64{
				domain.ParamPM25: {10, 20, 300, 40},
			})
			mask := OutlierMask{domain.ParamPM25: {false, false, true, false}}

			handled, flagged, err := c.HandleOutliers(context.Background(), s, mask, tt.action)
			require.NoError(t, err)

			assert.Equal(t, tt.wantHandled, handled)
			assert.Equal(t, tt.wantFlagged, flagged)
			assertColumn(t, tt.want, s.Column(domain.ParamPM25))
			assert.Equal(t, 4, s.Len())
		})
	}
}

func TestHandleOutliers_MismatchedMaskSkipped(t *testing.T) {
	c := newTestCleaner(t, DefaultConfig())
	s := testutil.HourlySeries("delhi", map[domain.Parameter][]float64{
		domain.ParamPM25: {10, 20, 300, 40},
	})
	mask := OutlierMask{domain.ParamPM25: {true}}

	handled, flagged, err := c.HandleOutliers(context.Background(), s, mask, domain.ActionRemove)
	require.NoError(t, err)

	assert.Zero(t, handled)
	assert.Nil(t, flagged)
	assertColumn(t, []float64{10, 20, 300, 40}, s.Column(domain.ParamPM25))
}

func TestHandleOutliers_UnknownAction(t *testing.T) {
	c := newTestCleaner(t, DefaultConfig())
	s := testutil.HourlySeries("delhi", map[domain.Parameter][]float64{
		domain.ParamPM25: {10, 20, 300, 40},
	})
	mask := OutlierMask{domain.ParamPM25: {false, false, true, false}}

	_, _, err := c.HandleOutliers(context.Background(), s, mask, domain.OutlierAction("discard"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfiguration))
}

func TestDefaultDomainBounds(t *testing.T) {
	bounds := DefaultDomainBounds()

	assert.Equal(t, domain.Bounds{Min: 0, Max: 999}, bounds[domain.ParamPM25])
	assert.Equal(t, domain.Bounds{Min: -50, Max: 60}, bounds[domain.ParamTemperature])
	assert.Equal(t, domain.Bounds{Min: 0, Max: 100}, bounds[domain.ParamHumidity])

	_, ok := bounds[domain.ParamWindSpeed]
	assert.False(t, ok, "wind speed carries no plausibility bounds")

	for p, b := range bounds {
		assert.Less(t, b.Min, b.Max, "bounds for %s", p)
	}
}

func TestOutlierMask_Merge(t *testing.T) {
	a := OutlierMask{domain.ParamPM25: {true, false, false}}
	b := OutlierMask{
		domain.ParamPM25: {false, false, true},
		domain.ParamNO2:  {false, true, false},
	}

	a.merge(b)

	assert.Equal(t, []int{0, 2}, a.Indices(domain.ParamPM25))
	assert.Equal(t, []int{1}, a.Indices(domain.ParamNO2))
	assert.Equal(t, 3, a.Count())
}
