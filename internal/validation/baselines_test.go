package validation

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "aqicli/internal/errors"
)

func TestColumnEchoAdapters(t *testing.T) {
	ctx := context.Background()
	features := [][]float64{
		{1, 9},
		{2, 8},
		{3, 7},
	}

	persistence := NewPersistenceAdapter(1)
	assert.Equal(t, "persistence", persistence.ID())
	require.NoError(t, persistence.Fit(ctx, features, []float64{0, 0, 0}))

	out, err := persistence.Predict(ctx, features)
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 8, 7}, out)

	seasonal := NewSeasonalNaiveAdapter(-1)
	assert.Equal(t, "seasonal_naive", seasonal.ID())

	// Negative columns count from the end of the row.
	out, err = seasonal.Predict(ctx, features)
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 8, 7}, out)
}

func TestColumnEchoAdapter_RejectsOutOfRangeColumn(t *testing.T) {
	ctx := context.Background()
	features := [][]float64{{1, 2}}

	_, err := NewPersistenceAdapter(2).Predict(ctx, features)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDataQuality))

	_, err = NewPersistenceAdapter(-3).Predict(ctx, features)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDataQuality))
}

func TestClimatologyAdapter(t *testing.T) {
	ctx := context.Background()
	adapter := NewClimatologyAdapter()
	assert.Equal(t, "climatology", adapter.ID())

	_, err := adapter.Predict(ctx, [][]float64{{1}})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDataQuality))

	require.NoError(t, adapter.Fit(ctx, nil, []float64{math.NaN(), 10, 20}))

	out, err := adapter.Predict(ctx, [][]float64{{1}, {2}, {3}})
	require.NoError(t, err)
	assert.Equal(t, []float64{15, 15, 15}, out)
}

func TestClimatologyAdapter_RejectsAllMissingTargets(t *testing.T) {
	err := NewClimatologyAdapter().Fit(context.Background(), nil, []float64{math.NaN(), math.Inf(1)})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDataQuality))
}
