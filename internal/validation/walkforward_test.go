package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "aqicli/internal/errors"
)

func TestNewWalkForward_RejectsBadGeometry(t *testing.T) {
	cases := []struct {
		name                   string
		n, minTrain, step, gap int
		errType                apperrors.ErrorType
	}{
		{"zero min train", 100, 0, 1, 0, apperrors.ErrTypeConfiguration},
		{"zero step", 100, 10, 0, 0, apperrors.ErrTypeConfiguration},
		{"negative gap", 100, 10, 1, -1, apperrors.ErrTypeConfiguration},
		{"window consumes all rows", 168, 168, 1, 0, apperrors.ErrTypeDataQuality},
		{"gap consumes the remainder", 170, 168, 1, 2, apperrors.ErrTypeDataQuality},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewWalkForward(tc.n, tc.minTrain, tc.step, tc.gap)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tc.errType))
		})
	}
}

func TestWalkForward_ExpandingFolds(t *testing.T) {
	wf, err := NewWalkForward(10, 5, 2, 0)
	require.NoError(t, err)

	want := []Fold{
		{TrainEnd: 5, EvalIndex: 5},
		{TrainEnd: 7, EvalIndex: 7},
		{TrainEnd: 9, EvalIndex: 9},
	}
	assert.Equal(t, want, wf.Folds())
	assert.Equal(t, len(want), wf.Len())
}

func TestWalkForward_GapHoldsRowsOut(t *testing.T) {
	wf, err := NewWalkForward(10, 4, 3, 2)
	require.NoError(t, err)

	// First evaluation sits after the window plus the gap; training
	// always stops gap rows before the evaluated point.
	want := []Fold{
		{TrainEnd: 4, EvalIndex: 6},
		{TrainEnd: 7, EvalIndex: 9},
	}
	assert.Equal(t, want, wf.Folds())
	assert.Equal(t, len(want), wf.Len())
}

func TestWalkForward_DenseSingleStep(t *testing.T) {
	wf, err := NewWalkForward(169, 168, 1, 0)
	require.NoError(t, err)

	folds := wf.Folds()
	require.Len(t, folds, 1)
	assert.Equal(t, Fold{TrainEnd: 168, EvalIndex: 168}, folds[0])
}
