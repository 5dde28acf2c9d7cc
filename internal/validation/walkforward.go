package validation

import (
	"fmt"

	apperrors "aqicli/internal/errors"
)

// Fold is one step of an expanding-window walk-forward pass: train on
// rows [0, TrainEnd), evaluate on row EvalIndex. Gap rows between the
// two stay unused so the training window never touches the evaluation
// point.
type Fold struct {
	TrainEnd  int `json:"train_end"`
	EvalIndex int `json:"eval_index"`
}

// WalkForward enumerates expanding-window folds over n time-ordered rows.
type WalkForward struct {
	n        int
	minTrain int
	step     int
	gap      int
}

// NewWalkForward builds a fold generator. minTrain is the smallest
// training window, step advances the evaluation row between folds, gap
// holds rows out between the window and the evaluation point.
func NewWalkForward(n, minTrain, step, gap int) (*WalkForward, error) {
	if minTrain < 1 {
		return nil, apperrors.NewConfigurationError(
			fmt.Sprintf("walk-forward min train window must be at least 1, got %d", minTrain), nil)
	}
	if step < 1 {
		return nil, apperrors.NewConfigurationError(
			fmt.Sprintf("walk-forward step must be at least 1, got %d", step), nil)
	}
	if gap < 0 {
		return nil, apperrors.NewConfigurationError(
			fmt.Sprintf("walk-forward gap must not be negative, got %d", gap), nil)
	}
	if n <= minTrain+gap {
		return nil, apperrors.NewDataQualityError(
			fmt.Sprintf("%d rows leave no evaluation points after a %d-row window and %d-row gap", n, minTrain, gap), nil)
	}
	return &WalkForward{n: n, minTrain: minTrain, step: step, gap: gap}, nil
}

// Folds materialises every fold in evaluation order. The first fold
// trains on exactly minTrain rows; each later fold's window grows by
// step rows.
func (w *WalkForward) Folds() []Fold {
	var folds []Fold
	for eval := w.minTrain + w.gap; eval < w.n; eval += w.step {
		folds = append(folds, Fold{TrainEnd: eval - w.gap, EvalIndex: eval})
	}
	return folds
}

// Len returns the number of folds without materialising them.
func (w *WalkForward) Len() int {
	return (w.n - w.minTrain - w.gap + w.step - 1) / w.step
}
