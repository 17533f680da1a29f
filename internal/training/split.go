package training

import (
	"fmt"
	"math"
)

// Fold is one forward-chaining cross-validation split: training rows are
// [0, TrainEnd) and validation rows [TrainEnd, ValEnd). Cutoffs advance
// monotonically across folds, so no validation row ever precedes a training
// row it is scored against.
type Fold struct {
	TrainEnd int
	ValEnd   int
}

// TimeSeriesSplit produces forward-chaining folds over n chronologically
// ordered rows. Each fold validates on the next contiguous block of
// n/(folds+1) rows after its training cutoff.
func TimeSeriesSplit(n, folds int) ([]Fold, error) {
	if folds < 2 {
		return nil, fmt.Errorf("training: need at least 2 folds, got %d", folds)
	}
	valSize := n / (folds + 1)
	if valSize < 1 {
		return nil, fmt.Errorf("training: %d rows cannot support %d folds", n, folds)
	}

	firstTrain := n - folds*valSize
	out := make([]Fold, folds)
	for k := 0; k < folds; k++ {
		trainEnd := firstTrain + k*valSize
		out[k] = Fold{TrainEnd: trainEnd, ValEnd: trainEnd + valSize}
	}
	return out, nil
}

// MeanAbsoluteError scores predictions against actual values.
func MeanAbsoluteError(pred, actual []float64) float64 {
	if len(pred) == 0 || len(pred) != len(actual) {
		return math.NaN()
	}
	sum := 0.0
	for i := range pred {
		sum += math.Abs(pred[i] - actual[i])
	}
	return sum / float64(len(pred))
}
