package training

import (
	"math"
	"testing"
)

func TestTimeSeriesSplitLayout(t *testing.T) {
	folds, err := TimeSeriesSplit(120, 5)
	if err != nil {
		t.Fatalf("TimeSeriesSplit: %v", err)
	}
	if len(folds) != 5 {
		t.Fatalf("want 5 folds, got %d", len(folds))
	}

	// 120 rows, 5 folds: validation blocks of 20, first training cut at 20.
	if folds[0].TrainEnd != 20 || folds[0].ValEnd != 40 {
		t.Fatalf("first fold = %+v", folds[0])
	}
	if folds[4].ValEnd != 120 {
		t.Fatalf("last fold must end at the final row, got %+v", folds[4])
	}

	for i, f := range folds {
		if f.TrainEnd <= 0 || f.ValEnd <= f.TrainEnd {
			t.Fatalf("fold %d has empty train or validation block: %+v", i, f)
		}
		if i > 0 && f.TrainEnd != folds[i-1].ValEnd {
			t.Fatalf("fold %d does not start where fold %d validated: %+v vs %+v", i, i-1, f, folds[i-1])
		}
	}
}

func TestTimeSeriesSplitUnevenRows(t *testing.T) {
	folds, err := TimeSeriesSplit(23, 5)
	if err != nil {
		t.Fatalf("TimeSeriesSplit: %v", err)
	}
	// 23/(5+1) = 3 validation rows per fold; the remainder pads the first
	// training block.
	if folds[0].TrainEnd != 8 {
		t.Fatalf("first training cut = %d, want 8", folds[0].TrainEnd)
	}
	if folds[4].ValEnd != 23 {
		t.Fatalf("last fold must end at row 23, got %+v", folds[4])
	}
}

func TestTimeSeriesSplitRejectsTinyInputs(t *testing.T) {
	if _, err := TimeSeriesSplit(100, 1); err == nil {
		t.Fatal("one fold must be rejected")
	}
	if _, err := TimeSeriesSplit(4, 5); err == nil {
		t.Fatal("too few rows for the fold count must be rejected")
	}
}

func TestMeanAbsoluteError(t *testing.T) {
	got := MeanAbsoluteError([]float64{1, 2, 3}, []float64{2, 2, 5})
	if got != 1 {
		t.Fatalf("MAE = %v, want 1", got)
	}
	if !math.IsNaN(MeanAbsoluteError(nil, nil)) {
		t.Fatal("empty input must score NaN")
	}
	if !math.IsNaN(MeanAbsoluteError([]float64{1}, []float64{1, 2})) {
		t.Fatal("length mismatch must score NaN")
	}
}
