package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fxcast/internal/dataset"
	"fxcast/internal/market"
	"fxcast/internal/rates"
)

func tableFromCloses(t *testing.T, closes []float64, lookback int) *dataset.Table {
	t.Helper()
	pair, err := market.NewPair("GBP", "GHS")
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := make([]rates.Record, len(closes))
	for i, c := range closes {
		v := decimal.NewFromFloat(c)
		records[i] = rates.Record{Date: start.AddDate(0, 0, i), Pair: pair, Open: v, High: v, Low: v, Close: v}
	}
	table, err := dataset.MakeWindows(rates.NewSeries(pair, records), lookback, 1)
	if err != nil {
		t.Fatalf("MakeWindows: %v", err)
	}
	return table
}

func TestPctChangeValue(t *testing.T) {
	// Window [100, 110] with target 121: yesterday's close is 110, the close
	// two days ago is 100, so the 2-day percentage change is +10%.
	table := tableFromCloses(t, []float64{100, 110, 121, 133.1}, 2)
	if table.NumRows() != 1 {
		t.Fatalf("rows = %d, want 1", table.NumRows())
	}

	if err := Apply(table, PctChange{Days: 2}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	col, ok := table.Column("pct_change_1d_vs_2d")
	if !ok {
		t.Fatal("pct change column missing")
	}
	if math.Abs(col[0]-10.0) > 1e-9 {
		t.Fatalf("pct change = %v, want 10.0", col[0])
	}
}

func TestPctChangeHorizonBeyondLookback(t *testing.T) {
	table := tableFromCloses(t, []float64{1, 2, 3, 4, 5, 6, 7, 8}, 3)

	err := Apply(table, PctChange{Days: 7})
	var rangeErr *FeatureRangeError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("expected FeatureRangeError, got %v", err)
	}
	if rangeErr.Horizon != 7 {
		t.Fatalf("horizon = %d, want 7", rangeErr.Horizon)
	}
}

func TestRSIFillAndBounds(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + 3*math.Sin(float64(i))
	}
	table := tableFromCloses(t, closes, 4)

	if err := Apply(table, RSI{Length: 5}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	col, ok := table.Column("rsi5_" + dataset.CloseColumnName(1))
	if !ok {
		t.Fatal("rsi column missing")
	}
	for i, v := range col {
		if math.IsNaN(v) {
			t.Fatalf("rsi[%d] is NaN", i)
		}
		if v < 0 || v > 100 {
			t.Fatalf("rsi[%d] = %v out of [0,100]", i, v)
		}
		if i < 5 && v != 50 {
			t.Fatalf("rsi[%d] = %v, leading rows must take the neutral 50", i, v)
		}
	}

	// One RSI column per raw closing-rate column.
	count := 0
	for _, name := range table.Columns() {
		if len(name) > 4 && name[:4] == "rsi5" {
			count++
		}
	}
	if count != 4 {
		t.Fatalf("expected 4 rsi columns, got %d", count)
	}
}

func TestRSIShortSeriesAllNeutral(t *testing.T) {
	table := tableFromCloses(t, []float64{1, 2, 3, 4, 5}, 3)
	if err := Apply(table, RSI{Length: 14}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	col, _ := table.Column("rsi14_" + dataset.CloseColumnName(1))
	for i, v := range col {
		if v != 50 {
			t.Fatalf("rsi[%d] = %v, want 50 with insufficient history", i, v)
		}
	}
}

func TestEMASeedAndCompleteness(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19}
	table := tableFromCloses(t, closes, 3)

	if err := Apply(table, EMA{Length: 4}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	base, _ := table.Column(dataset.CloseColumnName(1))
	col, ok := table.Column("ema4_" + dataset.CloseColumnName(1))
	if !ok {
		t.Fatal("ema column missing")
	}
	if col[0] != base[0] {
		t.Fatalf("ema[0] = %v, want the seed value %v", col[0], base[0])
	}
	alpha := 2.0 / 5.0
	want := alpha*base[1] + (1-alpha)*col[0]
	if math.Abs(col[1]-want) > 1e-12 {
		t.Fatalf("ema[1] = %v, want %v", col[1], want)
	}
	for i, v := range col {
		if math.IsNaN(v) {
			t.Fatalf("ema[%d] is NaN", i)
		}
	}
}

func TestReapplyingTransformerFails(t *testing.T) {
	table := tableFromCloses(t, []float64{1, 2, 3, 4, 5, 6, 7, 8}, 3)

	if err := Apply(table, PctChange{Days: 2}); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	err := Apply(table, PctChange{Days: 2})
	if !errors.Is(err, dataset.ErrDuplicateColumn) {
		t.Fatalf("reapply must fail with ErrDuplicateColumn, got %v", err)
	}
}

func TestPipelineOrderAndAlignment(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i%7)
	}
	table := tableFromCloses(t, closes, 30)
	rows := table.NumRows()

	if err := Apply(table, Pipeline([]int{2, 7, 14, 30}, 14, 14)...); err != nil {
		t.Fatalf("Apply pipeline: %v", err)
	}

	// Derived columns keep row alignment with the base columns.
	for _, name := range table.Columns() {
		col, _ := table.Column(name)
		if len(col) != rows {
			t.Fatalf("column %s has %d rows, table has %d", name, len(col), rows)
		}
	}
	// 30 base + 4 pct + 30 rsi + 30 ema
	if got := len(table.Columns()); got != 94 {
		t.Fatalf("columns = %d, want 94", got)
	}
}
