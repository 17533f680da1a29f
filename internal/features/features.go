package features

import (
	"fmt"
	"strconv"

	"fxcast/internal/dataset"
)

// Transformer derives new feature columns from a window table, in place.
// Transformers are stateless aside from their length parameter; adding a
// column that already exists fails rather than silently overwriting.
type Transformer interface {
	Name() string
	Apply(t *dataset.Table) error
}

// FeatureRangeError signals that a requested derived-feature horizon exceeds
// the available lookback length.
type FeatureRangeError struct {
	Horizon int
	Column  string
}

func (e *FeatureRangeError) Error() string {
	return fmt.Sprintf("feature horizon %d exceeds the lookback window (missing column %s)", e.Horizon, e.Column)
}

// Apply runs the transformers in order.
func Apply(t *dataset.Table, transformers ...Transformer) error {
	for _, tr := range transformers {
		if err := tr.Apply(t); err != nil {
			return fmt.Errorf("%s: %w", tr.Name(), err)
		}
	}
	return nil
}

// PctChange adds the percentage change of yesterday's close against the close
// Days ago: 100 * (close_1 - close_N) / close_N.
type PctChange struct {
	Days int
}

func (p PctChange) Name() string {
	return "pct_change_" + strconv.Itoa(p.Days) + "d"
}

func (p PctChange) column() string {
	return "pct_change_1d_vs_" + strconv.Itoa(p.Days) + "d"
}

func (p PctChange) Apply(t *dataset.Table) error {
	yesterday, ok := t.Column(dataset.CloseColumnName(1))
	if !ok {
		return &FeatureRangeError{Horizon: 1, Column: dataset.CloseColumnName(1)}
	}
	reference, ok := t.Column(dataset.CloseColumnName(p.Days))
	if !ok {
		return &FeatureRangeError{Horizon: p.Days, Column: dataset.CloseColumnName(p.Days)}
	}

	values := make([]float64, t.NumRows())
	for i := range values {
		values[i] = 100 * (yesterday[i] - reference[i]) / reference[i]
	}
	return t.AddColumn(p.column(), values)
}

// baseCloseColumns snapshots the raw lookback columns before a transformer
// starts appending derived ones.
func baseCloseColumns(t *dataset.Table) []string {
	var out []string
	for _, name := range t.Columns() {
		if dataset.IsCloseColumn(name) {
			out = append(out, name)
		}
	}
	return out
}

// RSI adds a Wilder-smoothed relative-strength-index column for every raw
// closing-rate column, reading each column row-by-row as a time series. Rows
// without enough history take the neutral value 50 so early rows stay usable
// for training.
type RSI struct {
	Length int
}

func (r RSI) Name() string { return "rsi_" + strconv.Itoa(r.Length) }

func (r RSI) Apply(t *dataset.Table) error {
	if r.Length <= 0 {
		return fmt.Errorf("rsi length must be positive, got %d", r.Length)
	}
	for _, name := range baseCloseColumns(t) {
		col, _ := t.Column(name)
		derived := rsiSeries(col, r.Length)
		if err := t.AddColumn("rsi"+strconv.Itoa(r.Length)+"_"+name, derived); err != nil {
			return err
		}
	}
	return nil
}

func rsiSeries(x []float64, length int) []float64 {
	out := make([]float64, len(x))
	for i := range out {
		out[i] = 50
	}
	if len(x) < length+1 {
		return out
	}

	var gains, losses float64
	for i := 1; i <= length; i++ {
		change := x[i] - x[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	avgGain := gains / float64(length)
	avgLoss := losses / float64(length)
	out[length] = rsiValue(avgGain, avgLoss)

	for i := length + 1; i < len(x); i++ {
		change := x[i] - x[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(length-1) + gain) / float64(length)
		avgLoss = (avgLoss*float64(length-1) + loss) / float64(length)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// EMA adds an exponential moving average column for every raw closing-rate
// column, over the same row-wise series as RSI. The average is seeded with
// the first value (alpha = 2/(length+1)), so no fill is needed.
type EMA struct {
	Length int
}

func (e EMA) Name() string { return "ema_" + strconv.Itoa(e.Length) }

func (e EMA) Apply(t *dataset.Table) error {
	if e.Length <= 0 {
		return fmt.Errorf("ema length must be positive, got %d", e.Length)
	}
	for _, name := range baseCloseColumns(t) {
		col, _ := t.Column(name)
		derived := emaSeries(col, e.Length)
		if err := t.AddColumn("ema"+strconv.Itoa(e.Length)+"_"+name, derived); err != nil {
			return err
		}
	}
	return nil
}

// EMASeries computes the exponential moving average of a raw series, seeded
// with the first value.
func EMASeries(x []float64, length int) []float64 {
	return emaSeries(x, length)
}

func emaSeries(x []float64, length int) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	alpha := 2 / (float64(length) + 1)
	out[0] = x[0]
	for i := 1; i < len(x); i++ {
		out[i] = alpha*x[i] + (1-alpha)*out[i-1]
	}
	return out
}

// Pipeline assembles the canonical enrichment order: percentage changes over
// each horizon, then RSI, then EMA.
func Pipeline(pctDays []int, rsiLength, emaLength int) []Transformer {
	var out []Transformer
	for _, days := range pctDays {
		out = append(out, PctChange{Days: days})
	}
	out = append(out, RSI{Length: rsiLength}, EMA{Length: emaLength})
	return out
}
