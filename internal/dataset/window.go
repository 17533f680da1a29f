package dataset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"fxcast/internal/rates"
)

const (
	closeColumnPrefix = "close_rate_"
	closeColumnSuffix = "_days_ago"

	// TargetColumn names the one-step-ahead closing rate.
	TargetColumn = "close_rate_next_day"
)

// CloseColumnName returns the feature column name for the closing rate N days
// before the target day.
func CloseColumnName(daysAgo int) string {
	return closeColumnPrefix + strconv.Itoa(daysAgo) + closeColumnSuffix
}

// IsCloseColumn reports whether a column holds a raw lookback closing rate,
// as opposed to a derived feature.
func IsCloseColumn(name string) bool {
	return strings.HasPrefix(name, closeColumnPrefix) && strings.HasSuffix(name, closeColumnSuffix)
}

// MakeWindows reshapes a daily closing-rate series into fixed-length lookback
// windows paired with one-step-ahead targets. Windows start at offsets
// 0, step, 2*step, ... for as long as a full window plus target fits; the
// feature columns run oldest-first (N days ago for N = lookback..1) and each
// row's date is the target's date. A series too short for a single window
// yields an empty table, not an error.
func MakeWindows(series rates.Series, lookback, step int) (*Table, error) {
	if lookback <= 0 {
		return nil, fmt.Errorf("dataset: lookback must be positive, got %d", lookback)
	}
	if step <= 0 {
		return nil, fmt.Errorf("dataset: step must be positive, got %d", step)
	}

	records := append([]rates.Record(nil), series.Records...)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})

	closes := make([]float64, len(records))
	for i, rec := range records {
		closes[i] = rec.Close.InexactFloat64()
	}

	var offsets []int
	for i := 0; i+lookback+1 <= len(records)-1; i += step {
		offsets = append(offsets, i)
	}

	rowDates := make([]time.Time, len(offsets))
	target := make([]float64, len(offsets))
	for row, i := range offsets {
		rowDates[row] = records[i+lookback].Date
		target[row] = closes[i+lookback]
	}

	table, err := NewTable(rowDates, target)
	if err != nil {
		return nil, err
	}

	for j := 0; j < lookback; j++ {
		col := make([]float64, len(offsets))
		for row, i := range offsets {
			col[row] = closes[i+j]
		}
		if err := table.AddColumn(CloseColumnName(lookback-j), col); err != nil {
			return nil, err
		}
	}

	return table, nil
}
