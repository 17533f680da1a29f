package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"fxcast/internal/features"
	"fxcast/internal/rates"
)

// Export renders the cached series as CSV and/or a PNG chart of the closing
// rate with an EMA overlay.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.EMALength <= 0 {
		opts.EMALength = 9
	}
	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	st, err := a.newStore()
	if err != nil {
		return err
	}
	series, err := st.Latest()
	if err != nil {
		return fmt.Errorf("no cached series to export; run backfill first: %w", err)
	}
	if series.Len() == 0 {
		a.Logger.Info().Msg("cached series is empty; nothing to export")
		return nil
	}

	records := downsampleRecords(series.Records, opts.MaxPoints)
	a.Logger.Info().Int("total", series.Len()).Int("exported", len(records)).Msg("exporting series")

	if opts.CSVPath != "" {
		if err := writeRatesCSV(opts.CSVPath, records); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeRatesPNG(opts.PNGPath, series.Pair.String(), records, opts.EMALength); err != nil {
			return err
		}
	}
	return nil
}

func downsampleRecords(records []rates.Record, max int) []rates.Record {
	if max <= 0 || len(records) <= max {
		return records
	}

	result := make([]rates.Record, 0, max)
	step := float64(len(records)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(records) {
			idx = len(records) - 1
		}
		result = append(result, records[idx])
	}
	return result
}

func writeRatesCSV(path string, records []rates.Record) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"date", "open", "high", "low", "close"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		row := []string{
			rec.Date.Format("2006-01-02"),
			rec.Open.String(),
			rec.High.String(),
			rec.Low.String(),
			rec.Close.String(),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeRatesPNG(path, pair string, records []rates.Record, emaLength int) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(records))
	closes := make([]float64, len(records))
	for i, rec := range records {
		x[i] = rec.Date
		closes[i] = rec.Close.InexactFloat64()
	}
	ema := features.EMASeries(closes, emaLength)

	rateFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.4f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Closing rate (" + pair + ")",
			ValueFormatter: rateFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Close",
				XValues: x,
				YValues: closes,
			},
			chart.TimeSeries{
				Name:    "EMA " + strconv.Itoa(emaLength),
				XValues: x,
				YValues: ema,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
