package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
)

// Show prints the most recent cached OHLC rows.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	st, err := a.newStore()
	if err != nil {
		return err
	}

	series, err := st.Latest()
	if err != nil {
		return fmt.Errorf("no cached series; run backfill first: %w", err)
	}
	if series.Len() == 0 {
		fmt.Fprintln(os.Stdout, "no records found")
		return nil
	}

	limit := opts.Limit
	if limit <= 0 || limit > series.Len() {
		limit = series.Len()
	}
	recent := series.Records[series.Len()-limit:]

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tOpen\tHigh\tLow\tClose")
	for _, rec := range recent {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\n",
			rec.Date.Format("2006-01-02"),
			formatDecimal(rec.Open, 4),
			formatDecimal(rec.High, 4),
			formatDecimal(rec.Low, 4),
			formatDecimal(rec.Close, 4),
		)
	}

	writer.Flush()
	return nil
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
