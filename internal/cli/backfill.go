package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fxcast/internal/app"
)

var (
	backfillFrom string
	backfillTo   string
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Download and cache historical daily rates",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.BackfillOptions{}

		if backfillFrom != "" {
			from, err := time.Parse("2006-01-02", backfillFrom)
			if err != nil {
				return fmt.Errorf("invalid --from value: %w", err)
			}
			opts.From = from.UTC()
		}

		if backfillTo != "" {
			to, err := time.Parse("2006-01-02", backfillTo)
			if err != nil {
				return fmt.Errorf("invalid --to value: %w", err)
			}
			opts.To = to.UTC()
		}

		if !opts.From.IsZero() && !opts.To.IsZero() && opts.From.After(opts.To) {
			return fmt.Errorf("--from must not be after --to")
		}

		return getApp().Backfill(cmd.Context(), opts)
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillFrom, "from", "", "Start date (YYYY-MM-DD, defaults to configured history start)")
	backfillCmd.Flags().StringVar(&backfillTo, "to", "", "End date (YYYY-MM-DD, defaults to today)")
}
