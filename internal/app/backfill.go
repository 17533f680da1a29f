package app

import (
	"context"
	"errors"
	"time"
)

// Backfill downloads and caches the pair's daily history for the requested
// range. An empty range defaults to history start through today.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	st, err := a.newStore()
	if err != nil {
		return err
	}

	from := opts.From
	if from.IsZero() {
		from, err = a.Config.HistoryStart()
		if err != nil {
			return err
		}
	}
	to := opts.To
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.After(to) {
		return errors.New("backfill range is empty; check --from/--to")
	}

	series, err := st.GetOrBuild(ctx, from, to)
	if err != nil {
		return err
	}

	first, _ := series.First()
	last, ok := series.Last()
	if !ok {
		a.Logger.Warn().Msg("backfill produced no records")
		return nil
	}
	a.Logger.Info().
		Int("records", series.Len()).
		Time("first", first.Date).
		Time("last", last.Date).
		Msg("backfill complete")
	return nil
}

// Refresh brings the cached series up to date with the provider.
func (a *App) Refresh(ctx context.Context) error {
	st, err := a.newStore()
	if err != nil {
		return err
	}

	series, err := st.Refresh(ctx)
	if err != nil {
		return err
	}

	last, ok := series.Last()
	if !ok {
		a.Logger.Warn().Msg("refresh produced no records")
		return nil
	}
	a.Logger.Info().
		Int("records", series.Len()).
		Time("last", last.Date).
		Str("close", last.Close.String()).
		Msg("refresh complete")
	return nil
}
