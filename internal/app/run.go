package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"fxcast/internal/artifact"
	"fxcast/internal/dataset"
	"fxcast/internal/store"
)

// Run executes the long-running forecaster: the cached series is refreshed on
// the configured cron schedule and the next trading day's closing rate is
// forecast and logged after each refresh.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := a.newStore()
	if err != nil {
		return err
	}

	art, _, err := a.loadArtifact(ctx, ServeOptions{})
	if err != nil {
		a.Logger.Warn().Err(err).Msg("no trained model available; running refresh-only")
		art = nil
	}

	job := func() {
		if err := a.refreshAndForecast(ctx, st, art); err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error().Err(err).Msg("scheduled refresh failed")
		}
	}

	scheduler := cron.New(cron.WithLocation(time.UTC))
	if _, err := scheduler.AddFunc(a.Config.Run.Schedule, job); err != nil {
		return fmt.Errorf("parse run.schedule: %w", err)
	}

	if a.Config.Run.RunOnStartup {
		job()
	}

	a.Logger.Info().Str("schedule", a.Config.Run.Schedule).Msg("forecaster scheduled")
	scheduler.Start()
	<-ctx.Done()

	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		a.Logger.Warn().Msg("scheduler jobs still running at shutdown")
	}

	a.Logger.Info().Msg("forecaster stopped")
	return nil
}

func (a *App) refreshAndForecast(ctx context.Context, st *store.Store, art *artifact.Artifact) error {
	series, err := st.Refresh(ctx)
	if err != nil {
		return err
	}

	last, ok := series.Last()
	if !ok {
		return errors.New("refreshed series is empty")
	}
	a.Logger.Info().Time("last", last.Date).Str("close", last.Close.String()).Msg("series refreshed")

	if art == nil {
		return nil
	}

	table, err := latestWindow(series.Closes(), art.Lookback)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("not enough history to forecast")
		return nil
	}

	predictions, err := art.PredictTable(table)
	if err != nil {
		return err
	}
	if len(predictions) != 1 {
		return fmt.Errorf("expected one prediction, got %d", len(predictions))
	}

	a.Recorder.PredictionServed()
	a.Logger.Info().
		Str("pair", art.Pair).
		Time("as_of", last.Date).
		Float64("predicted_next_close", predictions[0]).
		Msg("forecast")
	return nil
}

// latestWindow builds a single-row window table from the trailing lookback
// closes, newest rate in the 1-day-ago column.
func latestWindow(closes []float64, lookback int) (*dataset.Table, error) {
	if len(closes) < lookback {
		return nil, fmt.Errorf("need %d closes, have %d", lookback, len(closes))
	}

	table, err := dataset.NewTable([]time.Time{time.Now().UTC()}, []float64{0})
	if err != nil {
		return nil, err
	}
	tail := closes[len(closes)-lookback:]
	for n := lookback; n >= 1; n-- {
		if err := table.AddColumn(dataset.CloseColumnName(n), []float64{tail[lookback-n]}); err != nil {
			return nil, err
		}
	}
	return table, nil
}
