package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"fxcast/internal/config"
	"fxcast/internal/market"
	"fxcast/internal/metrics"
	"fxcast/internal/provider"
	"fxcast/internal/registry"
	"fxcast/internal/store"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Recorder *metrics.Recorder
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config:   cfg,
		Logger:   logger.With().Str("component", "app").Logger(),
		Recorder: metrics.New(nil),
	}
}

func (a *App) newStore() (*store.Store, error) {
	pair, err := a.Config.Pair()
	if err != nil {
		return nil, err
	}
	historyStart, err := a.Config.HistoryStart()
	if err != nil {
		return nil, err
	}

	fetcher := provider.NewClient(provider.Options{
		BaseURL:        a.Config.Provider.BaseURL,
		APIKey:         a.Config.Provider.APIKey,
		Timeout:        a.Config.Provider.RequestTimeout,
		RequestsPerSec: a.Config.Provider.RequestsPerSec,
		MaxRetries:     a.Config.Provider.MaxRetries,
		UserAgent:      a.Config.Provider.UserAgent,
	}, pair, a.Recorder, a.Logger)

	calendar := market.NewCalendar(a.Config.Market.CutoffHourUTC)
	return store.New(store.Options{
		Dir:          a.Config.Cache.Dir,
		HistoryStart: historyStart,
	}, pair, fetcher, calendar, nil, a.Recorder, a.Logger), nil
}

// openRegistry selects the configured registry backend: PostgreSQL when a DSN
// is set, the local directory otherwise.
func (a *App) openRegistry(ctx context.Context) (registry.Store, func(), error) {
	if a.Config.Registry.DSN != "" {
		pool, err := registry.NewPool(ctx, a.Config.Registry.DSN)
		if err != nil {
			return nil, nil, err
		}
		pg, err := registry.NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}

	local, err := registry.NewLocalStore(a.Config.Registry.Dir)
	if err != nil {
		return nil, nil, err
	}
	return local, func() {}, nil
}

func (a *App) modelName() string {
	if a.Config.Registry.ModelName != "" {
		return a.Config.Registry.ModelName
	}
	pair, err := a.Config.Pair()
	if err != nil {
		return "forecaster"
	}
	return pair.String() + "-forecaster"
}

// BackfillOptions configure the backfill job.
type BackfillOptions struct {
	From time.Time
	To   time.Time
}

// TrainOptions configure a training run. Model and Trials override the
// config when set; NoTune fits with default parameters instead of searching.
type TrainOptions struct {
	Model  string
	Trials int
	NoTune bool
	Upload bool
}

// ExportOptions hold parameters for exporting the cached series.
type ExportOptions struct {
	PNGPath   string
	CSVPath   string
	EMALength int
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
