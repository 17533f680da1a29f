package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"fxcast/internal/market"
	"fxcast/internal/metrics"
	"fxcast/internal/provider"
	"fxcast/internal/rates"
)

// ErrNoCachedData indicates no local series exists where one was required.
// Callers may fall back to a full download.
var ErrNoCachedData = errors.New("store: no cached series for pair")

// Options configure a Store.
type Options struct {
	Dir          string
	HistoryStart time.Time
}

// Store manages the local cache of daily OHLC series for one currency pair.
// One columnar file is kept per covered date range; an exact-range request is
// answered from disk without touching the network.
type Store struct {
	dir          string
	pair         market.Pair
	historyStart time.Time
	fetcher      provider.DayFetcher
	calendar     market.Calendar
	clock        market.Clock
	logger       zerolog.Logger
	recorder     *metrics.Recorder
}

// New constructs a Store. The clock defaults to the system clock.
func New(opts Options, pair market.Pair, fetcher provider.DayFetcher, calendar market.Calendar, clock market.Clock, recorder *metrics.Recorder, logger zerolog.Logger) *Store {
	if clock == nil {
		clock = market.SystemClock{}
	}
	historyStart := opts.HistoryStart
	if historyStart.IsZero() {
		historyStart = time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &Store{
		dir:          opts.Dir,
		pair:         pair,
		historyStart: market.Midnight(historyStart),
		fetcher:      fetcher,
		calendar:     calendar,
		clock:        clock,
		logger:       logger.With().Str("component", "store").Str("pair", pair.String()).Logger(),
		recorder:     recorder,
	}
}

// GetOrBuild returns the series covering [start, end]. An exact-range cache
// file is loaded unmodified; otherwise the range is downloaded one day at a
// time, persisted, and returned.
func (s *Store) GetOrBuild(ctx context.Context, start, end time.Time) (rates.Series, error) {
	start = market.Midnight(start)
	end = s.clampEnd(market.Midnight(end))

	if start.After(end) {
		return rates.Series{}, fmt.Errorf("start %s after end %s", start.Format(dateLayout), end.Format(dateLayout))
	}

	path := s.seriesPath(start, end)
	if _, err := os.Stat(path); err == nil {
		s.logger.Info().Str("file", path).Msg("cache hit")
		return s.loadSeries(path)
	}

	series, stats, err := s.download(ctx, start, end)
	if err != nil {
		return rates.Series{}, err
	}

	if stats.unreachable() {
		s.logger.Warn().Msg("provider unreachable for the entire range; falling back to latest local series")
		if latest, lerr := s.Latest(); lerr == nil {
			return latest, nil
		}
		return rates.Series{}, fmt.Errorf("provider unreachable and no local fallback: %w", stats.lastErr)
	}

	if series.Len() == 0 {
		// Nothing came back for any day in the range. Persisting would plant
		// an empty file that future exact-range calls cache-hit forever.
		s.logger.Warn().Msg("range yielded no records; not persisting")
		return series, nil
	}

	if err := s.persist(series, start, end); err != nil {
		return rates.Series{}, err
	}
	s.noteLastClose(series)
	return series, nil
}

// Latest returns the most recently persisted series for the pair, preferring
// the file with the latest covered end date. ErrNoCachedData when none exists.
func (s *Store) Latest() (rates.Series, error) {
	entry, err := s.newestEntry()
	if err != nil {
		return rates.Series{}, err
	}
	return s.loadSeries(entry.path)
}

// Refresh brings the latest local series up to date. With no local data it
// performs a full build from the configured history start. When the cached
// series already ends today it is returned unchanged with no network call.
// Otherwise only the missing days are fetched: from the day after the cached
// last date through today, excluding today itself while the session is
// closed. A refresh never fetches a date at or before the cached last date.
func (s *Store) Refresh(ctx context.Context) (rates.Series, error) {
	now := s.clock.Now()

	current, err := s.Latest()
	if errors.Is(err, ErrNoCachedData) {
		s.logger.Info().Msg("no local series; downloading full history")
		return s.GetOrBuild(ctx, s.historyStart, now)
	}
	if err != nil {
		return rates.Series{}, err
	}

	last, ok := current.Last()
	if !ok {
		return s.GetOrBuild(ctx, s.historyStart, now)
	}

	if market.SameDay(last.Date, now) {
		s.logger.Info().Msg("local series is up to date")
		return current, nil
	}

	start := last.Date.AddDate(0, 0, 1)
	end := s.clampEnd(market.Midnight(now))
	if start.After(end) {
		return current, nil
	}

	fresh, stats, err := s.download(ctx, start, end)
	if err != nil {
		return rates.Series{}, err
	}

	if stats.unreachable() {
		s.logger.Warn().Err(stats.lastErr).
			Msg("provider unreachable for the entire refresh; keeping last known-good series")
		return current, nil
	}

	if fresh.Len() == 0 {
		s.logger.Info().Msg("no new rates published since last refresh")
		return current, nil
	}

	current.Append(fresh.Records...)

	first, _ := current.First()
	newLast, _ := current.Last()
	if err := s.persist(current, first.Date, newLast.Date); err != nil {
		return rates.Series{}, err
	}
	s.noteLastClose(current)
	return current, nil
}

type downloadStats struct {
	attempted int
	fetched   int
	errored   int
	lastErr   error
}

// unreachable is true when every attempted day failed outright, as opposed to
// the provider answering "no data" for some days.
func (d downloadStats) unreachable() bool {
	return d.attempted > 0 && d.errored == d.attempted
}

func (s *Store) download(ctx context.Context, start, end time.Time) (rates.Series, downloadStats, error) {
	series := rates.Series{Pair: s.pair}
	var stats downloadStats

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return rates.Series{}, stats, err
		}

		if !s.calendar.IsTradingDay(day) {
			s.recorder.DaySkipped("closed")
			continue
		}

		stats.attempted++
		rec, err := s.fetcher.FetchDay(ctx, day)
		if err != nil {
			// A bad day is logged and skipped; the series simply has a gap.
			stats.errored++
			stats.lastErr = err
			s.recorder.DaySkipped("error")
			s.logger.Warn().Err(err).Time("date", day).Msg("skipping day after provider error")
			continue
		}
		if rec == nil {
			s.recorder.DaySkipped("unavailable")
			continue
		}
		stats.fetched++
		series.Append(*rec)
	}

	return series, stats, nil
}

// clampEnd pulls the end of a requested range back by one day when it falls
// on today and the session is currently closed.
func (s *Store) clampEnd(end time.Time) time.Time {
	now := s.clock.Now()
	if market.SameDay(end, now) && s.calendar.IsClosed(now) {
		return end.AddDate(0, 0, -1)
	}
	return end
}

func (s *Store) noteLastClose(series rates.Series) {
	if last, ok := series.Last(); ok {
		s.recorder.LastClose(s.pair.String(), last.Close.InexactFloat64())
	}
}
