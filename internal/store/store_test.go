package store

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fxcast/internal/market"
	"fxcast/internal/provider"
	"fxcast/internal/rates"
)

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

// fakeFetcher serves a fixed closing rate per date and records every fetch.
type fakeFetcher struct {
	pair    market.Pair
	fetched []time.Time
	fail    map[string]error
	missing map[string]bool
}

func (f *fakeFetcher) FetchDay(_ context.Context, date time.Time) (*rates.Record, error) {
	f.fetched = append(f.fetched, date)
	key := date.Format("2006-01-02")
	if err, ok := f.fail[key]; ok {
		return nil, err
	}
	if f.missing[key] {
		return nil, nil
	}
	v := decimal.NewFromFloat(15.0 + float64(date.YearDay())/100)
	return &rates.Record{Date: date, Pair: f.pair, Open: v, High: v, Low: v, Close: v}, nil
}

func newTestStore(t *testing.T, now time.Time) (*Store, *fakeFetcher) {
	t.Helper()
	pair, err := market.NewPair("GBP", "GHS")
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}
	fetcher := &fakeFetcher{pair: pair, fail: map[string]error{}, missing: map[string]bool{}}
	s := New(
		Options{Dir: t.TempDir()},
		pair,
		fetcher,
		market.NewCalendar(market.DefaultCutoffHourUTC),
		fakeClock{now: now},
		nil,
		zerolog.Nop(),
	)
	return s, fetcher
}

// Monday through Friday of a trading week; "now" is Wednesday noon.
var (
	monday    = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	wednesday = time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)
)

func TestGetOrBuildCacheIdempotence(t *testing.T) {
	s, fetcher := newTestStore(t, wednesday)

	first, err := s.GetOrBuild(context.Background(), monday, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("GetOrBuild: %v", err)
	}
	if first.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", first.Len())
	}
	fetchesAfterBuild := len(fetcher.fetched)

	second, err := s.GetOrBuild(context.Background(), monday, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("GetOrBuild (cached): %v", err)
	}
	if len(fetcher.fetched) != fetchesAfterBuild {
		t.Fatalf("second identical call must be a pure cache hit; fetches went %d -> %d",
			fetchesAfterBuild, len(fetcher.fetched))
	}
	if second.Len() != first.Len() {
		t.Fatalf("cached series length %d != built %d", second.Len(), first.Len())
	}
}

func TestGetOrBuildSkipsSaturday(t *testing.T) {
	// Friday 2024-03-01 through Monday 2024-03-04 spans a Saturday.
	now := time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)
	s, fetcher := newTestStore(t, now)

	friday := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := s.GetOrBuild(context.Background(), friday, friday.AddDate(0, 0, 3)); err != nil {
		t.Fatalf("GetOrBuild: %v", err)
	}

	for _, d := range fetcher.fetched {
		if d.Weekday() == time.Saturday {
			t.Fatalf("saturday %s must never be fetched", d)
		}
	}
	if len(fetcher.fetched) != 3 { // Fri, Sun, Mon
		t.Fatalf("expected 3 fetches, got %d", len(fetcher.fetched))
	}
}

func TestGetOrBuildSkipsSingleBadDay(t *testing.T) {
	s, fetcher := newTestStore(t, wednesday)
	fetcher.fail[monday.AddDate(0, 0, 1).Format("2006-01-02")] = &provider.ProviderError{Message: "boom"}

	series, err := s.GetOrBuild(context.Background(), monday, monday.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("a single bad day must not abort the build: %v", err)
	}
	if series.Len() != 2 {
		t.Fatalf("expected a gap for the bad day; got %d records", series.Len())
	}
}

func TestGetOrBuildEmptyRangeLeavesNoCacheFile(t *testing.T) {
	s, fetcher := newTestStore(t, wednesday)
	fetcher.missing["2024-03-04"] = true
	fetcher.missing["2024-03-05"] = true

	series, err := s.GetOrBuild(context.Background(), monday, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("GetOrBuild: %v", err)
	}
	if series.Len() != 0 {
		t.Fatalf("expected an empty series, got %d records", series.Len())
	}
	if _, err := s.Latest(); err != ErrNoCachedData {
		t.Fatalf("an empty series must not be persisted; Latest returned %v", err)
	}

	// The next identical call must reach the provider again, not cache-hit
	// an empty file.
	fetchesAfterFirst := len(fetcher.fetched)
	delete(fetcher.missing, "2024-03-04")
	delete(fetcher.missing, "2024-03-05")
	second, err := s.GetOrBuild(context.Background(), monday, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("GetOrBuild (retry): %v", err)
	}
	if len(fetcher.fetched) == fetchesAfterFirst {
		t.Fatal("retry after an empty build must re-fetch the range")
	}
	if second.Len() != 2 {
		t.Fatalf("expected 2 records once the provider has data, got %d", second.Len())
	}
}

func TestGetOrBuildExcludesClosedToday(t *testing.T) {
	// Friday 23:00 UTC: the session is closed, so "today" must be excluded.
	fridayEvening := time.Date(2024, 3, 8, 23, 0, 0, 0, time.UTC)
	s, fetcher := newTestStore(t, fridayEvening)

	if _, err := s.GetOrBuild(context.Background(), monday, fridayEvening); err != nil {
		t.Fatalf("GetOrBuild: %v", err)
	}
	for _, d := range fetcher.fetched {
		if market.SameDay(d, fridayEvening) {
			t.Fatalf("closed today %s must not be fetched", d)
		}
	}
	if len(fetcher.fetched) != 4 { // Mon..Thu
		t.Fatalf("expected 4 fetches, got %d", len(fetcher.fetched))
	}
}

func TestLatestWithoutCache(t *testing.T) {
	s, _ := newTestStore(t, wednesday)
	if _, err := s.Latest(); err != ErrNoCachedData {
		t.Fatalf("expected ErrNoCachedData, got %v", err)
	}
}

func TestRefreshMonotonicity(t *testing.T) {
	s, fetcher := newTestStore(t, wednesday)

	if _, err := s.GetOrBuild(context.Background(), monday, monday); err != nil {
		t.Fatalf("seed: %v", err)
	}
	fetcher.fetched = nil

	series, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	for _, d := range fetcher.fetched {
		if !d.After(monday) {
			t.Fatalf("refresh fetched %s, at or before cached last date %s", d, monday)
		}
	}
	if len(fetcher.fetched) != 2 { // Tue, Wed
		t.Fatalf("expected 2 fetches, got %d: %v", len(fetcher.fetched), fetcher.fetched)
	}
	last, _ := series.Last()
	if !market.SameDay(last.Date, wednesday) {
		t.Fatalf("refreshed series should end today, ends %s", last.Date)
	}

	// The refreshed range is now the newest local series.
	latest, err := s.Latest()
	if err != nil {
		t.Fatalf("Latest after refresh: %v", err)
	}
	if latest.Len() != series.Len() {
		t.Fatalf("persisted series has %d rows, refreshed had %d", latest.Len(), series.Len())
	}
}

func TestRefreshUpToDateMakesNoNetworkCall(t *testing.T) {
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	s, fetcher := newTestStore(t, now)

	if _, err := s.GetOrBuild(context.Background(), monday, monday); err != nil {
		t.Fatalf("seed: %v", err)
	}
	fetcher.fetched = nil

	series, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(fetcher.fetched) != 0 {
		t.Fatalf("up-to-date refresh must not fetch; fetched %v", fetcher.fetched)
	}
	if series.Len() != 1 {
		t.Fatalf("series should be unchanged, got %d rows", series.Len())
	}
}

func TestRefreshProviderUnreachableKeepsLastGood(t *testing.T) {
	s, fetcher := newTestStore(t, wednesday)

	seed, err := s.GetOrBuild(context.Background(), monday, monday)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	for _, key := range []string{"2024-03-05", "2024-03-06"} {
		fetcher.fail[key] = &provider.ProviderError{Message: "down"}
	}

	series, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("unreachable provider must not error a refresh: %v", err)
	}
	if series.Len() != seed.Len() {
		t.Fatalf("expected last known-good series unchanged, got %d rows", series.Len())
	}
}

func TestCacheFileRoundTrip(t *testing.T) {
	s, _ := newTestStore(t, wednesday)

	built, err := s.GetOrBuild(context.Background(), monday, monday.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("GetOrBuild: %v", err)
	}

	loaded, err := s.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if loaded.Len() != built.Len() {
		t.Fatalf("round trip changed length: %d != %d", loaded.Len(), built.Len())
	}
	for i := range built.Records {
		want := built.Records[i]
		got := loaded.Records[i]
		if !market.SameDay(want.Date, got.Date) || !want.Close.Equal(got.Close) {
			t.Fatalf("row %d changed in round trip: %+v != %+v", i, got, want)
		}
	}
}
