package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fxcast/internal/rates"
)

const dateLayout = "2006-01-02"

var csvHeader = []string{"date", "open", "high", "low", "close"}

// seriesPath derives the deterministic cache file name for a covered range.
func (s *Store) seriesPath(start, end time.Time) string {
	name := fmt.Sprintf("%s_%s_%s.csv", s.pair, start.Format(dateLayout), end.Format(dateLayout))
	return filepath.Join(s.dir, name)
}

type cacheEntry struct {
	path  string
	start time.Time
	end   time.Time
}

// newestEntry finds the cache file with the latest covered end date.
func (s *Store) newestEntry() (cacheEntry, error) {
	pattern := filepath.Join(s.dir, s.pair.String()+"_*.csv")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return cacheEntry{}, fmt.Errorf("scan cache dir: %w", err)
	}

	var newest cacheEntry
	found := false
	for _, path := range matches {
		entry, ok := parseEntry(path)
		if !ok {
			continue
		}
		if !found || entry.end.After(newest.end) {
			newest = entry
			found = true
		}
	}
	if !found {
		return cacheEntry{}, ErrNoCachedData
	}
	return newest, nil
}

func parseEntry(path string) (cacheEntry, bool) {
	base := strings.TrimSuffix(filepath.Base(path), ".csv")
	parts := strings.Split(base, "_")
	if len(parts) != 3 {
		return cacheEntry{}, false
	}
	start, err := time.Parse(dateLayout, parts[1])
	if err != nil {
		return cacheEntry{}, false
	}
	end, err := time.Parse(dateLayout, parts[2])
	if err != nil {
		return cacheEntry{}, false
	}
	return cacheEntry{path: path, start: start, end: end}, true
}

func (s *Store) persist(series rates.Series, start, end time.Time) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	path := s.seriesPath(start, end)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range series.Records {
		row := []string{
			rec.Date.Format(dateLayout),
			rec.Open.String(),
			rec.High.String(),
			rec.Low.String(),
			rec.Close.String(),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	if err := writer.Error(); err != nil {
		return err
	}

	s.logger.Info().Str("file", path).Int("rows", series.Len()).Msg("series persisted")
	return nil
}

func (s *Store) loadSeries(path string) (rates.Series, error) {
	file, err := os.Open(path)
	if err != nil {
		return rates.Series{}, fmt.Errorf("open cache file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return rates.Series{}, fmt.Errorf("read cache file %s: %w", path, err)
	}
	if len(rows) == 0 {
		return rates.Series{Pair: s.pair}, nil
	}

	records := make([]rates.Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec, err := s.parseRow(row)
		if err != nil {
			return rates.Series{}, fmt.Errorf("cache file %s row %d: %w", path, i+2, err)
		}
		records = append(records, rec)
	}
	return rates.NewSeries(s.pair, records), nil
}

func (s *Store) parseRow(row []string) (rates.Record, error) {
	if len(row) != len(csvHeader) {
		return rates.Record{}, fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(row))
	}
	date, err := time.Parse(dateLayout, row[0])
	if err != nil {
		return rates.Record{}, fmt.Errorf("parse date: %w", err)
	}
	values := make([]decimal.Decimal, 4)
	for i, field := range row[1:] {
		v, err := decimal.NewFromString(field)
		if err != nil {
			return rates.Record{}, fmt.Errorf("parse %s: %w", csvHeader[i+1], err)
		}
		values[i] = v
	}
	return rates.Record{
		Date:  date.UTC(),
		Pair:  s.pair,
		Open:  values[0],
		High:  values[1],
		Low:   values[2],
		Close: values[3],
	}, nil
}
