package rates

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fxcast/internal/market"
)

// Record holds one calendar day's OHLC rates for a currency pair. Date is a
// civil date pinned to UTC midnight. Records are immutable once created.
type Record struct {
	Date  time.Time
	Pair  market.Pair
	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal
}

// Series is an ordered, date-deduplicated sequence of daily records for one
// pair. Dates are strictly increasing; non-trading days are simply absent.
type Series struct {
	Pair    market.Pair
	Records []Record
}

// NewSeries normalises the given records into a Series.
func NewSeries(pair market.Pair, records []Record) Series {
	s := Series{Pair: pair, Records: records}
	s.Normalize()
	return s
}

// Len returns the number of records.
func (s *Series) Len() int { return len(s.Records) }

// Append adds records to the series and re-normalises it.
func (s *Series) Append(records ...Record) {
	s.Records = append(s.Records, records...)
	s.Normalize()
}

// Normalize stable-sorts the records by date and drops duplicate dates,
// keeping the most recently appended record for each date.
func (s *Series) Normalize() {
	sort.SliceStable(s.Records, func(i, j int) bool {
		return s.Records[i].Date.Before(s.Records[j].Date)
	})

	out := s.Records[:0]
	for _, rec := range s.Records {
		rec.Date = market.Midnight(rec.Date)
		if n := len(out); n > 0 && market.SameDay(out[n-1].Date, rec.Date) {
			out[n-1] = rec
			continue
		}
		out = append(out, rec)
	}
	s.Records = out
}

// First returns the earliest record and whether the series is non-empty.
func (s *Series) First() (Record, bool) {
	if len(s.Records) == 0 {
		return Record{}, false
	}
	return s.Records[0], true
}

// Last returns the latest record and whether the series is non-empty.
func (s *Series) Last() (Record, bool) {
	if len(s.Records) == 0 {
		return Record{}, false
	}
	return s.Records[len(s.Records)-1], true
}

// Closes extracts the closing rates as float64, oldest first.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Records))
	for i, rec := range s.Records {
		out[i] = rec.Close.InexactFloat64()
	}
	return out
}

// Dates extracts the record dates, oldest first.
func (s *Series) Dates() []time.Time {
	out := make([]time.Time, len(s.Records))
	for i, rec := range s.Records {
		out[i] = rec.Date
	}
	return out
}
