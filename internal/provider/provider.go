package provider

import (
	"context"
	"fmt"
	"time"

	"fxcast/internal/rates"
)

// DayFetcher retrieves one calendar day's OHLC record for a currency pair.
// A nil record with a nil error means the provider has no data for that day
// (closed market, unknown pair, provider-side outage); the caller skips the
// day. Errors are reserved for malformed or unauthorized responses.
type DayFetcher interface {
	FetchDay(ctx context.Context, date time.Time) (*rates.Record, error)
}

// ProviderError marks a malformed or unauthorized upstream response. It is
// not retried automatically.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider error (%d): %s", e.StatusCode, e.Message)
	}
	return "provider error: " + e.Message
}
