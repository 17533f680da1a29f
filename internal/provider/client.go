package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"fxcast/internal/market"
	"fxcast/internal/metrics"
	"fxcast/internal/rates"
)

const groupedDailyPathFmt = "/v2/aggs/grouped/locale/global/market/fx/%s"

// Options parameterise the market-data client.
type Options struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RequestsPerSec int
	MaxRetries     uint64
	UserAgent      string
}

// Client fetches grouped daily FX bars, one HTTP GET per calendar day.
type Client struct {
	opts     Options
	pair     market.Pair
	logger   zerolog.Logger
	client   *http.Client
	limiter  *rate.Limiter
	baseURL  string
	recorder *metrics.Recorder
}

// NewClient constructs a provider client for one currency pair.
func NewClient(opts Options, pair market.Pair, recorder *metrics.Recorder, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	perSec := opts.RequestsPerSec
	if perSec <= 0 {
		perSec = 5
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.polygon.io"
	}

	return &Client{
		opts:     opts,
		pair:     pair,
		logger:   logger.With().Str("component", "provider").Str("pair", pair.String()).Logger(),
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(perSec), perSec),
		baseURL:  baseURL,
		recorder: recorder,
	}
}

type groupedDailyResponse struct {
	Status  string        `json:"status"`
	Results []dailyResult `json:"results"`
}

type dailyResult struct {
	Ticker string  `json:"T"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
}

// FetchDay performs one provider request for the given calendar date. It
// returns (nil, nil) when the provider reports no record for the pair on that
// date; transient statuses (429, 5xx) are retried with bounded backoff before
// the day is declared unavailable.
func (c *Client) FetchDay(ctx context.Context, date time.Time) (*rates.Record, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := c.baseURL + fmt.Sprintf(groupedDailyPathFmt, date.UTC().Format("2006-01-02"))

	var record *rates.Record
	operation := func() error {
		rec, err := c.fetchOnce(ctx, endpoint, date)
		if err != nil {
			return err
		}
		record = rec
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries()),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		var transient *transientError
		if errors.As(err, &transient) {
			// Retries exhausted on a throttled/unstable upstream: treat the
			// day as unavailable rather than failing the whole build.
			c.logger.Warn().Time("date", date).Int("status", transient.status).
				Msg("provider unavailable after retries; skipping day")
			c.recorder.ProviderRequest("empty")
			return nil, nil
		}
		c.recorder.ProviderRequest("error")
		return nil, err
	}

	if record == nil {
		c.recorder.ProviderRequest("empty")
		return nil, nil
	}
	c.recorder.ProviderRequest("ok")
	return record, nil
}

type transientError struct {
	status int
}

func (e *transientError) Error() string {
	return fmt.Sprintf("transient provider status %d", e.status)
}

func (c *Client) maxRetries() uint64 {
	if c.opts.MaxRetries > 0 {
		return c.opts.MaxRetries
	}
	return 3
}

func (c *Client) fetchOnce(ctx context.Context, endpoint string, date time.Time) (*rates.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	q := req.URL.Query()
	q.Set("adjusted", "true")
	q.Set("apiKey", c.opts.APIKey)
	req.URL.RawQuery = q.Encode()

	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "fxcast/1.0")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Network-level failures are worth one more attempt.
		return nil, &transientError{}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transientError{status: resp.StatusCode}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to parsing
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, backoff.Permanent(&ProviderError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(payload)),
		})
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &transientError{status: resp.StatusCode}
	default:
		// Any other status means "no data for this day".
		c.logger.Debug().Time("date", date).Int("status", resp.StatusCode).
			Msg("provider reported no data")
		return nil, nil
	}

	var parsed groupedDailyResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, backoff.Permanent(&ProviderError{
			StatusCode: resp.StatusCode,
			Message:    "malformed response: " + err.Error(),
		})
	}

	symbol := c.pair.Symbol()
	for _, result := range parsed.Results {
		if result.Ticker != symbol {
			continue
		}
		return &rates.Record{
			Date:  market.Midnight(date),
			Pair:  c.pair,
			Open:  decimal.NewFromFloat(result.Open),
			High:  decimal.NewFromFloat(result.High),
			Low:   decimal.NewFromFloat(result.Low),
			Close: decimal.NewFromFloat(result.Close),
		}, nil
	}

	// The grouped endpoint answered but carried nothing for this pair.
	return nil, nil
}

var _ DayFetcher = (*Client)(nil)
