// Package marketdata downloads daily price history from the Yahoo Finance
// chart API.
package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/quantforge/trendfollow/internal/types"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// chartResponse mirrors the Yahoo chart API payload. Price arrays may carry
// nulls on half-traded days, hence the pointer elements.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol   string `json:"symbol"`
				Currency string `json:"currency"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Client fetches daily bars, throttled so a universe download stays polite.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API host. Used by tests.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.http.SetBaseURL(url)
	}
}

// NewClient creates a downloader limited to requestsPerSec.
func NewClient(requestsPerSec float64, opts ...Option) *Client {
	httpClient := resty.New().
		SetBaseURL(defaultBaseURL).
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "trendfollow/1.0")

	c := &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchDailyBars downloads the daily series for a ticker between start and
// end (inclusive), oldest first. Rows with missing price fields are skipped.
func (c *Client) FetchDailyBars(ctx context.Context, ticker string, start, end time.Time) ([]types.Bar, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var payload chartResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&payload).
		SetPathParam("ticker", ticker).
		SetQueryParams(map[string]string{
			"period1":  fmt.Sprintf("%d", start.Unix()),
			"period2":  fmt.Sprintf("%d", end.AddDate(0, 0, 1).Unix()),
			"interval": "1d",
			"events":   "history",
		}).
		Get("/v8/finance/chart/{ticker}")
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ticker, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch %s: status %d", ticker, resp.StatusCode())
	}
	if apiErr := payload.Chart.Error; apiErr != nil {
		return nil, fmt.Errorf("fetch %s: %s (%s)", ticker, apiErr.Description, apiErr.Code)
	}
	if len(payload.Chart.Result) == 0 || len(payload.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: empty chart response for %s", types.ErrNoData, ticker)
	}

	result := payload.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	bars := make([]types.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) ||
			i >= len(quote.Low) || i >= len(quote.Close) {
			break
		}
		if quote.Open[i] == nil || quote.High[i] == nil ||
			quote.Low[i] == nil || quote.Close[i] == nil {
			continue
		}

		day := time.Unix(ts, 0).UTC().Truncate(24 * time.Hour)
		bar := types.Bar{
			Date:  day,
			Open:  decimal.NewFromFloat(*quote.Open[i]),
			High:  decimal.NewFromFloat(*quote.High[i]),
			Low:   decimal.NewFromFloat(*quote.Low[i]),
			Close: decimal.NewFromFloat(*quote.Close[i]),
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
		}
		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no complete rows for %s", types.ErrNoData, ticker)
	}

	return bars, nil
}
