package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quantforge/trendfollow/internal/types"
)

const chartFixture = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "GC=F", "currency": "USD"},
      "timestamp": [1672704000, 1672790400, 1672876800],
      "indicators": {
        "quote": [{
          "open":   [1840.5, 1849.0, null],
          "high":   [1852.0, 1861.5, 1870.0],
          "low":    [1836.0, 1845.5, 1858.0],
          "close":  [1848.2, 1859.0, 1866.4],
          "volume": [120345, 98321, null]
        }]
      }
    }],
    "error": null
  }
}`

const chartErrorFixture = `{
  "chart": {
    "result": null,
    "error": {"code": "Not Found", "description": "No data found, symbol may be delisted"}
  }
}`

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(100, WithBaseURL(server.URL))
}

func TestFetchDailyBars(t *testing.T) {
	var gotPath string
	var gotInterval string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotInterval = r.URL.Query().Get("interval")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartFixture))
	})

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC)

	bars, err := client.FetchDailyBars(context.Background(), "GC=F", start, end)
	if err != nil {
		t.Fatalf("FetchDailyBars: %v", err)
	}

	if gotPath != "/v8/finance/chart/GC=F" {
		t.Errorf("request path = %q", gotPath)
	}
	if gotInterval != "1d" {
		t.Errorf("interval = %q, want 1d", gotInterval)
	}

	// the third row has a null open and must be skipped
	if len(bars) != 2 {
		t.Fatalf("bars = %d, want 2", len(bars))
	}
	if bars[0].Open.String() != "1840.5" {
		t.Errorf("first open = %s, want 1840.5", bars[0].Open)
	}
	if bars[1].Close.String() != "1859" {
		t.Errorf("second close = %s, want 1859", bars[1].Close)
	}
	if bars[0].Volume != 120345 {
		t.Errorf("first volume = %d, want 120345", bars[0].Volume)
	}
	if !bars[0].Date.Before(bars[1].Date) {
		t.Error("bars are not in ascending date order")
	}
}

func TestFetchDailyBars_APIError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartErrorFixture))
	})

	_, err := client.FetchDailyBars(context.Background(), "NOPE=F",
		time.Now().AddDate(-1, 0, 0), time.Now())
	if err == nil {
		t.Fatal("FetchDailyBars accepted an API error payload")
	}
}

func TestFetchDailyBars_HTTPError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	})

	_, err := client.FetchDailyBars(context.Background(), "GC=F",
		time.Now().AddDate(-1, 0, 0), time.Now())
	if err == nil {
		t.Fatal("FetchDailyBars accepted an HTTP error status")
	}
}

func TestFetchDailyBars_EmptyResult(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"chart": {"result": [], "error": null}}`))
	})

	_, err := client.FetchDailyBars(context.Background(), "GC=F",
		time.Now().AddDate(-1, 0, 0), time.Now())
	if !errors.Is(err, types.ErrNoData) {
		t.Errorf("FetchDailyBars = %v, want ErrNoData", err)
	}
}

func TestFetchDailyBars_ContextCancelled(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartFixture))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchDailyBars(ctx, "GC=F",
		time.Now().AddDate(-1, 0, 0), time.Now())
	if err == nil {
		t.Fatal("FetchDailyBars ignored a cancelled context")
	}
}
