// Package metrics exposes Prometheus instrumentation for downloads, quality
// screens and backtest runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DownloadsTotal counts download attempts by ticker and result.
	DownloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trendfollow_downloads_total",
		Help: "Price history download attempts by ticker and status.",
	}, []string{"ticker", "status"})

	// BarsStored counts bars written to the price store.
	BarsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trendfollow_bars_stored_total",
		Help: "Daily bars written to the store per instrument.",
	}, []string{"instrument"})

	// QualityIssues counts data-quality findings by kind.
	QualityIssues = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trendfollow_quality_issues_total",
		Help: "Data-quality findings per instrument and kind.",
	}, []string{"instrument", "kind"})

	// BarsProcessed counts bars consumed by the simulation loop.
	BarsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trendfollow_bars_processed_total",
		Help: "Bars processed by the simulation per instrument.",
	}, []string{"instrument"})

	// SignalsGenerated counts desired-position changes by strategy and side.
	SignalsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trendfollow_signals_total",
		Help: "Position-change signals per strategy and desired side.",
	}, []string{"strategy", "side"})

	// TradesTotal counts simulated trades by instrument, side and outcome.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trendfollow_trades_total",
		Help: "Completed simulated trades per instrument, side and outcome.",
	}, []string{"instrument", "side", "outcome"})

	// EndEquity reports the final equity of the latest run per instrument.
	EndEquity = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "trendfollow_end_equity",
		Help: "Final equity of the most recent run per instrument and strategy.",
	}, []string{"instrument", "strategy"})

	// RunDuration observes wall-clock simulation time.
	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trendfollow_run_duration_seconds",
		Help:    "Wall-clock duration of one instrument/strategy run.",
		Buckets: prometheus.DefBuckets,
	}, []string{"instrument", "strategy"})
)
