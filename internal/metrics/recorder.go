package metrics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantforge/trendfollow/internal/quality"
	"github.com/quantforge/trendfollow/internal/types"
)

// Recorder provides methods for recording metrics.
type Recorder struct{}

// NewRecorder creates a new metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordDownload records a download attempt.
func (r *Recorder) RecordDownload(ticker string, ok bool) {
	status := "error"
	if ok {
		status = "ok"
	}
	DownloadsTotal.WithLabelValues(ticker, status).Inc()
}

// RecordBarsStored records bars written to the store.
func (r *Recorder) RecordBarsStored(instrument string, count int) {
	BarsStored.WithLabelValues(instrument).Add(float64(count))
}

// RecordQualityIssues records data-quality findings.
func (r *Recorder) RecordQualityIssues(issues []quality.Issue) {
	for _, issue := range issues {
		QualityIssues.WithLabelValues(issue.Instrument, issue.Kind).Inc()
	}
}

// RecordBarsProcessed records bars consumed by a simulation run.
func (r *Recorder) RecordBarsProcessed(instrument string, count int) {
	BarsProcessed.WithLabelValues(instrument).Add(float64(count))
}

// RecordSignal records a desired-position change.
func (r *Recorder) RecordSignal(strategy string, side types.Side) {
	SignalsGenerated.WithLabelValues(strategy, side.String()).Inc()
}

// RecordTrade records a completed simulated trade.
func (r *Recorder) RecordTrade(trade types.Trade) {
	outcome := "loss"
	if trade.NetPL.IsPositive() {
		outcome = "win"
	}
	TradesTotal.WithLabelValues(trade.Instrument, trade.Side.String(), outcome).Inc()
}

// RecordRun records the end state and duration of one run.
func (r *Recorder) RecordRun(instrument, strategy string, endEquity decimal.Decimal, elapsed time.Duration) {
	EndEquity.WithLabelValues(instrument, strategy).Set(endEquity.InexactFloat64())
	RunDuration.WithLabelValues(instrument, strategy).Observe(elapsed.Seconds())
}
