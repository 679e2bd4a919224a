// Package quality screens daily price series for defects that would corrupt a
// simulation: bad prints, impossible candles, outlier returns and calendar
// holes. The screen reports issues; it never repairs data.
package quality

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantforge/trendfollow/internal/types"
)

// Issue kinds.
const (
	KindNonPositivePrice = "non_positive_price"
	KindInconsistentOHLC = "inconsistent_ohlc"
	KindOutlierReturn    = "outlier_return"
	KindCalendarGap      = "calendar_gap"
	KindShortHistory     = "short_history"
)

// Issue is one data-quality finding on one instrument.
type Issue struct {
	Instrument string
	Date       time.Time
	Kind       string
	Detail     string
}

// Config holds the screen thresholds.
type Config struct {
	MaxDailyReturn decimal.Decimal // close-to-close, absolute; 0.15 = 15%
	MaxGapDays     int             // calendar days between consecutive bars
	MinHistoryDays int             // minimum number of bars
}

// DefaultConfig returns thresholds suited to daily futures data: a 15% daily
// move screen, a one-week gap tolerance and a one-year minimum history.
func DefaultConfig() Config {
	return Config{
		MaxDailyReturn: decimal.RequireFromString("0.15"),
		MaxGapDays:     5,
		MinHistoryDays: 252,
	}
}

// Validate checks the thresholds.
func (c Config) Validate() error {
	if !c.MaxDailyReturn.IsPositive() {
		return fmt.Errorf("%w: max daily return must be positive", types.ErrInvalidConfig)
	}
	if c.MaxGapDays <= 0 {
		return fmt.Errorf("%w: max gap days must be positive", types.ErrInvalidConfig)
	}
	if c.MinHistoryDays <= 0 {
		return fmt.Errorf("%w: min history days must be positive", types.ErrInvalidConfig)
	}
	return nil
}

// Screen inspects a date-ascending bar series and returns every issue found,
// oldest first. An empty result means the series passed. Bars must already be
// sorted; ordering itself is a validation concern, not a quality one.
func Screen(instrument string, bars []types.Bar, cfg Config) ([]Issue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var issues []Issue
	add := func(date time.Time, kind, detail string) {
		issues = append(issues, Issue{
			Instrument: instrument,
			Date:       date,
			Kind:       kind,
			Detail:     detail,
		})
	}

	if len(bars) < cfg.MinHistoryDays {
		var at time.Time
		if len(bars) > 0 {
			at = bars[len(bars)-1].Date
		}
		add(at, KindShortHistory,
			fmt.Sprintf("%d bars, need at least %d", len(bars), cfg.MinHistoryDays))
	}

	for i, bar := range bars {
		if !bar.Open.IsPositive() || !bar.High.IsPositive() ||
			!bar.Low.IsPositive() || !bar.Close.IsPositive() {
			add(bar.Date, KindNonPositivePrice, "zero or negative price field")
		} else if bar.High.LessThan(bar.Open) || bar.High.LessThan(bar.Close) ||
			bar.High.LessThan(bar.Low) ||
			bar.Low.GreaterThan(bar.Open) || bar.Low.GreaterThan(bar.Close) {
			add(bar.Date, KindInconsistentOHLC,
				fmt.Sprintf("O=%s H=%s L=%s C=%s", bar.Open, bar.High, bar.Low, bar.Close))
		}

		if i == 0 {
			continue
		}
		prev := bars[i-1]

		if prev.Close.IsPositive() {
			ret := bar.Close.Sub(prev.Close).Div(prev.Close).Abs()
			if ret.GreaterThan(cfg.MaxDailyReturn) {
				add(bar.Date, KindOutlierReturn,
					fmt.Sprintf("close moved %s%% in one day", ret.Mul(decimal.NewFromInt(100)).StringFixed(1)))
			}
		}

		if gap := int(bar.Date.Sub(prev.Date).Hours() / 24); gap > cfg.MaxGapDays {
			add(bar.Date, KindCalendarGap,
				fmt.Sprintf("%d calendar days since %s", gap, prev.Date.Format("2006-01-02")))
		}
	}

	return issues, nil
}
