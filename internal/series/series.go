// Package series holds validated daily price series and their derived
// indicator frames.
package series

import (
	"fmt"

	"github.com/quantforge/trendfollow/internal/types"
)

// Validate checks the integrity invariants the engine relies on: strictly
// ascending dates, positive prices, high >= open/close/low and
// low <= open/close. The first violation aborts with the instrument and date.
func Validate(instrument string, bars []types.Bar) error {
	if len(bars) == 0 {
		return fmt.Errorf("%w: %s has no bars", types.ErrNoData, instrument)
	}

	for i, b := range bars {
		date := b.Date.Format("2006-01-02")

		if i > 0 && !b.Date.After(bars[i-1].Date) {
			return fmt.Errorf("%w: %s %s: dates not strictly ascending",
				types.ErrDataIntegrity, instrument, date)
		}
		if !b.Open.IsPositive() || !b.High.IsPositive() || !b.Low.IsPositive() || !b.Close.IsPositive() {
			return fmt.Errorf("%w: %s %s: non-positive price",
				types.ErrDataIntegrity, instrument, date)
		}
		if b.High.LessThan(b.Open) || b.High.LessThan(b.Close) || b.High.LessThan(b.Low) {
			return fmt.Errorf("%w: %s %s: high %s below open/close/low",
				types.ErrDataIntegrity, instrument, date, b.High)
		}
		if b.Low.GreaterThan(b.Open) || b.Low.GreaterThan(b.Close) {
			return fmt.Errorf("%w: %s %s: low %s above open/close",
				types.ErrDataIntegrity, instrument, date, b.Low)
		}
	}

	return nil
}
