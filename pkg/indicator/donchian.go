package indicator

import (
	"github.com/shopspring/decimal"
)

// Donchian tracks the rolling highest high and lowest low over a lookback
// window. The window includes the current bar, matching the Turtle/Clenow
// channel convention where a close at a fresh extreme counts as a breakout.
type Donchian struct {
	period int
	highs  []decimal.Decimal
	lows   []decimal.Decimal
}

// NewDonchian creates a new Donchian channel with the given lookback period.
func NewDonchian(period int) *Donchian {
	if period < 1 {
		period = 1
	}
	return &Donchian{
		period: period,
		highs:  make([]decimal.Decimal, 0, period),
		lows:   make([]decimal.Decimal, 0, period),
	}
}

// Update consumes one bar and returns the current channel extremes.
func (d *Donchian) Update(high, low decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	d.highs = append(d.highs, high)
	d.lows = append(d.lows, low)
	if len(d.highs) > d.period {
		d.highs = d.highs[1:]
		d.lows = d.lows[1:]
	}
	return d.Upper(), d.Lower()
}

// Upper returns the highest high of the window, or zero before warm-up.
func (d *Donchian) Upper() decimal.Decimal {
	if !d.Ready() {
		return decimal.Zero
	}
	upper := d.highs[0]
	for _, h := range d.highs[1:] {
		if h.GreaterThan(upper) {
			upper = h
		}
	}
	return upper
}

// Lower returns the lowest low of the window, or zero before warm-up.
func (d *Donchian) Lower() decimal.Decimal {
	if !d.Ready() {
		return decimal.Zero
	}
	lower := d.lows[0]
	for _, l := range d.lows[1:] {
		if l.LessThan(lower) {
			lower = l
		}
	}
	return lower
}

// Ready returns true once a full lookback window has been collected.
func (d *Donchian) Ready() bool {
	return len(d.highs) >= d.period
}

// Period returns the lookback period.
func (d *Donchian) Period() int {
	return d.period
}

// Reset clears all state.
func (d *Donchian) Reset() {
	d.highs = d.highs[:0]
	d.lows = d.lows[:0]
}
