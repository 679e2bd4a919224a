package indicator

import (
	"github.com/shopspring/decimal"
)

// ATR calculates the Average True Range as a rolling mean of the true range.
// True Range = max(high - low, |high - prevClose|, |low - prevClose|).
type ATR struct {
	period    int
	prevClose decimal.Decimal
	window    []decimal.Decimal
	sum       decimal.Decimal
	seen      int
}

// NewATR creates a new ATR calculator with the given period.
func NewATR(period int) *ATR {
	if period < 1 {
		period = 1
	}
	return &ATR{
		period: period,
		window: make([]decimal.Decimal, 0, period),
	}
}

// Update consumes one bar and returns the current ATR. The first bar has no
// previous close, so its true range is simply high - low.
func (a *ATR) Update(high, low, close decimal.Decimal) decimal.Decimal {
	tr := high.Sub(low)
	if a.seen > 0 {
		if hpc := high.Sub(a.prevClose).Abs(); hpc.GreaterThan(tr) {
			tr = hpc
		}
		if lpc := low.Sub(a.prevClose).Abs(); lpc.GreaterThan(tr) {
			tr = lpc
		}
	}
	a.prevClose = close
	a.seen++

	a.window = append(a.window, tr)
	a.sum = a.sum.Add(tr)
	if len(a.window) > a.period {
		a.sum = a.sum.Sub(a.window[0])
		a.window = a.window[1:]
	}

	return a.Current()
}

// Current returns the current ATR value, or zero before warm-up.
func (a *ATR) Current() decimal.Decimal {
	if !a.Ready() {
		return decimal.Zero
	}
	return a.sum.Div(decimal.NewFromInt(int64(a.period)))
}

// Ready returns true once a full period of true ranges has been collected.
func (a *ATR) Ready() bool {
	return len(a.window) >= a.period
}

// Period returns the ATR period.
func (a *ATR) Period() int {
	return a.period
}

// Reset clears all state.
func (a *ATR) Reset() {
	a.window = a.window[:0]
	a.sum = decimal.Zero
	a.prevClose = decimal.Zero
	a.seen = 0
}
