// Package indicator provides streaming technical indicators.
//
// Every indicator consumes bars in order through Update and exposes
// Ready/Current. Values before the warm-up window are undefined: callers must
// check Ready before using Current, never substitute a default.
package indicator

import (
	"github.com/shopspring/decimal"
)

// EMA calculates an exponential moving average of closing prices.
// Smoothing factor alpha = 2 / (span + 1). The recursion is seeded with the
// first value but the EMA is not considered ready until span values have been
// seen, so pre-warm-up values never leak into signals.
type EMA struct {
	span  int
	alpha decimal.Decimal
	value decimal.Decimal
	count int
}

// NewEMA creates a new EMA calculator with the given span.
func NewEMA(span int) *EMA {
	if span < 1 {
		span = 1
	}
	two := decimal.NewFromInt(2)
	return &EMA{
		span:  span,
		alpha: two.Div(decimal.NewFromInt(int64(span) + 1)),
	}
}

// Update feeds the next value and returns the current EMA.
func (e *EMA) Update(value decimal.Decimal) decimal.Decimal {
	if e.count == 0 {
		e.value = value
	} else {
		// ema = alpha*value + (1-alpha)*ema
		e.value = e.value.Add(e.alpha.Mul(value.Sub(e.value)))
	}
	e.count++
	return e.value
}

// Current returns the current EMA value.
func (e *EMA) Current() decimal.Decimal {
	return e.value
}

// Ready returns true once span values have been consumed.
func (e *EMA) Ready() bool {
	return e.count >= e.span
}

// Span returns the EMA span.
func (e *EMA) Span() int {
	return e.span
}

// Reset clears all state.
func (e *EMA) Reset() {
	e.value = decimal.Zero
	e.count = 0
}
