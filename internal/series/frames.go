package series

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantforge/trendfollow/internal/types"
	"github.com/quantforge/trendfollow/pkg/indicator"
)

// Params holds the indicator window lengths.
type Params struct {
	EMAFast       int
	EMASlow       int
	DonchianEntry int // entry channel lookback (N)
	DonchianExit  int // exit channel lookback (M), M < N
	ATRPeriod     int
}

// DefaultParams returns the Clenow windows: EMA 50/100, Donchian 100/50,
// ATR 20.
func DefaultParams() Params {
	return Params{
		EMAFast:       50,
		EMASlow:       100,
		DonchianEntry: 100,
		DonchianExit:  50,
		ATRPeriod:     20,
	}
}

// Validate checks the window lengths.
func (p Params) Validate() error {
	if p.EMAFast < 1 || p.EMASlow < 1 || p.DonchianEntry < 1 || p.DonchianExit < 1 || p.ATRPeriod < 1 {
		return fmt.Errorf("%w: indicator windows must be positive", types.ErrInvalidConfig)
	}
	if p.EMAFast >= p.EMASlow {
		return fmt.Errorf("%w: ema_fast (%d) must be shorter than ema_slow (%d)",
			types.ErrInvalidConfig, p.EMAFast, p.EMASlow)
	}
	if p.DonchianExit >= p.DonchianEntry {
		return fmt.Errorf("%w: donchian_exit (%d) must be shorter than donchian_entry (%d)",
			types.ErrInvalidConfig, p.DonchianExit, p.DonchianEntry)
	}
	return nil
}

// Largest returns the longest window, which bounds the warm-up.
func (p Params) Largest() int {
	largest := p.EMAFast
	for _, w := range []int{p.EMASlow, p.DonchianEntry, p.DonchianExit, p.ATRPeriod} {
		if w > largest {
			largest = w
		}
	}
	return largest
}

// Frame carries the per-bar derived values, aligned 1:1 with the bar at the
// same index. Values are only meaningful when the matching validity flag is
// set; the first window-1 bars of each indicator are explicitly unavailable.
type Frame struct {
	Date  time.Time
	Close decimal.Decimal

	EMAFast  decimal.Decimal
	EMASlow  decimal.Decimal
	EMAValid bool

	EntryHigh    decimal.Decimal // Donchian high over the entry window
	EntryLow     decimal.Decimal // Donchian low over the entry window
	ExitHigh     decimal.Decimal // Donchian high over the exit window
	ExitLow      decimal.Decimal // Donchian low over the exit window
	ChannelValid bool

	ATR      decimal.Decimal
	ATRValid bool
}

// ComputeFrames derives one Frame per bar in a single causal pass: the frame
// at index i uses bars[0..i] only. Returns ErrInsufficientData when the
// series is shorter than the largest window.
func ComputeFrames(instrument string, bars []types.Bar, p Params) ([]Frame, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(bars) < p.Largest() {
		return nil, fmt.Errorf("%w: %s has %d bars, largest indicator window is %d",
			types.ErrInsufficientData, instrument, len(bars), p.Largest())
	}

	emaFast := indicator.NewEMA(p.EMAFast)
	emaSlow := indicator.NewEMA(p.EMASlow)
	entry := indicator.NewDonchian(p.DonchianEntry)
	exit := indicator.NewDonchian(p.DonchianExit)
	atr := indicator.NewATR(p.ATRPeriod)

	frames := make([]Frame, len(bars))
	for i, b := range bars {
		emaFast.Update(b.Close)
		emaSlow.Update(b.Close)
		entry.Update(b.High, b.Low)
		exit.Update(b.High, b.Low)
		atr.Update(b.High, b.Low, b.Close)

		f := Frame{Date: b.Date, Close: b.Close}

		if emaFast.Ready() && emaSlow.Ready() {
			f.EMAFast = emaFast.Current()
			f.EMASlow = emaSlow.Current()
			f.EMAValid = true
		}
		if entry.Ready() && exit.Ready() {
			f.EntryHigh = entry.Upper()
			f.EntryLow = entry.Lower()
			f.ExitHigh = exit.Upper()
			f.ExitLow = exit.Lower()
			f.ChannelValid = true
		}
		if atr.Ready() {
			f.ATR = atr.Current()
			f.ATRValid = true
		}

		frames[i] = f
	}

	return frames, nil
}
