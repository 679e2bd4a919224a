package strategy

import (
	"github.com/quantforge/trendfollow/internal/series"
	"github.com/quantforge/trendfollow/internal/types"
)

// Core is the combined system: Donchian breakout entries filtered by the EMA
// trend, exits on the exit channel or on the trend flipping against the
// position, whichever comes first.
type Core struct {
	AllowShorts bool
}

// Desired implements Strategy.
func (c *Core) Desired(frames []series.Frame, i int, current types.Side) types.Side {
	f := frames[i]
	if !f.EMAValid || !f.ChannelValid {
		return types.SideFlat
	}

	bullish := f.EMAFast.GreaterThan(f.EMASlow)

	// Exits first
	if current == types.SideLong && (f.Close.LessThanOrEqual(f.ExitLow) || !bullish) {
		return types.SideFlat
	}
	if current == types.SideShort && (f.Close.GreaterThanOrEqual(f.ExitHigh) || bullish) {
		return types.SideFlat
	}

	// Entries only from flat, and only with the trend
	if current == types.SideFlat {
		if bullish && f.Close.GreaterThanOrEqual(f.EntryHigh) {
			return types.SideLong
		}
		if c.AllowShorts && !bullish && f.Close.LessThanOrEqual(f.EntryLow) {
			return types.SideShort
		}
	}

	return current
}

// Name implements Strategy.
func (c *Core) Name() string {
	return VariantCore
}
