package strategy

import (
	"github.com/quantforge/trendfollow/internal/series"
	"github.com/quantforge/trendfollow/internal/types"
)

// Breakout is the Donchian channel system: enter long when the close reaches
// the entry-window high, exit when it falls back to the exit-window low.
// Exits are checked before entries so a bar can never both close and reopen a
// position. Short entries on the low channel are optional.
type Breakout struct {
	AllowShorts bool
}

// Desired implements Strategy.
func (b *Breakout) Desired(frames []series.Frame, i int, current types.Side) types.Side {
	f := frames[i]
	if !f.ChannelValid {
		return types.SideFlat
	}

	// Exits first
	if current == types.SideLong && f.Close.LessThanOrEqual(f.ExitLow) {
		return types.SideFlat
	}
	if current == types.SideShort && f.Close.GreaterThanOrEqual(f.ExitHigh) {
		return types.SideFlat
	}

	// Entries
	if f.Close.GreaterThanOrEqual(f.EntryHigh) {
		return types.SideLong
	}
	if b.AllowShorts && f.Close.LessThanOrEqual(f.EntryLow) {
		return types.SideShort
	}

	return current
}

// Name implements Strategy.
func (b *Breakout) Name() string {
	return VariantBreakout
}
