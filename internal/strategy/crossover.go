package strategy

import (
	"github.com/quantforge/trendfollow/internal/series"
	"github.com/quantforge/trendfollow/internal/types"
)

// Crossover is the always-in-market EMA crossover: long while the fast EMA is
// above the slow EMA, short while it is below. On an exact tie the current
// state is held. Flat only before the EMAs have warmed up.
type Crossover struct{}

// Desired implements Strategy.
func (c *Crossover) Desired(frames []series.Frame, i int, current types.Side) types.Side {
	f := frames[i]
	if !f.EMAValid {
		return types.SideFlat
	}

	switch {
	case f.EMAFast.GreaterThan(f.EMASlow):
		return types.SideLong
	case f.EMAFast.LessThan(f.EMASlow):
		return types.SideShort
	default:
		return current
	}
}

// Name implements Strategy.
func (c *Crossover) Name() string {
	return VariantCrossover
}
