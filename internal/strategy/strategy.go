// Package strategy implements the trend-following signal rules.
package strategy

import (
	"fmt"

	"github.com/quantforge/trendfollow/internal/series"
	"github.com/quantforge/trendfollow/internal/types"
)

// Strategy converts indicator history into a desired position state.
//
// Desired is evaluated once per bar, in date order. It may only read
// frames[0..i]; the engine owns the execution timing, so a desired change at
// bar i is never filled before bar i+1's open. Implementations are stateless:
// the current position is passed in, which keeps them trivially testable.
type Strategy interface {
	// Desired returns the position the strategy wants after seeing bar i.
	Desired(frames []series.Frame, i int, current types.Side) types.Side

	// Name returns the strategy identifier.
	Name() string
}

// Variant names accepted by New.
const (
	VariantCrossover = "crossover"
	VariantBreakout  = "breakout"
	VariantCore      = "core"
)

// New returns the strategy for a variant name.
func New(variant string, allowShorts bool) (Strategy, error) {
	switch variant {
	case VariantCrossover:
		return &Crossover{}, nil
	case VariantBreakout:
		return &Breakout{AllowShorts: allowShorts}, nil
	case VariantCore:
		return &Core{AllowShorts: allowShorts}, nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownStrategy, variant)
	}
}
