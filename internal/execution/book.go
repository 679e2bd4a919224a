package execution

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantforge/trendfollow/internal/types"
)

// Position is one open position. EntryCosts were already deducted from cash
// when it was opened.
type Position struct {
	Instrument string
	Side       types.Side
	Contracts  int64
	EntryDate  time.Time
	EntryPrice decimal.Decimal
	PointValue decimal.Decimal
	EntryCosts decimal.Decimal
}

// Book tracks cash, the open position and the trade log for one
// instrument/strategy run. It is exclusively owned by one engine instance and
// never shared. Trade IDs are sequential, keeping two runs over identical
// inputs byte-for-byte identical.
type Book struct {
	costs  CostConfig
	cash   decimal.Decimal
	pos    *Position
	trades []types.Trade
}

// NewBook creates a book with the given cost model and starting cash.
func NewBook(costs CostConfig, startingCash decimal.Decimal) *Book {
	return &Book{
		costs: costs,
		cash:  startingCash,
	}
}

// Cash returns the realized capital (excludes unrealized P&L).
func (b *Book) Cash() decimal.Decimal {
	return b.cash
}

// Side returns the direction of the open position, or flat.
func (b *Book) Side() types.Side {
	if b.pos == nil {
		return types.SideFlat
	}
	return b.pos.Side
}

// Position returns the open position, or nil.
func (b *Book) Position() *Position {
	return b.pos
}

// Trades returns the completed trade log in close order.
func (b *Book) Trades() []types.Trade {
	return b.trades
}

// Open opens a position at price on date, deducting entry costs from cash.
// Opening while a position exists is a programming error in the engine.
func (b *Book) Open(spec types.InstrumentSpec, side types.Side, contracts int64, price decimal.Decimal, date time.Time) {
	if b.pos != nil {
		panic("execution: open over an existing position")
	}
	if side == types.SideFlat || contracts <= 0 {
		return
	}

	entryCosts := b.costs.PerSide(contracts, price)
	b.cash = b.cash.Sub(entryCosts)

	b.pos = &Position{
		Instrument: spec.Name,
		Side:       side,
		Contracts:  contracts,
		EntryDate:  date,
		EntryPrice: price,
		PointValue: spec.PointValue,
		EntryCosts: entryCosts,
	}
}

// Close closes the open position at price on date and records the trade.
// Net P&L carries the costs of both sides.
func (b *Book) Close(price decimal.Decimal, date time.Time, forced bool) types.Trade {
	pos := b.pos
	if pos == nil {
		panic("execution: close without an open position")
	}
	b.pos = nil

	gross := priceMove(pos.Side, pos.EntryPrice, price).
		Mul(decimal.NewFromInt(pos.Contracts)).
		Mul(pos.PointValue)
	exitCosts := b.costs.PerSide(pos.Contracts, price)

	b.cash = b.cash.Add(gross).Sub(exitCosts)

	totalCosts := pos.EntryCosts.Add(exitCosts)
	trade := types.Trade{
		ID:          fmt.Sprintf("%s-%04d", pos.Instrument, len(b.trades)+1),
		Instrument:  pos.Instrument,
		Side:        pos.Side,
		Contracts:   pos.Contracts,
		EntryDate:   pos.EntryDate,
		EntryPrice:  pos.EntryPrice,
		ExitDate:    date,
		ExitPrice:   price,
		GrossPL:     gross,
		Costs:       totalCosts,
		NetPL:       gross.Sub(totalCosts),
		HoldingDays: int(date.Sub(pos.EntryDate).Hours() / 24),
		ForcedExit:  forced,
	}
	b.trades = append(b.trades, trade)
	return trade
}

// MarkToMarket returns the unrealized P&L of the open position at price, or
// zero when flat.
func (b *Book) MarkToMarket(price decimal.Decimal) decimal.Decimal {
	if b.pos == nil {
		return decimal.Zero
	}
	return priceMove(b.pos.Side, b.pos.EntryPrice, price).
		Mul(decimal.NewFromInt(b.pos.Contracts)).
		Mul(b.pos.PointValue)
}

// priceMove returns the signed per-contract point move for a side.
func priceMove(side types.Side, entry, current decimal.Decimal) decimal.Decimal {
	move := current.Sub(entry)
	if side == types.SideShort {
		move = move.Neg()
	}
	return move
}
