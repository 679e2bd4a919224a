// Package types defines shared types used across the backtest system.
package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the direction of a position.
type Side int

const (
	SideFlat Side = iota
	SideLong
	SideShort
)

func (s Side) String() string {
	switch s {
	case SideLong:
		return "LONG"
	case SideShort:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// Opposite returns the opposite side.
func (s Side) Opposite() Side {
	switch s {
	case SideLong:
		return SideShort
	case SideShort:
		return SideLong
	default:
		return SideFlat
	}
}

// Bar is one daily OHLCV record for an instrument. Bars are immutable once
// ingested; the engine never writes to them.
type Bar struct {
	Date   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// Trade is a completed round trip. Contracts is fixed at entry and never
// changes for the life of the trade.
type Trade struct {
	ID          string
	Instrument  string
	Side        Side
	Contracts   int64
	EntryDate   time.Time
	EntryPrice  decimal.Decimal
	ExitDate    time.Time
	ExitPrice   decimal.Decimal
	GrossPL     decimal.Decimal
	Costs       decimal.Decimal // commissions + fees + slippage, both sides
	NetPL       decimal.Decimal
	HoldingDays int
	ForcedExit  bool // closed by end-of-series liquidation, not by a signal
}

// EquityPoint is the account state at the close of one simulated day.
// RealizedPL is the realized P&L delta for that day only.
type EquityPoint struct {
	Date         time.Time
	Equity       decimal.Decimal
	RealizedPL   decimal.Decimal
	UnrealizedPL decimal.Decimal
}

// InstrumentSpec holds the static metadata of a tradable instrument.
type InstrumentSpec struct {
	Name       string
	Ticker     string
	Sector     string
	PointValue decimal.Decimal // currency value of a one-point move per contract
	Currency   string
	Type       string // futures | fx | index
}

// DefaultUniverse returns the five-instrument starter universe used when the
// configuration does not override it.
func DefaultUniverse() []InstrumentSpec {
	return []InstrumentSpec{
		{Name: "Gold", Ticker: "GC=F", Sector: "non_agricultural", PointValue: decimal.RequireFromString("100"), Currency: "USD", Type: "futures"},
		{Name: "Crude Oil", Ticker: "CL=F", Sector: "non_agricultural", PointValue: decimal.RequireFromString("1000"), Currency: "USD", Type: "futures"},
		{Name: "S&P 500", Ticker: "ES=F", Sector: "equities", PointValue: decimal.RequireFromString("50"), Currency: "USD", Type: "futures"},
		{Name: "EURUSD", Ticker: "EURUSD=X", Sector: "currencies", PointValue: decimal.RequireFromString("125000"), Currency: "USD", Type: "fx"},
		{Name: "US 10Y Note", Ticker: "ZN=F", Sector: "rates", PointValue: decimal.RequireFromString("1000"), Currency: "USD", Type: "futures"},
	}
}

// FindInstrument looks up an instrument by name in the default universe.
func FindInstrument(name string) (InstrumentSpec, error) {
	for _, spec := range DefaultUniverse() {
		if spec.Name == name {
			return spec, nil
		}
	}
	return InstrumentSpec{}, fmt.Errorf("%w: %q", ErrUnknownInstrument, name)
}
