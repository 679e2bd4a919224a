// Package backtest provides the day-by-day simulation engine and the
// performance report derived from its output.
package backtest

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantforge/trendfollow/internal/execution"
	"github.com/quantforge/trendfollow/internal/series"
	"github.com/quantforge/trendfollow/internal/strategy"
	"github.com/quantforge/trendfollow/internal/types"
)

// Config holds the engine configuration for one run.
type Config struct {
	InitialCapital  decimal.Decimal
	RiskFactor      decimal.Decimal // fraction of equity risked per unit ATR
	ForceCloseAtEnd bool            // liquidate at the final close for reporting
	Indicators      series.Params
	Costs           execution.CostConfig
}

// DefaultConfig returns the Clenow reference configuration: $100k capital,
// risk factor 0.002, default windows and costs, liquidation at the end.
func DefaultConfig() Config {
	return Config{
		InitialCapital:  decimal.NewFromInt(100000),
		RiskFactor:      decimal.RequireFromString("0.002"),
		ForceCloseAtEnd: true,
		Indicators:      series.DefaultParams(),
		Costs:           execution.DefaultCostConfig(),
	}
}

// Validate checks the run configuration.
func (c Config) Validate() error {
	if !c.InitialCapital.IsPositive() {
		return fmt.Errorf("%w: initial capital must be positive", types.ErrInvalidConfig)
	}
	if !c.RiskFactor.IsPositive() {
		return fmt.Errorf("%w: risk factor must be positive", types.ErrInvalidConfig)
	}
	if err := c.Indicators.Validate(); err != nil {
		return err
	}
	return c.Costs.Validate()
}

// PendingOrder is a desired-position change decided at the close of the
// signal day, to be executed at the next day's open. It is explicit state so
// the one-day lag stays visible and testable.
type PendingOrder struct {
	Desired    types.Side
	SignalDate time.Time
	SizingATR  decimal.Decimal // ATR as of the signal day, used for sizing
}

// Result holds the output of one instrument/strategy run.
type Result struct {
	Instrument   string
	Strategy     string
	StartCapital decimal.Decimal
	EndEquity    decimal.Decimal
	Trades       []types.Trade
	EquityCurve  []types.EquityPoint

	// Pending is a signal from the last bar that was recorded but never
	// executed because no next open exists.
	Pending *PendingOrder
}

// Engine simulates one instrument/strategy pair over a daily series. A run is
// strictly sequential and deterministic: no wall clock, no randomness, one
// state transition per bar.
type Engine struct {
	cfg   Config
	spec  types.InstrumentSpec
	strat strategy.Strategy
}

// NewEngine creates an engine for one instrument/strategy pair.
func NewEngine(cfg Config, spec types.InstrumentSpec, strat strategy.Strategy) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !spec.PointValue.IsPositive() {
		return nil, fmt.Errorf("%w: %s point value must be positive", types.ErrInvalidConfig, spec.Name)
	}
	return &Engine{cfg: cfg, spec: spec, strat: strat}, nil
}

// Run executes the simulation over the full bar series.
//
// Per day, in ascending date order: execute the pending order from the
// previous close at today's open, evaluate the strategy at today's close
// against the actual position, mark any open position to market, and append
// one equity point. A signal on the last bar is recorded but not executed.
func (e *Engine) Run(bars []types.Bar) (*Result, error) {
	if err := series.Validate(e.spec.Name, bars); err != nil {
		return nil, err
	}

	frames, err := series.ComputeFrames(e.spec.Name, bars, e.cfg.Indicators)
	if err != nil {
		return nil, err
	}

	book := execution.NewBook(e.cfg.Costs, e.cfg.InitialCapital)
	curve := make([]types.EquityPoint, 0, len(bars))
	prevCash := e.cfg.InitialCapital

	var pending *PendingOrder
	last := len(bars) - 1

	for i, bar := range bars {
		// Fill the previous day's signal at today's open.
		if pending != nil {
			e.execute(book, pending, bar)
			pending = nil
		}

		// Evaluate at the close against the position actually held today.
		desired := e.strat.Desired(frames, i, book.Side())
		if desired != book.Side() {
			pending = &PendingOrder{
				Desired:    desired,
				SignalDate: bar.Date,
				SizingATR:  frames[i].ATR,
			}
		}

		// End-of-series liquidation happens before the final equity point so
		// the curve stays internally consistent.
		if i == last && e.cfg.ForceCloseAtEnd && book.Side() != types.SideFlat {
			book.Close(bar.Close, bar.Date, true)
		}

		unrealized := book.MarkToMarket(bar.Close)
		realizedDelta := book.Cash().Sub(prevCash)
		prevCash = book.Cash()

		curve = append(curve, types.EquityPoint{
			Date:         bar.Date,
			Equity:       book.Cash().Add(unrealized),
			RealizedPL:   realizedDelta,
			UnrealizedPL: unrealized,
		})
	}

	return &Result{
		Instrument:   e.spec.Name,
		Strategy:     e.strat.Name(),
		StartCapital: e.cfg.InitialCapital,
		EndEquity:    curve[len(curve)-1].Equity,
		Trades:       book.Trades(),
		EquityCurve:  curve,
		Pending:      pending,
	}, nil
}

// execute fills a pending order at the bar's open: close a position the
// signal flattens or reverses, then open the new one. Sizing uses realized
// capital at execution time and the ATR of the signal day; the resulting
// contract count is fixed for the life of the trade.
func (e *Engine) execute(book *execution.Book, p *PendingOrder, bar types.Bar) {
	if book.Side() != types.SideFlat && p.Desired != book.Side() {
		book.Close(bar.Open, bar.Date, false)
	}
	if p.Desired != types.SideFlat && book.Side() == types.SideFlat {
		contracts := execution.ContractsFor(book.Cash(), e.cfg.RiskFactor, p.SizingATR, e.spec.PointValue)
		if contracts > 0 {
			book.Open(e.spec, p.Desired, contracts, bar.Open, bar.Date)
		}
	}
}
