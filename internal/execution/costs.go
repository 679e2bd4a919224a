// Package execution models trade execution: position sizing, transaction
// costs and the per-instrument position book.
package execution

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/quantforge/trendfollow/internal/types"
)

// CostConfig holds the deterministic transaction cost model: a fixed
// commission-plus-exchange-fee per contract and slippage as a basis-point
// fraction of the execution price. Both are charged on entry and on exit.
type CostConfig struct {
	CommissionPerContract  decimal.Decimal
	ExchangeFeePerContract decimal.Decimal
	SlippageBps            decimal.Decimal
}

// DefaultCostConfig returns typical retail futures costs: $0.85 commission,
// $1.50 exchange fee, 5 bps slippage.
func DefaultCostConfig() CostConfig {
	return CostConfig{
		CommissionPerContract:  decimal.RequireFromString("0.85"),
		ExchangeFeePerContract: decimal.RequireFromString("1.50"),
		SlippageBps:            decimal.RequireFromString("5"),
	}
}

// Validate checks the cost parameters.
func (c CostConfig) Validate() error {
	if c.CommissionPerContract.IsNegative() || c.ExchangeFeePerContract.IsNegative() || c.SlippageBps.IsNegative() {
		return fmt.Errorf("%w: costs must be non-negative", types.ErrInvalidConfig)
	}
	return nil
}

// PerSide returns the cost of executing contracts at price, one side:
// contracts * (commission + fee) + contracts * price * bps/10000.
func (c CostConfig) PerSide(contracts int64, price decimal.Decimal) decimal.Decimal {
	n := decimal.NewFromInt(contracts)
	fixed := n.Mul(c.CommissionPerContract.Add(c.ExchangeFeePerContract))
	slippage := n.Mul(price).Mul(c.SlippageBps).Div(decimal.NewFromInt(10000))
	return fixed.Add(slippage)
}

// ContractsFor computes the Clenow position size:
//
//	contracts = floor(capital * riskFactor / (atr * pointValue))
//
// Returns 0 when the ATR or point value is not positive or the computed size
// rounds below one contract. The size is computed once at entry and stays
// fixed for the life of the trade.
func ContractsFor(capital, riskFactor, atr, pointValue decimal.Decimal) int64 {
	if !capital.IsPositive() || !riskFactor.IsPositive() {
		return 0
	}
	if !atr.IsPositive() || !pointValue.IsPositive() {
		return 0
	}

	contracts := capital.Mul(riskFactor).Div(atr.Mul(pointValue)).Floor().IntPart()
	if contracts < 0 {
		return 0
	}
	return contracts
}
