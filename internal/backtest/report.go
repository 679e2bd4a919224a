package backtest

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/quantforge/trendfollow/internal/types"
)

// ReportParams controls the statistics derivation.
type ReportParams struct {
	TradingDaysPerYear int
	RiskFreeRate       decimal.Decimal // annual, 0 for the simplified Sharpe
	MinPoints          int             // refuse to report on fewer equity points
}

// DefaultReportParams returns the standard 252-day year with a zero risk-free
// rate and a one-year minimum history.
func DefaultReportParams() ReportParams {
	return ReportParams{
		TradingDaysPerYear: 252,
		RiskFreeRate:       decimal.Zero,
		MinPoints:          252,
	}
}

// Report is the immutable performance summary of one run. Ratios are stored
// as decimals (0.15 = 15%).
type Report struct {
	TotalReturn   decimal.Decimal
	CAGR          decimal.Decimal
	AnnualizedVol decimal.Decimal
	Sharpe        decimal.Decimal
	Sortino       decimal.Decimal
	Calmar        decimal.Decimal

	MaxDrawdown     decimal.Decimal // positive ratio: 0.25 = 25% decline
	MaxDrawdownDays int             // longest underwater stretch, calendar days

	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       decimal.Decimal
	AvgTradePL    decimal.Decimal
	AvgWin        decimal.Decimal
	AvgLoss       decimal.Decimal
	ProfitFactor  decimal.Decimal

	// RedFlags lists plausibility warnings: results this good usually mean a
	// look-ahead or sizing defect, not a great strategy.
	RedFlags []string
}

// ComputeReport derives the performance report from an equity curve and trade
// log. Returns ErrInsufficientData when the curve is shorter than
// p.MinPoints (roughly one year by default).
func ComputeReport(curve []types.EquityPoint, trades []types.Trade, p ReportParams) (*Report, error) {
	if p.TradingDaysPerYear <= 0 {
		return nil, fmt.Errorf("%w: trading days per year must be positive", types.ErrInvalidConfig)
	}
	if len(curve) < p.MinPoints {
		return nil, fmt.Errorf("%w: %d equity points, need at least %d for statistics",
			types.ErrInsufficientData, len(curve), p.MinPoints)
	}

	r := &Report{}

	first := curve[0].Equity
	last := curve[len(curve)-1].Equity
	returns := dailyReturns(curve)

	if first.IsPositive() {
		r.TotalReturn = last.Sub(first).Div(first)
	}

	// CAGR: (last/first)^(1/years) - 1, years measured in trading days
	years := float64(len(curve)-1) / float64(p.TradingDaysPerYear)
	if years > 0 && first.IsPositive() && last.IsPositive() {
		growth := last.Div(first).InexactFloat64()
		r.CAGR = decimal.NewFromFloat(math.Pow(growth, 1/years) - 1)
	}

	sqrtYear := decimal.NewFromFloat(math.Sqrt(float64(p.TradingDaysPerYear)))
	meanRet := mean(returns)
	stdRet := standardDeviation(returns)
	dailyRf := p.RiskFreeRate.Div(decimal.NewFromInt(int64(p.TradingDaysPerYear)))
	excess := meanRet.Sub(dailyRf)

	r.AnnualizedVol = stdRet.Mul(sqrtYear)
	if stdRet.IsPositive() {
		r.Sharpe = excess.Div(stdRet).Mul(sqrtYear)
	}
	if downside := downsideDeviation(returns); downside.IsPositive() {
		r.Sortino = excess.Div(downside).Mul(sqrtYear)
	}

	r.MaxDrawdown, r.MaxDrawdownDays = maxDrawdown(curve)
	if r.MaxDrawdown.IsPositive() {
		r.Calmar = r.CAGR.Div(r.MaxDrawdown)
	}

	r.tradeStats(trades)
	r.flag()

	return r, nil
}

// tradeStats fills the trade-log statistics.
func (r *Report) tradeStats(trades []types.Trade) {
	r.TotalTrades = len(trades)
	if len(trades) == 0 {
		return
	}

	var totalPL, totalWin, totalLoss decimal.Decimal
	for _, t := range trades {
		totalPL = totalPL.Add(t.NetPL)
		if t.NetPL.IsPositive() {
			r.WinningTrades++
			totalWin = totalWin.Add(t.NetPL)
		} else {
			r.LosingTrades++
			totalLoss = totalLoss.Add(t.NetPL)
		}
	}

	n := decimal.NewFromInt(int64(len(trades)))
	r.WinRate = decimal.NewFromInt(int64(r.WinningTrades)).Div(n)
	r.AvgTradePL = totalPL.Div(n)
	if r.WinningTrades > 0 {
		r.AvgWin = totalWin.Div(decimal.NewFromInt(int64(r.WinningTrades)))
	}
	if r.LosingTrades > 0 {
		r.AvgLoss = totalLoss.Div(decimal.NewFromInt(int64(r.LosingTrades)))
	}
	if totalLoss.IsNegative() {
		r.ProfitFactor = totalWin.Div(totalLoss.Abs())
	}
}

// flag applies the Clenow plausibility thresholds.
func (r *Report) flag() {
	if r.CAGR.GreaterThan(decimal.RequireFromString("0.30")) {
		r.RedFlags = append(r.RedFlags,
			fmt.Sprintf("CAGR %.1f%% above 30%%: likely overfit or look-ahead", pct(r.CAGR)))
	}
	if r.Sharpe.GreaterThan(decimal.NewFromInt(2)) {
		r.RedFlags = append(r.RedFlags,
			fmt.Sprintf("Sharpe %.2f above 2.0: implausible for trend following", r.Sharpe.InexactFloat64()))
	}
	if r.MaxDrawdown.LessThan(decimal.RequireFromString("0.10")) {
		r.RedFlags = append(r.RedFlags,
			fmt.Sprintf("max drawdown %.1f%% shallower than 10%%: unrealistic", pct(r.MaxDrawdown)))
	}
	if r.TotalTrades < 30 {
		r.RedFlags = append(r.RedFlags,
			fmt.Sprintf("%d trades: statistically insufficient sample", r.TotalTrades))
	}
}

// dailyReturns computes simple daily returns from the equity curve.
func dailyReturns(curve []types.EquityPoint) []decimal.Decimal {
	returns := make([]decimal.Decimal, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev.IsZero() {
			continue
		}
		returns = append(returns, curve[i].Equity.Sub(prev).Div(prev))
	}
	return returns
}

// maxDrawdown scans the curve once, tracking the running peak. Returns the
// deepest peak-to-trough decline as a positive ratio and the longest
// underwater stretch in calendar days.
func maxDrawdown(curve []types.EquityPoint) (decimal.Decimal, int) {
	if len(curve) == 0 {
		return decimal.Zero, 0
	}

	peak := curve[0].Equity
	peakDate := curve[0].Date
	maxDD := decimal.Zero
	maxDays := 0

	for _, pt := range curve {
		if pt.Equity.GreaterThan(peak) {
			peak = pt.Equity
			peakDate = pt.Date
			continue
		}
		if peak.IsPositive() {
			dd := peak.Sub(pt.Equity).Div(peak)
			if dd.GreaterThan(maxDD) {
				maxDD = dd
			}
		}
		if days := int(pt.Date.Sub(peakDate).Hours() / 24); days > maxDays {
			maxDays = days
		}
	}

	return maxDD, maxDays
}

func mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}

func standardDeviation(values []decimal.Decimal) decimal.Decimal {
	if len(values) < 2 {
		return decimal.Zero
	}
	m := mean(values)
	sumSquares := decimal.Zero
	for _, v := range values {
		diff := v.Sub(m)
		sumSquares = sumSquares.Add(diff.Mul(diff))
	}
	variance := sumSquares.Div(decimal.NewFromInt(int64(len(values) - 1))).InexactFloat64()
	if variance < 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(math.Sqrt(variance))
}

// downsideDeviation is the standard deviation of the negative returns only.
func downsideDeviation(returns []decimal.Decimal) decimal.Decimal {
	negative := make([]decimal.Decimal, 0)
	for _, r := range returns {
		if r.IsNegative() {
			negative = append(negative, r)
		}
	}
	return standardDeviation(negative)
}

func pct(v decimal.Decimal) float64 {
	return v.Mul(decimal.NewFromInt(100)).InexactFloat64()
}
