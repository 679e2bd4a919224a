// Package ui renders backtest results for the terminal.
package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"github.com/quantforge/trendfollow/internal/backtest"
	"github.com/quantforge/trendfollow/internal/types"
)

// ANSI escape codes
const (
	ClearLine   = "\033[2K"
	MoveToStart = "\r"
	ColorReset  = "\033[0m"
	ColorGreen  = "\033[32m"
	ColorRed    = "\033[31m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorDim    = "\033[2m"
	ColorBold   = "\033[1m"
)

// FormatReport renders the performance summary of one run as an aligned
// block. Colors are applied when color is true.
func FormatReport(instrument, strategy string, rep *backtest.Report, color bool) string {
	paint := func(c, s string) string {
		if !color {
			return s
		}
		return c + s + ColorReset
	}
	signed := func(v decimal.Decimal, s string) string {
		if !color {
			return s
		}
		if v.IsNegative() {
			return ColorRed + s + ColorReset
		}
		return ColorGreen + s + ColorReset
	}

	var sb strings.Builder
	title := fmt.Sprintf("%s / %s", instrument, strategy)
	sb.WriteString(paint(ColorBold, title) + "\n")
	sb.WriteString(strings.Repeat("─", len(title)) + "\n")

	row := func(label, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s %s\n", label, value))
	}

	row("Total return", signed(rep.TotalReturn, formatPct(rep.TotalReturn)))
	row("CAGR", signed(rep.CAGR, formatPct(rep.CAGR)))
	row("Annualized vol", formatPct(rep.AnnualizedVol))
	row("Sharpe", rep.Sharpe.StringFixed(2))
	row("Sortino", rep.Sortino.StringFixed(2))
	row("Calmar", rep.Calmar.StringFixed(2))
	row("Max drawdown", paint(ColorRed, formatPct(rep.MaxDrawdown)))
	row("Max drawdown days", fmt.Sprintf("%d", rep.MaxDrawdownDays))
	sb.WriteString("\n")
	row("Trades", fmt.Sprintf("%d (%d wins / %d losses)",
		rep.TotalTrades, rep.WinningTrades, rep.LosingTrades))
	row("Win rate", formatPct(rep.WinRate))
	row("Avg trade P&L", signed(rep.AvgTradePL, "$"+rep.AvgTradePL.StringFixed(2)))
	row("Avg win", "$"+rep.AvgWin.StringFixed(2))
	row("Avg loss", "$"+rep.AvgLoss.StringFixed(2))
	row("Profit factor", rep.ProfitFactor.StringFixed(2))

	if len(rep.RedFlags) > 0 {
		sb.WriteString("\n")
		sb.WriteString(paint(ColorYellow+ColorBold, "  Plausibility warnings:") + "\n")
		for _, flag := range rep.RedFlags {
			sb.WriteString(paint(ColorYellow, "    ! "+flag) + "\n")
		}
	}

	return sb.String()
}

// EquityChart renders the equity curve as an ASCII line chart with a price
// axis, downsampled to fit width columns.
func EquityChart(curve []types.EquityPoint, width, height int) string {
	if len(curve) < 2 || width < 10 || height < 3 {
		return ""
	}

	points := downsample(curve, width)

	minEq := points[0]
	maxEq := points[0]
	for _, v := range points {
		if v.LessThan(minEq) {
			minEq = v
		}
		if v.GreaterThan(maxEq) {
			maxEq = v
		}
	}
	span := maxEq.Sub(minEq)
	if span.IsZero() {
		span = decimal.NewFromInt(1)
	}

	grid := make([][]rune, height)
	for y := range grid {
		grid[y] = make([]rune, len(points))
		for x := range grid[y] {
			grid[y][x] = ' '
		}
	}

	for x, v := range points {
		y := valueToRow(v, minEq, span, height)
		grid[y][x] = '·'
		if x > 0 {
			prev := valueToRow(points[x-1], minEq, span, height)
			step := 1
			if prev < y {
				step = -1
			}
			for fill := y + step; fill != prev; fill += step {
				grid[fill][x] = '│'
			}
		}
	}

	var sb strings.Builder
	for y := 0; y < height; y++ {
		if y == 0 {
			sb.WriteString(fmt.Sprintf("%10s │", "$"+maxEq.StringFixed(0)))
		} else if y == height-1 {
			sb.WriteString(fmt.Sprintf("%10s │", "$"+minEq.StringFixed(0)))
		} else {
			sb.WriteString(strings.Repeat(" ", 10) + " │")
		}
		sb.WriteString(string(grid[y]))
		sb.WriteString("\n")
	}
	sb.WriteString(strings.Repeat(" ", 11) + "└" + strings.Repeat("─", len(points)) + "\n")

	return sb.String()
}

// downsample reduces the curve to at most width equity values, keeping the
// last point of each bucket.
func downsample(curve []types.EquityPoint, width int) []decimal.Decimal {
	if len(curve) <= width {
		out := make([]decimal.Decimal, len(curve))
		for i, pt := range curve {
			out[i] = pt.Equity
		}
		return out
	}

	out := make([]decimal.Decimal, 0, width)
	for i := 0; i < width; i++ {
		idx := (i+1)*len(curve)/width - 1
		out = append(out, curve[idx].Equity)
	}
	return out
}

// valueToRow maps an equity value to a grid row (0 = top).
func valueToRow(v, minV, span decimal.Decimal, height int) int {
	normalized := v.Sub(minV).Div(span)
	row := decimal.NewFromInt(int64(height - 1)).
		Sub(normalized.Mul(decimal.NewFromInt(int64(height - 1))))
	y := int(row.Round(0).IntPart())
	if y < 0 {
		y = 0
	}
	if y >= height {
		y = height - 1
	}
	return y
}

// TerminalWidth returns the terminal width, defaulting to 80 columns.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

// ProgressLine prints a single updating progress line.
func ProgressLine(current, total int, message string) {
	progress := float64(current) / float64(total) * 100
	fmt.Printf("%s%s[%d/%d] %.1f%% - %s", ClearLine, MoveToStart, current, total, progress, message)
}

func formatPct(v decimal.Decimal) string {
	return v.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}
