package execution

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantforge/trendfollow/internal/types"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var gold = types.InstrumentSpec{
	Name:       "Gold",
	Ticker:     "GC=F",
	PointValue: d("100"),
	Currency:   "USD",
}

func date(day int) time.Time {
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day)
}

func TestContractsFor(t *testing.T) {
	tests := []struct {
		name       string
		capital    string
		riskFactor string
		atr        string
		pointValue string
		want       int64
	}{
		// 100000 * 0.002 / (10 * 100) = 0.2 -> 0
		{"rounds below one contract", "100000", "0.002", "10", "100", 0},
		// 1000000 * 0.002 / (10 * 100) = 2
		{"exact", "1000000", "0.002", "10", "100", 2},
		// 1250000 * 0.002 / (9 * 100) = 2.77... -> 2
		{"floors", "1250000", "0.002", "9", "100", 2},
		{"zero atr", "1000000", "0.002", "0", "100", 0},
		{"zero point value", "1000000", "0.002", "10", "0", 0},
		{"non-positive capital", "0", "0.002", "10", "100", 0},
		{"non-positive risk factor", "1000000", "0", "10", "100", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ContractsFor(d(tt.capital), d(tt.riskFactor), d(tt.atr), d(tt.pointValue))
			if got != tt.want {
				t.Errorf("ContractsFor = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCostConfig_PerSide(t *testing.T) {
	costs := CostConfig{
		CommissionPerContract:  d("0.85"),
		ExchangeFeePerContract: d("1.50"),
		SlippageBps:            d("5"),
	}

	// 3 * 2.35 + 3 * 2000 * 0.0005 = 7.05 + 3.00 = 10.05
	got := costs.PerSide(3, d("2000"))
	if !got.Equal(d("10.05")) {
		t.Errorf("PerSide = %s, want 10.05", got)
	}
}

func TestCostConfig_Validate(t *testing.T) {
	bad := CostConfig{CommissionPerContract: d("-1")}
	if err := bad.Validate(); err == nil {
		t.Error("Validate accepted a negative commission")
	}
	if err := DefaultCostConfig().Validate(); err != nil {
		t.Errorf("Validate rejected defaults: %v", err)
	}
}

func TestBook_LongRoundTrip(t *testing.T) {
	costs := CostConfig{
		CommissionPerContract:  d("1"),
		ExchangeFeePerContract: d("1"),
		SlippageBps:            decimal.Zero,
	}
	book := NewBook(costs, d("100000"))

	book.Open(gold, types.SideLong, 2, d("1900"), date(0))

	// entry costs: 2 * 2 = 4
	if !book.Cash().Equal(d("99996")) {
		t.Errorf("cash after open = %s, want 99996", book.Cash())
	}
	if book.Side() != types.SideLong {
		t.Errorf("side = %v, want LONG", book.Side())
	}

	trade := book.Close(d("1910"), date(5), false)

	// gross = (1910-1900) * 2 * 100 = 2000; exit costs = 4
	if !trade.GrossPL.Equal(d("2000")) {
		t.Errorf("GrossPL = %s, want 2000", trade.GrossPL)
	}
	if !trade.Costs.Equal(d("8")) {
		t.Errorf("Costs = %s, want 8", trade.Costs)
	}
	if !trade.NetPL.Equal(d("1992")) {
		t.Errorf("NetPL = %s, want 1992", trade.NetPL)
	}
	if trade.HoldingDays != 5 {
		t.Errorf("HoldingDays = %d, want 5", trade.HoldingDays)
	}
	if !book.Cash().Equal(d("101992")) {
		t.Errorf("cash after close = %s, want 101992", book.Cash())
	}
	if book.Side() != types.SideFlat {
		t.Errorf("side after close = %v, want FLAT", book.Side())
	}
}

func TestBook_ShortProfitsFromDecline(t *testing.T) {
	book := NewBook(CostConfig{}, d("50000"))

	book.Open(gold, types.SideShort, 1, d("2000"), date(0))
	trade := book.Close(d("1980"), date(3), false)

	// gross = (2000-1980) * 1 * 100 = 2000
	if !trade.GrossPL.Equal(d("2000")) {
		t.Errorf("short GrossPL = %s, want 2000", trade.GrossPL)
	}
}

func TestBook_MarkToMarket(t *testing.T) {
	book := NewBook(CostConfig{}, d("50000"))

	if !book.MarkToMarket(d("2000")).Equal(decimal.Zero) {
		t.Error("flat book should mark to zero")
	}

	book.Open(gold, types.SideLong, 3, d("2000"), date(0))

	// (2010-2000) * 3 * 100 = 3000
	if got := book.MarkToMarket(d("2010")); !got.Equal(d("3000")) {
		t.Errorf("MarkToMarket = %s, want 3000", got)
	}
	// losses are negative
	if got := book.MarkToMarket(d("1995")); !got.Equal(d("-1500")) {
		t.Errorf("MarkToMarket = %s, want -1500", got)
	}
}

func TestBook_CostErosion(t *testing.T) {
	// With zero price movement, a round trip erodes cash by exactly
	// 2*(commission+fee) per contract plus entry and exit slippage.
	costs := CostConfig{
		CommissionPerContract:  d("0.85"),
		ExchangeFeePerContract: d("1.50"),
		SlippageBps:            d("5"),
	}
	book := NewBook(costs, d("100000"))

	book.Open(gold, types.SideLong, 1, d("2000"), date(0))
	trade := book.Close(d("2000"), date(1), true)

	// per side: 2.35 + 2000*0.0005 = 3.35; both sides = 6.70
	if !trade.NetPL.Equal(d("-6.7")) {
		t.Errorf("NetPL = %s, want -6.7", trade.NetPL)
	}
	if !book.Cash().Equal(d("99993.3")) {
		t.Errorf("cash = %s, want 99993.3", book.Cash())
	}
	if !trade.ForcedExit {
		t.Error("ForcedExit flag not set")
	}
}

func TestBook_SequentialTradeIDs(t *testing.T) {
	book := NewBook(CostConfig{}, d("100000"))

	book.Open(gold, types.SideLong, 1, d("2000"), date(0))
	first := book.Close(d("2010"), date(1), false)
	book.Open(gold, types.SideShort, 1, d("2010"), date(2))
	second := book.Close(d("2005"), date(3), false)

	if first.ID != "Gold-0001" || second.ID != "Gold-0002" {
		t.Errorf("trade IDs = %q, %q; want Gold-0001, Gold-0002", first.ID, second.ID)
	}
}
