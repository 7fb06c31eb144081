package backtest

import (
	"testing"
	"time"

	"market-intel-bot/internal/market"
)

// flatBars builds a constant-price series long enough to clear the warmup
func flatBars(n int, price float64) []market.Candle {
	bars := make([]market.Candle, n)
	base := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = market.Candle{
			Time: base.AddDate(0, 0, i),
			Open: price, High: price, Low: price, Close: price, Volume: 1000,
		}
	}
	return bars
}

// enterOnceAt returns a strategy that opens one long at the given bar
func enterOnceAt(index int, setup *market.Setup) StrategyFunc {
	fired := false
	return func(_ []market.Candle, i int) (*market.Setup, error) {
		if fired || i != index {
			return nil, nil
		}
		fired = true
		return setup, nil
	}
}

func TestLongTargetTwoExit(t *testing.T) {
	bars := flatBars(60, 100)
	// bar 55 spikes through both targets
	bars[55].High = 105
	bars[55].Close = 104.5

	e := NewEngine(10_000, 0, 0.10, 10)
	result, err := e.Run(bars, enterOnceAt(52, &market.Setup{
		Ticker: "AAPL", Direction: market.Long,
		Entry: 100, Stop: 98, Target1: 102, Target2: 104,
		Horizon: market.HorizonSwing1d,
	}))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.TotalTrades != 1 {
		t.Fatalf("trades = %d, want 1", result.TotalTrades)
	}
	tr := result.Trades[0]
	if tr.ExitReason != "target2" || tr.ExitPrice != 104 {
		t.Errorf("exit = %s@%v, want target2@104", tr.ExitReason, tr.ExitPrice)
	}
	// $1000 allocation at 100 = 10 shares, +4 points
	if tr.ProfitLoss != 40 {
		t.Errorf("pnl = %v, want 40", tr.ProfitLoss)
	}
	if result.NetProfit != 40 {
		t.Errorf("net = %v, want 40", result.NetProfit)
	}
}

// TestStopBeatsTargetIntrabar: a bar spanning both stop and target resolves
// as a loss
func TestStopBeatsTargetIntrabar(t *testing.T) {
	bars := flatBars(60, 100)
	bars[53].Low = 97
	bars[53].High = 103

	e := NewEngine(10_000, 0, 0.10, 10)
	result, err := e.Run(bars, enterOnceAt(52, &market.Setup{
		Ticker: "AAPL", Direction: market.Long,
		Entry: 100, Stop: 98, Target1: 102, Target2: 104,
		Horizon: market.HorizonDayTrade,
	}))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Trades[0].ExitReason != "stop" {
		t.Errorf("exit = %s, want stop", result.Trades[0].ExitReason)
	}
	if result.LosingTrades != 1 || result.WinningTrades != 0 {
		t.Errorf("w/l = %d/%d, want 0/1", result.WinningTrades, result.LosingTrades)
	}
}

func TestShortSideMirrors(t *testing.T) {
	bars := flatBars(60, 100)
	bars[54].Low = 97.5

	e := NewEngine(10_000, 0, 0.10, 10)
	result, err := e.Run(bars, enterOnceAt(52, &market.Setup{
		Ticker: "SPY", Direction: market.Short,
		Entry: 100, Stop: 102, Target1: 98, Target2: 96,
		Horizon: market.HorizonDayTrade,
	}))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	tr := result.Trades[0]
	if tr.ExitReason != "target1" || tr.ExitPrice != 98 {
		t.Errorf("exit = %s@%v, want target1@98", tr.ExitReason, tr.ExitPrice)
	}
	if tr.ProfitLoss <= 0 {
		t.Errorf("short win pnl = %v, want positive", tr.ProfitLoss)
	}
}

func TestTimeoutExit(t *testing.T) {
	bars := flatBars(70, 100)

	e := NewEngine(10_000, 0, 0.10, 5)
	result, err := e.Run(bars, enterOnceAt(52, &market.Setup{
		Ticker: "MSFT", Direction: market.Long,
		Entry: 100, Stop: 95, Target1: 110, Target2: 120,
		Horizon: market.HorizonSwing3d,
	}))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Trades[0].ExitReason != "timeout" {
		t.Errorf("exit = %s, want timeout", result.Trades[0].ExitReason)
	}
}

func TestCommissionReducesPnL(t *testing.T) {
	bars := flatBars(60, 100)
	bars[55].High = 103

	setup := &market.Setup{
		Ticker: "AAPL", Direction: market.Long,
		Entry: 100, Stop: 98, Target1: 102, Target2: 106,
		Horizon: market.HorizonDayTrade,
	}

	free := NewEngine(10_000, 0, 0.10, 10)
	paid := NewEngine(10_000, 0.001, 0.10, 10)

	rf, _ := free.Run(bars, enterOnceAt(52, setup))
	rp, _ := paid.Run(bars, enterOnceAt(52, setup))
	if rp.NetProfit >= rf.NetProfit {
		t.Errorf("commissioned net %v should trail free net %v", rp.NetProfit, rf.NetProfit)
	}
}

func TestInsufficientBars(t *testing.T) {
	if _, err := NewEngine(10_000, 0, 0.10, 5).Run(flatBars(20, 100), enterOnceAt(5, nil)); err == nil {
		t.Error("expected error for short series")
	}
}
