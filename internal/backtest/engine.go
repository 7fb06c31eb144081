package backtest

import (
	"fmt"
	"math"
	"time"

	"market-intel-bot/internal/market"
)

// Engine runs historical setup validation over daily bars
type Engine struct {
	initialCapital float64
	commission     float64 // fees as a fraction of notional, per side
	allocation     float64 // equity fraction per position
	maxHold        int     // bars before a stale position is timed out
}

// Result contains backtest performance metrics
type Result struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
	TotalProfit   float64
	TotalLoss     float64
	NetProfit     float64
	ROI           float64
	MaxDrawdown   float64
	AverageWin    float64
	AverageLoss   float64
	ProfitFactor  float64
	SharpeRatio   float64
	Trades        []Trade
	EquityCurve   []EquityPoint
	HorizonStats  map[market.Horizon]*HorizonPerformance
}

// Trade is a single simulated backtest position
type Trade struct {
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Quantity   float64
	Direction  market.Direction
	Horizon    market.Horizon
	Stop       float64
	Target1    float64
	Target2    float64
	ProfitLoss float64
	PLPercent  float64
	ExitReason string // "stop", "target1", "target2", "timeout", "end"
}

// EquityPoint is the account balance after a closed trade
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
}

// HorizonPerformance tracks performance per setup horizon
type HorizonPerformance struct {
	Horizon     market.Horizon
	TotalTrades int
	Wins        int
	Losses      int
	WinRate     float64
	AvgProfit   float64
	AvgLoss     float64
	NetProfit   float64
}

// StrategyFunc produces a setup from the bars seen so far, or nil for no
// entry. index is the bar being evaluated; bars[:index+1] is the visible
// history.
type StrategyFunc func(bars []market.Candle, index int) (*market.Setup, error)

// warmupBars before the first entry is considered, so indicators have history
const warmupBars = 50

// NewEngine creates a backtest engine
func NewEngine(initialCapital, commission, allocation float64, maxHold int) *Engine {
	if allocation <= 0 || allocation > 1 {
		allocation = 0.10
	}
	if maxHold <= 0 {
		maxHold = 5
	}
	return &Engine{
		initialCapital: initialCapital,
		commission:     commission,
		allocation:     allocation,
		maxHold:        maxHold,
	}
}

// Run replays the strategy over the bar series. Exits are resolved intrabar:
// the stop is checked against the adverse extreme before either target, so a
// bar that spans both resolves as a loss.
func (e *Engine) Run(bars []market.Candle, strategy StrategyFunc) (*Result, error) {
	if len(bars) <= warmupBars {
		return nil, fmt.Errorf("backtest: need more than %d bars, have %d", warmupBars, len(bars))
	}

	result := &Result{
		Trades:       make([]Trade, 0),
		EquityCurve:  make([]EquityPoint, 0),
		HorizonStats: make(map[market.Horizon]*HorizonPerformance),
	}

	equity := e.initialCapital
	var open *Trade
	var openedAt int

	for i := warmupBars; i < len(bars); i++ {
		bar := bars[i]

		if open != nil {
			reason, exitPrice := e.exit(open, bar)
			if reason == "" && i-openedAt >= e.maxHold {
				reason, exitPrice = "timeout", bar.Close
			}
			if reason != "" {
				equity += e.close(open, bar.Time, exitPrice, reason)
				result.Trades = append(result.Trades, *open)
				e.updateHorizonStats(result, open)
				result.EquityCurve = append(result.EquityCurve, EquityPoint{Timestamp: bar.Time, Equity: equity})
				open = nil
			}
		}

		if open == nil {
			setup, err := strategy(bars[:i+1], i)
			if err != nil || setup == nil {
				continue
			}
			quantity := equity * e.allocation / setup.Entry
			open = &Trade{
				EntryTime:  bar.Time,
				EntryPrice: setup.Entry,
				Quantity:   quantity,
				Direction:  setup.Direction,
				Horizon:    setup.Horizon,
				Stop:       setup.Stop,
				Target1:    setup.Target1,
				Target2:    setup.Target2,
			}
			openedAt = i
		}
	}

	if open != nil {
		last := bars[len(bars)-1]
		equity += e.close(open, last.Time, last.Close, "end")
		result.Trades = append(result.Trades, *open)
		e.updateHorizonStats(result, open)
		result.EquityCurve = append(result.EquityCurve, EquityPoint{Timestamp: last.Time, Equity: equity})
	}

	e.calculateMetrics(result, equity)
	return result, nil
}

// exit resolves a bar against the open position's levels
func (e *Engine) exit(t *Trade, bar market.Candle) (string, float64) {
	if t.Direction == market.Long {
		switch {
		case bar.Low <= t.Stop:
			return "stop", t.Stop
		case bar.High >= t.Target2:
			return "target2", t.Target2
		case bar.High >= t.Target1:
			return "target1", t.Target1
		}
		return "", 0
	}
	switch {
	case bar.High >= t.Stop:
		return "stop", t.Stop
	case bar.Low <= t.Target2:
		return "target2", t.Target2
	case bar.Low <= t.Target1:
		return "target1", t.Target1
	}
	return "", 0
}

// close finalizes the trade and returns the equity delta net of commission
func (e *Engine) close(t *Trade, at time.Time, exitPrice float64, reason string) float64 {
	t.ExitTime = at
	t.ExitPrice = exitPrice
	t.ExitReason = reason

	diff := exitPrice - t.EntryPrice
	if t.Direction == market.Short {
		diff = -diff
	}
	gross := diff * t.Quantity
	fees := (t.EntryPrice + exitPrice) * t.Quantity * e.commission
	t.ProfitLoss = gross - fees
	t.PLPercent = diff / t.EntryPrice * 100
	return t.ProfitLoss
}

func (e *Engine) updateHorizonStats(result *Result, trade *Trade) {
	stats, ok := result.HorizonStats[trade.Horizon]
	if !ok {
		stats = &HorizonPerformance{Horizon: trade.Horizon}
		result.HorizonStats[trade.Horizon] = stats
	}

	stats.TotalTrades++
	if trade.ProfitLoss > 0 {
		stats.Wins++
		stats.AvgProfit = ((stats.AvgProfit * float64(stats.Wins-1)) + trade.ProfitLoss) / float64(stats.Wins)
	} else {
		stats.Losses++
		stats.AvgLoss = ((stats.AvgLoss * float64(stats.Losses-1)) + trade.ProfitLoss) / float64(stats.Losses)
	}
	stats.NetProfit += trade.ProfitLoss
	stats.WinRate = float64(stats.Wins) / float64(stats.TotalTrades) * 100
}

func (e *Engine) calculateMetrics(result *Result, finalEquity float64) {
	result.TotalTrades = len(result.Trades)

	for _, trade := range result.Trades {
		if trade.ProfitLoss > 0 {
			result.WinningTrades++
			result.TotalProfit += trade.ProfitLoss
		} else {
			result.LosingTrades++
			result.TotalLoss += math.Abs(trade.ProfitLoss)
		}
	}

	if result.TotalTrades > 0 {
		result.WinRate = float64(result.WinningTrades) / float64(result.TotalTrades) * 100
	}
	if result.WinningTrades > 0 {
		result.AverageWin = result.TotalProfit / float64(result.WinningTrades)
	}
	if result.LosingTrades > 0 {
		result.AverageLoss = result.TotalLoss / float64(result.LosingTrades)
	}

	result.NetProfit = finalEquity - e.initialCapital
	result.ROI = result.NetProfit / e.initialCapital * 100

	if result.TotalLoss > 0 {
		result.ProfitFactor = result.TotalProfit / result.TotalLoss
	}

	result.MaxDrawdown = maxDrawdown(result.EquityCurve)
	result.SharpeRatio = sharpeRatio(result.Trades)
}

func maxDrawdown(curve []EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	worst := 0.0
	peak := curve[0].Equity
	for _, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
		}
		if dd := (peak - point.Equity) / peak * 100; dd > worst {
			worst = dd
		}
	}
	return worst
}

// sharpeRatio is the per-trade mean return over its standard deviation,
// risk-free rate taken as zero
func sharpeRatio(trades []Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	var sum float64
	for _, t := range trades {
		sum += t.PLPercent
	}
	mean := sum / float64(len(trades))

	var variance float64
	for _, t := range trades {
		diff := t.PLPercent - mean
		variance += diff * diff
	}
	std := math.Sqrt(variance / float64(len(trades)))
	if std == 0 {
		return 0
	}
	return mean / std
}

// PrintResults writes a human-readable report
func (e *Engine) PrintResults(result *Result) {
	fmt.Println("\n=== BACKTEST RESULTS ===")
	fmt.Printf("Total Trades: %d\n", result.TotalTrades)
	fmt.Printf("Winning Trades: %d (%.1f%%)\n", result.WinningTrades, result.WinRate)
	fmt.Printf("Losing Trades: %d\n", result.LosingTrades)
	fmt.Printf("Net Profit: $%.2f\n", result.NetProfit)
	fmt.Printf("ROI: %.2f%%\n", result.ROI)
	fmt.Printf("Profit Factor: %.2f\n", result.ProfitFactor)
	fmt.Printf("Max Drawdown: %.2f%%\n", result.MaxDrawdown)
	fmt.Printf("Average Win: $%.2f\n", result.AverageWin)
	fmt.Printf("Average Loss: $%.2f\n", result.AverageLoss)
	fmt.Printf("Sharpe Ratio: %.2f\n", result.SharpeRatio)

	fmt.Println("\n=== HORIZON PERFORMANCE ===")
	for horizon, stats := range result.HorizonStats {
		fmt.Printf("%s: %d trades, %.1f%% win rate, Net: $%.2f\n",
			horizon, stats.TotalTrades, stats.WinRate, stats.NetProfit)
	}
}
