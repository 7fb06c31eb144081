package alerts

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"market-intel-bot/internal/logging"
	"market-intel-bot/internal/market"
	"market-intel-bot/internal/state"
	"market-intel-bot/internal/technicals"
)

// Evaluator thresholds
const (
	flowPremiumAlert   = 250_000
	flowPremiumUrgent  = 1_000_000
	darkPoolShareFloor = 100_000
	darkPoolNotional   = 1_000_000

	// CooldownWindow suppresses duplicate (ticker, type) alerts
	CooldownWindow = 30 * time.Minute
)

// Alert type tags
const (
	TypeFlowSweep     = "FLOW_SWEEP"
	TypeFlowPremium   = "FLOW_PREMIUM"
	TypeRSIExtreme    = "RSI_EXTREME"
	TypeTrendConfirm  = "TREND_CONFIRMATION"
	TypeVolumeSpike   = "VOLUME_SPIKE"
	TypeGap           = "GAP"
	TypeDarkPoolPrint = "DARKPOOL_PRINT"
)

// Engine runs stateless evaluators over the state snapshot each cycle and
// dedupes emissions per (ticker, type) within the cooldown window.
type Engine struct {
	logger *logging.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time

	now func() time.Time
}

// NewEngine creates the alert engine
func NewEngine(logger *logging.Logger) *Engine {
	return &Engine{
		logger:   logger.WithComponent("alerts"),
		lastSent: map[string]time.Time{},
		now:      time.Now,
	}
}

// Evaluate maps the snapshot to zero or more new alerts, cooldown applied.
// The session tag rides on every alert.
func (e *Engine) Evaluate(snap *state.State, session string) []market.Alert {
	var out []market.Alert

	emit := func(a market.Alert) {
		if !e.admit(a.Ticker, a.Type) {
			return
		}
		a.ID = uuid.NewString()
		a.Session = session
		a.Timestamp = e.now().UTC()
		out = append(out, a)
	}

	for _, item := range snap.OptionsFlow {
		evaluateFlow(item, emit)
	}
	for ticker, items := range snap.Flow {
		for _, item := range items {
			if item.Ticker == "" {
				item.Ticker = ticker
			}
			evaluateFlow(item, emit)
		}
	}

	for ticker, byTF := range snap.Technicals {
		for _, t := range byTF {
			evaluateTechnicals(ticker, t, emit)
		}
	}

	for _, p := range snap.DarkPoolRecent {
		evaluateDarkPool(p, emit)
	}
	for ticker, prints := range snap.DarkPool {
		for _, p := range prints {
			if p.Ticker == "" {
				p.Ticker = ticker
			}
			evaluateDarkPool(p, emit)
		}
	}

	if len(out) > 0 {
		e.logger.Info("alerts emitted", "count", len(out))
	}
	return out
}

// admit applies the (ticker, type) cooldown; an admitted alert arms it
func (e *Engine) admit(ticker, alertType string) bool {
	key := ticker + "|" + alertType
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()
	if last, ok := e.lastSent[key]; ok && now.Sub(last) < CooldownWindow {
		return false
	}
	e.lastSent[key] = now
	return true
}

func evaluateFlow(item market.FlowItem, emit func(market.Alert)) {
	if item.Premium < flowPremiumAlert {
		return
	}

	severity := market.SeverityMedium
	alertType := TypeFlowPremium
	if item.Execution == "sweep" {
		alertType = TypeFlowSweep
		severity = market.SeverityHigh
	} else if item.Premium >= flowPremiumUrgent {
		severity = market.SeverityHigh
	}

	emit(market.Alert{
		Ticker:    item.Ticker,
		Type:      alertType,
		Direction: item.Direction,
		Severity:  severity,
		Message: fmt.Sprintf("%s %s $%.0fK premium %s strike %.0f",
			item.Ticker, item.ContractType, item.Premium/1000, item.Execution, item.Strike),
	})
}

func evaluateTechnicals(ticker string, t *technicals.Snapshot, emit func(market.Alert)) {
	switch {
	case t.RSI >= 80:
		emit(market.Alert{
			Ticker:    ticker,
			Type:      TypeRSIExtreme,
			Direction: market.Bearish,
			Severity:  market.SeverityMedium,
			Message:   fmt.Sprintf("%s RSI %.1f deeply overbought", ticker, t.RSI),
		})
	case t.RSI > 0 && t.RSI <= 20:
		emit(market.Alert{
			Ticker:    ticker,
			Type:      TypeRSIExtreme,
			Direction: market.Bullish,
			Severity:  market.SeverityMedium,
			Message:   fmt.Sprintf("%s RSI %.1f deeply oversold", ticker, t.RSI),
		})
	}

	// stacked EMAs with MACD agreeing is a trend-confirmation event
	aligned := t.LastClose > t.EMA20 && t.EMA20 > t.EMA50
	inverted := t.LastClose < t.EMA20 && t.EMA20 < t.EMA50
	switch {
	case aligned && t.MACD.Histogram > 0:
		emit(market.Alert{
			Ticker:    ticker,
			Type:      TypeTrendConfirm,
			Direction: market.Bullish,
			Severity:  market.SeverityLow,
			Message:   fmt.Sprintf("%s EMA stack + MACD confirm uptrend", ticker),
		})
	case inverted && t.MACD.Histogram < 0:
		emit(market.Alert{
			Ticker:    ticker,
			Type:      TypeTrendConfirm,
			Direction: market.Bearish,
			Severity:  market.SeverityLow,
			Message:   fmt.Sprintf("%s EMA stack + MACD confirm downtrend", ticker),
		})
	}

	if t.VolumeSpike {
		direction := market.Neutral
		if t.MACD.Histogram > 0 {
			direction = market.Bullish
		} else if t.MACD.Histogram < 0 {
			direction = market.Bearish
		}
		emit(market.Alert{
			Ticker:    ticker,
			Type:      TypeVolumeSpike,
			Direction: direction,
			Severity:  market.SeverityMedium,
			Message:   fmt.Sprintf("%s volume spike above 2x average", ticker),
		})
	}

	if len(t.Gaps) > 0 {
		gap := t.Gaps[len(t.Gaps)-1]
		if !gap.Filled {
			direction := market.Bullish
			if gap.Type == technicals.GapDown {
				direction = market.Bearish
			}
			emit(market.Alert{
				Ticker:    ticker,
				Type:      TypeGap,
				Direction: direction,
				Severity:  market.SeverityLow,
				Message:   fmt.Sprintf("%s unfilled %s of %.2f%%", ticker, gap.Type, gap.Percent),
			})
		}
	}
}

func evaluateDarkPool(p market.DarkPoolPrint, emit func(market.Alert)) {
	if p.Size < darkPoolShareFloor && p.Premium < darkPoolNotional {
		return
	}
	emit(market.Alert{
		Ticker:    p.Ticker,
		Type:      TypeDarkPoolPrint,
		Direction: p.Direction,
		Severity:  market.SeverityHigh,
		Message: fmt.Sprintf("%s dark pool %.0f shares ($%.1fM) at %.2f",
			p.Ticker, p.Size, p.Premium/1e6, p.Price),
	})
}
