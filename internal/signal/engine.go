package signal

import (
	"math"
	"sync"
	"time"

	"market-intel-bot/internal/logging"
	"market-intel-bot/internal/market"
)

// Per-feature score weights. Pinned in one table; tuning happens here, never
// inline at the call sites.
const (
	wRSIExtreme  = 2.0
	wRSILean     = 1.0
	wMACDHist    = 1.5
	wEMAAlign    = 2.0
	wBBEdge      = 1.0
	wFlowRatio   = 1.5
	wFlowHeavy   = 2.5
	wDarkPool    = 1.5
	wVolumeSpike = 1.0
	wADXTrend    = 1.0
	wDivergence  = 1.0 // scales the ±2 feature value
	wSqueeze     = 2.0
	wSentiment   = 1.0
	wVWAPDev     = 0.5
	wTapeRatio   = 1.0
	wCongress    = 1.0
	wTide        = 0.5
	wCandle      = 1.0

	// Confidence = clip(50 + 50*(bull-bear)/confidenceNorm, 0, maxConfidence)
	confidenceNorm = 15.0
	maxConfidence  = 95.0

	// Minimum score separation before a direction is called
	directionDeadband = 0.5

	// Ensemble blend weight on the rule confidence
	ensembleAlpha = 0.6
)

// Calibrator predicts a win probability from a feature vector. ok is false
// when no trained model is loaded.
type Calibrator interface {
	Predict(features []float64) (prob float64, ok bool)
}

// Engine fuses per-ticker state into a directional signal. It keeps the
// previous cycle's feature vector per ticker for the slope features.
type Engine struct {
	logger *logging.Logger
	cal    Calibrator

	mu   sync.Mutex
	prev map[string][]float64
}

// NewEngine creates an engine; cal may be nil when no model is trained yet
func NewEngine(cal Calibrator, logger *logging.Logger) *Engine {
	return &Engine{
		logger: logger.WithComponent("signal"),
		cal:    cal,
		prev:   map[string][]float64{},
	}
}

// Evaluate fuses the inputs for one ticker. Returns nil when there is no
// usable price to anchor a signal on.
func (e *Engine) Evaluate(in Inputs) *market.SignalResult {
	if in.Quote == nil || in.Quote.Last <= 0 {
		return nil
	}

	e.mu.Lock()
	prev := e.prev[in.Ticker]
	e.mu.Unlock()

	features := buildFeatures(in, prev)
	squeeze := ScoreSqueeze(in.Ticker, in.ShortInterest, in.FTDs)

	bull, bear, contribs := e.score(features, in, squeeze)

	direction := market.Neutral
	switch {
	case bull-bear >= directionDeadband:
		direction = market.Bullish
	case bear-bull >= directionDeadband:
		direction = market.Bearish
	}

	confidence := clamp(50+50*(bull-bear)/confidenceNorm, 0, maxConfidence)
	if direction == market.Bearish {
		confidence = clamp(50+50*(bear-bull)/confidenceNorm, 0, maxConfidence)
	}

	result := &market.SignalResult{
		Ticker:     in.Ticker,
		Direction:  direction,
		Confidence: confidence,
		BullScore:  bull,
		BearScore:  bear,
		Features:   features,
		Signals:    contribs,
		Squeeze:    squeeze,
		Timestamp:  time.Now().UTC(),
	}

	if direction != market.Neutral {
		atr := features[FeatATR]
		var pivots *marketPivots
		if in.Technicals != nil {
			pivots = &marketPivots{r1: in.Technicals.Pivots.R1, s1: in.Technicals.Pivots.S1}
		}
		result.Setup = GenerateSetup(SetupInputs{
			Ticker:     in.Ticker,
			Bias:       direction,
			Price:      in.Quote.Last,
			ATR:        atr,
			PivotR1:    pivotOr(pivots, true),
			PivotS1:    pivotOr(pivots, false),
			Confidence: confidence,
			Session:    in.Session,
			Regime:     in.Regime,
		})
		if result.Setup != nil {
			result.Horizon = result.Setup.Horizon
		}
	}

	result.Ensemble = e.blend(confidence, features)

	e.mu.Lock()
	e.prev[in.Ticker] = features
	e.mu.Unlock()

	return result
}

type marketPivots struct{ r1, s1 float64 }

func pivotOr(p *marketPivots, r1 bool) float64 {
	if p == nil {
		return 0
	}
	if r1 {
		return p.r1
	}
	return p.s1
}

// score accumulates bullPoints/bearPoints with the pinned weight table and
// records each non-zero contribution by name.
func (e *Engine) score(f []float64, in Inputs, squeeze *market.SqueezeScore) (bull, bear float64, contribs []market.NamedContribution) {
	trendScale := in.Regime.TrendWeightScale()

	add := func(name string, side market.Bias, pts float64) {
		if pts <= 0 {
			return
		}
		if side == market.Bullish {
			bull += pts
		} else {
			bear += pts
		}
		contribs = append(contribs, market.NamedContribution{Name: name, Side: side, Points: pts})
	}

	// RSI: oversold leans bullish, overbought bearish
	switch rsi := f[FeatRSI]; {
	case rsi > 0 && rsi < 30:
		add("rsi_oversold", market.Bullish, wRSIExtreme)
	case rsi >= 30 && rsi < 40:
		add("rsi_low", market.Bullish, wRSILean)
	case rsi > 70:
		add("rsi_overbought", market.Bearish, wRSIExtreme)
	case rsi > 60:
		add("rsi_high", market.Bearish, wRSILean)
	}

	if hist := f[FeatMACDHist]; hist != 0 {
		side := market.Bullish
		if hist < 0 {
			side = market.Bearish
		}
		add("macd_histogram", side, wMACDHist*trendScale)
	}

	if align := f[FeatEMAAlign]; align != 0 {
		side := market.Bullish
		if align < 0 {
			side = market.Bearish
		}
		add("ema_alignment", side, wEMAAlign*trendScale)
	}

	switch pos := f[FeatBBPosition]; {
	case pos > 0 && pos <= 0.05:
		add("bb_lower_band", market.Bullish, wBBEdge)
	case pos >= 0.95:
		add("bb_upper_band", market.Bearish, wBBEdge)
	}

	// options flow: call/put premium ratio
	switch ratio := f[FeatCallPutRatio]; {
	case ratio >= 3:
		add("flow_call_heavy", market.Bullish, wFlowHeavy)
	case ratio >= 1.5:
		add("flow_call_lean", market.Bullish, wFlowRatio)
	case ratio > 0 && ratio <= 1.0/3.0:
		add("flow_put_heavy", market.Bearish, wFlowHeavy)
	case ratio > 0 && ratio <= 1.0/1.5:
		add("flow_put_lean", market.Bearish, wFlowRatio)
	}

	switch dp := f[FeatDPDirection]; {
	case dp > 0.2:
		add("darkpool_accumulation", market.Bullish, wDarkPool)
	case dp < -0.2:
		add("darkpool_distribution", market.Bearish, wDarkPool)
	}

	if f[FeatVolumeSpike] > 0 {
		side := market.Bullish
		if f[FeatMACDHist] < 0 {
			side = market.Bearish
		}
		add("volume_spike", side, wVolumeSpike)
	}

	if f[FeatADX] >= 25 && in.Technicals != nil {
		switch in.Technicals.ADX.Direction {
		case market.Bullish:
			add("adx_trend", market.Bullish, wADXTrend*trendScale)
		case market.Bearish:
			add("adx_trend", market.Bearish, wADXTrend*trendScale)
		}
	}

	if div := f[FeatRSIDivergence]; div != 0 {
		side := market.Bullish
		if div < 0 {
			side = market.Bearish
		}
		add("rsi_divergence", side, math.Abs(div)*wDivergence)
	}

	if squeeze != nil && squeeze.Score >= 3 {
		add("squeeze_composite", market.Bullish, wSqueeze)
	}

	if s := f[FeatSentiment]; s != 0 {
		side := market.Bullish
		if s < 0 {
			side = market.Bearish
		}
		add("news_sentiment", side, math.Abs(s)*wSentiment)
	}

	if dev := f[FeatVWAPDev]; dev != 0 {
		side := market.Bullish
		if dev < 0 {
			side = market.Bearish
		}
		add("vwap_deviation", side, wVWAPDev)
	}

	if candle := f[FeatCandleScore]; candle != 0 {
		side := market.Bullish
		if candle < 0 {
			side = market.Bearish
		}
		add("candle_pattern", side, math.Min(math.Abs(candle), 2)*wCandle)
	}

	if in.Tape != nil {
		classified := in.Tape.BuyVolume + in.Tape.SellVolume
		if classified > 0 {
			switch ratio := in.Tape.BuyVolume / classified; {
			case ratio > 0.6:
				add("tape_buy_pressure", market.Bullish, wTapeRatio)
			case ratio < 0.4:
				add("tape_sell_pressure", market.Bearish, wTapeRatio)
			}
		}
	}

	if net := congressNet(in.Ticker, in.Congress); net != 0 {
		side := market.Bullish
		if net < 0 {
			side = market.Bearish
		}
		add("congress_activity", side, wCongress)
	}

	if in.Tide != nil {
		switch {
		case in.Tide.NetCallPremium > in.Tide.NetPutPremium:
			add("market_tide", market.Bullish, wTide)
		case in.Tide.NetPutPremium > in.Tide.NetCallPremium:
			add("market_tide", market.Bearish, wTide)
		}
	}

	return bull, bear, contribs
}

func congressNet(ticker string, trades []market.CongressTrade) int {
	net := 0
	for _, t := range trades {
		if t.Ticker != ticker {
			continue
		}
		switch t.Transaction {
		case "buy", "purchase":
			net++
		case "sell", "sale":
			net--
		}
	}
	return net
}

// blend folds the calibrator probability into the rule confidence when a
// model is loaded.
func (e *Engine) blend(ruleConfidence float64, features []float64) *market.EnsembleResult {
	res := &market.EnsembleResult{
		RuleConfidence: ruleConfidence,
		Blended:        math.Round(ruleConfidence),
	}
	if e.cal == nil {
		return res
	}
	prob, ok := e.cal.Predict(features)
	if !ok {
		return res
	}
	res.ModelPresent = true
	res.MLProbability = prob
	res.Blended = math.Round(ensembleAlpha*ruleConfidence + (1-ensembleAlpha)*prob*100)
	return res
}
