package technicals

import (
	"errors"

	"market-intel-bot/internal/market"
)

// MinBars is the minimum series length the analyzer accepts
const MinBars = 30

// ErrInsufficientData is returned when fewer than MinBars candles are supplied
var ErrInsufficientData = errors.New("technicals: insufficient candle data")

// Snapshot is the full per-ticker, per-timeframe technical picture. It is a
// pure function of the candle series and is recomputed, never mutated.
type Snapshot struct {
	Ticker    string `json:"ticker"`
	Timeframe string `json:"timeframe"`

	LastClose float64 `json:"last_close"`

	RSI       float64         `json:"rsi"`
	MACD      MACDResult      `json:"macd"`
	EMA9      float64         `json:"ema9"`
	EMA20     float64         `json:"ema20"`
	EMA50     float64         `json:"ema50"`
	SMA200    float64         `json:"sma200"`
	Bollinger BollingerResult `json:"bollinger"`
	ATR       float64         `json:"atr"`
	Pivots    PivotPoints     `json:"pivots"`
	Gaps      []Gap           `json:"gaps,omitempty"`
	ADX       ADXResult       `json:"adx"`

	Divergences []Divergence    `json:"divergences,omitempty"`
	Swings      SwingPoints     `json:"swings"`
	Fib         FibLevels       `json:"fib"`
	Patterns    []CandlePattern `json:"patterns,omitempty"`

	VolumeSpike bool `json:"volume_spike"`

	Bias       market.Bias `json:"bias"`
	BullPoints float64     `json:"bull_points"`
	BearPoints float64     `json:"bear_points"`
}

// Analyze computes the full technical snapshot for an ascending OHLCV series.
// Requires at least MinBars candles.
func Analyze(ticker, timeframe string, candles []market.Candle) (*Snapshot, error) {
	if len(candles) < MinBars {
		return nil, ErrInsufficientData
	}

	closes := extractCloses(candles)

	snap := &Snapshot{
		Ticker:    ticker,
		Timeframe: timeframe,
		LastClose: closes[len(closes)-1],

		RSI:       CalculateRSI(candles, 14),
		MACD:      CalculateMACD(candles, 12, 26, 9),
		EMA9:      CalculateEMA(candles, 9),
		EMA20:     CalculateEMA(candles, 20),
		EMA50:     CalculateEMA(candles, 50),
		SMA200:    CalculateSMA(candles, 200),
		Bollinger: CalculateBollinger(candles, 20, 2),
		ATR:       CalculateATR(candles, 14),
		Pivots:    CalculatePivots(candles),
		Gaps:      DetectGaps(candles, 5),
		ADX:       CalculateADX(candles, 14),

		Swings:   FindSwingPoints(candles, 5),
		Patterns: DetectPatterns(candles),

		VolumeSpike: IsVolumeSpike(candles, 20, 2.0),
	}

	fibDir := FibUp
	if snap.Swings.HighIndex < snap.Swings.LowIndex {
		fibDir = FibDown
	}
	snap.Fib = CalculateFibLevels(snap.Swings.High, snap.Swings.Low, fibDir)

	// Align the RSI series to its closes for divergence detection
	rsi := rsiSeries(closes, 14)
	if len(rsi) > 0 {
		snap.Divergences = DetectRSIDivergences(closes[len(closes)-len(rsi):], rsi)
	}

	snap.scoreBias()

	return snap, nil
}

// Bias point weights. Pinned here so the accumulation below stays literal-free.
const (
	biasRSIBand       = 1.0
	biasRSIExtreme    = 1.0
	biasEMAAlignment  = 2.0
	biasMACDHistogram = 1.0
	biasVolumeSpike   = 1.0
	biasADXAligned    = 1.0
	biasDivergenceReg = 2.0
	biasDivergenceHid = 1.0
)

// scoreBias accumulates bull/bear points from the computed indicators and
// assigns the overall bias. Bullish when bull > bear+1, bearish when
// bear > bull+1, else neutral.
func (s *Snapshot) scoreBias() {
	bull, bear := 0.0, 0.0

	// RSI side of 50
	if s.RSI > 50 {
		bull += biasRSIBand
	} else if s.RSI < 50 {
		bear += biasRSIBand
	}

	// RSI extremes lean toward mean reversion
	if s.RSI >= 70 {
		bear += biasRSIExtreme
	} else if s.RSI <= 30 {
		bull += biasRSIExtreme
	}

	// EMA alignment
	if s.LastClose > s.EMA20 && s.EMA20 > s.EMA50 {
		bull += biasEMAAlignment
	} else if s.LastClose < s.EMA20 && s.EMA20 < s.EMA50 {
		bear += biasEMAAlignment
	}

	// MACD histogram sign
	if s.MACD.Histogram > 0 {
		bull += biasMACDHistogram
	} else if s.MACD.Histogram < 0 {
		bear += biasMACDHistogram
	}

	// ADX confirms the DI direction once trending
	if s.ADX.ADX >= 25 {
		switch s.ADX.Direction {
		case market.Bullish:
			bull += biasADXAligned
		case market.Bearish:
			bear += biasADXAligned
		}
	}

	// Divergences
	for _, d := range s.Divergences {
		switch d.Type {
		case RegularBullish:
			bull += biasDivergenceReg
		case RegularBearish:
			bear += biasDivergenceReg
		case HiddenBullish:
			bull += biasDivergenceHid
		case HiddenBearish:
			bear += biasDivergenceHid
		}
	}

	// A volume spike reinforces whichever side already leads
	if s.VolumeSpike {
		if bull > bear {
			bull += biasVolumeSpike
		} else if bear > bull {
			bear += biasVolumeSpike
		}
	}

	s.BullPoints = bull
	s.BearPoints = bear

	switch {
	case bull > bear+1:
		s.Bias = market.Bullish
	case bear > bull+1:
		s.Bias = market.Bearish
	default:
		s.Bias = market.Neutral
	}
}
