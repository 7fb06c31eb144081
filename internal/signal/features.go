package signal

import (
	"math"
	"strings"

	"market-intel-bot/internal/market"
	"market-intel-bot/internal/technicals"
	"market-intel-bot/internal/tickclient"
)

// Fixed feature-vector layout. Downstream calibrators are trained against
// these indices; reordering breaks every persisted model.
const (
	FeatRSI = iota
	FeatMACDHist
	FeatEMAAlign
	FeatBBPosition
	FeatATR
	FeatCallPutRatio
	FeatDPDirection
	FeatIVRank
	FeatShortInterest
	FeatVolumeSpike
	FeatBBBandwidth
	FeatVWAPDev
	FeatRegime
	FeatGammaProximity
	FeatIVSkew
	FeatCandleScore
	FeatSentiment
	FeatADX
	FeatRSIDivergence
	FeatFibProximity
	FeatRSISlope
	FeatMACDAccel
	FeatATRChange
	FeatRSIxEMA
	FeatVolxMACD

	FeatureCount
)

// Inputs is everything the engine can see for one ticker. Any field may be
// nil or empty; a missing feed contributes nothing.
type Inputs struct {
	Ticker string

	Quote      *market.Quote
	Technicals *technicals.Snapshot

	Flow         []market.FlowItem
	DarkPool     []market.DarkPoolPrint
	GEX          *market.GEXProfile
	OptionVolume *market.OptionVolume
	IVRank       *market.IVRank

	ShortInterest *market.ShortInterest
	FTDs          []market.FTDRecord

	Congress []market.CongressTrade
	Insider  []market.InsiderTransaction
	News     []market.NewsItem

	Tide *market.MarketTide
	Tape *tickclient.Stats

	Regime  Regime
	Session string
}

// buildFeatures folds the inputs into the fixed vector. prev is the previous
// cycle's vector for the same ticker (nil on the first cycle); the slope and
// acceleration slots difference against it.
func buildFeatures(in Inputs, prev []float64) []float64 {
	f := make([]float64, FeatureCount)

	if t := in.Technicals; t != nil {
		f[FeatRSI] = t.RSI
		f[FeatMACDHist] = t.MACD.Histogram
		f[FeatEMAAlign] = emaAlignment(t)
		f[FeatBBPosition] = t.Bollinger.Position
		f[FeatATR] = t.ATR
		f[FeatVolumeSpike] = boolToFloat(t.VolumeSpike)
		f[FeatBBBandwidth] = t.Bollinger.Bandwidth
		f[FeatADX] = t.ADX.ADX
		f[FeatRSIDivergence] = divergenceScore(t.Divergences)
		f[FeatCandleScore] = candleScore(t.Patterns)
		f[FeatFibProximity] = fibProximity(t)
	}

	f[FeatCallPutRatio] = callPutRatio(in)
	f[FeatDPDirection] = darkPoolDirection(in.DarkPool)
	if in.IVRank != nil {
		f[FeatIVRank] = in.IVRank.Rank
	}
	if si := in.ShortInterest; si != nil && si.PercentOfFloat <= 100 {
		f[FeatShortInterest] = si.PercentOfFloat
	}
	if q := in.Quote; q != nil && q.VWAP > 0 && q.Last > 0 {
		f[FeatVWAPDev] = (q.Last - q.VWAP) / q.VWAP * 100
	}
	f[FeatRegime] = regimeCode(in.Regime)
	f[FeatGammaProximity] = gammaProximity(in)
	f[FeatIVSkew] = ivSkew(in.OptionVolume)
	f[FeatSentiment] = newsSentiment(in.Ticker, in.News)

	if len(prev) == FeatureCount {
		f[FeatRSISlope] = f[FeatRSI] - prev[FeatRSI]
		f[FeatMACDAccel] = f[FeatMACDHist] - prev[FeatMACDHist]
		f[FeatATRChange] = f[FeatATR] - prev[FeatATR]
	}

	f[FeatRSIxEMA] = (f[FeatRSI] - 50) / 50 * f[FeatEMAAlign]
	f[FeatVolxMACD] = f[FeatVolumeSpike] * sign(f[FeatMACDHist])

	return f
}

// emaAlignment is +1 when close > EMA20 > EMA50, -1 for the inverse stack
func emaAlignment(t *technicals.Snapshot) float64 {
	switch {
	case t.LastClose > t.EMA20 && t.EMA20 > t.EMA50:
		return 1
	case t.LastClose < t.EMA20 && t.EMA20 < t.EMA50:
		return -1
	}
	return 0
}

// callPutRatio prefers the vendor's premium summary, falls back to summing
// the recent flow prints. Capped at 5 so a zero-put day cannot blow up the
// calibrator.
func callPutRatio(in Inputs) float64 {
	var call, put float64
	if ov := in.OptionVolume; ov != nil && (ov.CallPremium > 0 || ov.PutPremium > 0) {
		call, put = ov.CallPremium, ov.PutPremium
	} else {
		for _, item := range in.Flow {
			if item.ContractType == "call" {
				call += item.Premium
			} else {
				put += item.Premium
			}
		}
	}
	if call == 0 && put == 0 {
		return 1
	}
	if put == 0 {
		return 5
	}
	return math.Min(call/put, 5)
}

// darkPoolDirection nets classified notional into [-1,1]
func darkPoolDirection(prints []market.DarkPoolPrint) float64 {
	var bull, bear, total float64
	for _, p := range prints {
		total += p.Premium
		switch p.Direction {
		case market.Bullish:
			bull += p.Premium
		case market.Bearish:
			bear += p.Premium
		}
	}
	if total == 0 {
		return 0
	}
	return (bull - bear) / total
}

// gammaProximity is the percent distance from spot to the largest positive
// net-GEX strike (the dominant support wall), negated when the wall sits
// above spot. Zero when no profile or no positive strike exists.
func gammaProximity(in Inputs) float64 {
	if in.GEX == nil || in.Quote == nil || in.Quote.Last <= 0 {
		return 0
	}
	var wall float64
	var wallNet float64
	for _, row := range in.GEX.Rows {
		if net := row.Net(); net > wallNet {
			wallNet = net
			wall = row.Strike
		}
	}
	if wall == 0 {
		return 0
	}
	return (in.Quote.Last - wall) / in.Quote.Last * 100
}

// ivSkew nets directional premium into [-1,1]; positive means bearish-heavy
func ivSkew(ov *market.OptionVolume) float64 {
	if ov == nil {
		return 0
	}
	total := ov.BullishPrem + ov.BearishPrem
	if total == 0 {
		return 0
	}
	return (ov.BearishPrem - ov.BullishPrem) / total
}

func candleScore(patterns []technicals.CandlePattern) float64 {
	var score float64
	for _, p := range patterns {
		switch p.Direction {
		case market.Bullish:
			score++
		case market.Bearish:
			score--
		}
	}
	return score
}

func divergenceScore(divs []technicals.Divergence) float64 {
	var score float64
	for _, d := range divs {
		switch d.Type {
		case technicals.RegularBullish:
			score += 2
		case technicals.RegularBearish:
			score -= 2
		case technicals.HiddenBullish:
			score++
		case technicals.HiddenBearish:
			score--
		}
	}
	return clamp(score, -2, 2)
}

// fibProximity is 1 when price sits within 1% of the 61.8 retracement, the
// classic continuation entry, else 0.
func fibProximity(t *technicals.Snapshot) float64 {
	level, ok := t.Fib.Retracements["61.8"]
	if !ok || level <= 0 || t.LastClose <= 0 {
		return 0
	}
	if math.Abs(t.LastClose-level)/t.LastClose <= 0.01 {
		return 1
	}
	return 0
}

func newsSentiment(ticker string, items []market.NewsItem) float64 {
	var score, n float64
	for _, item := range items {
		if !mentions(item, ticker) {
			continue
		}
		switch strings.ToLower(item.Sentiment) {
		case "positive", "bullish":
			score++
			n++
		case "negative", "bearish":
			score--
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return score / n
}

func mentions(item market.NewsItem, ticker string) bool {
	for _, t := range item.Tickers {
		if t == ticker {
			return true
		}
	}
	return false
}

func regimeCode(r Regime) float64 {
	switch r {
	case RegimeTrendingUp:
		return 1
	case RegimeTrendingDown:
		return -1
	case RegimeVolatile:
		return 2
	case RegimeRangebound:
		return 0.5
	}
	return 0
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
