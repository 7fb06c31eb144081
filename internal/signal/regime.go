package signal

import "market-intel-bot/internal/market"

// Regime is the market-wide backdrop classification
type Regime string

const (
	RegimeTrendingUp   Regime = "TRENDING_UP"
	RegimeTrendingDown Regime = "TRENDING_DOWN"
	RegimeVolatile     Regime = "VOLATILE"
	RegimeRangebound   Regime = "RANGEBOUND"
	RegimeUnknown      Regime = "UNKNOWN"
)

// RegimeInputs feed the classifier. Zero values mean "feed missing".
type RegimeInputs struct {
	VIX      float64     // spike/volatility index reading
	SPYTrend market.Bias // bias of the index technicals
	SPYADX   float64     // trend strength of the index
	Breadth  float64     // fraction of watchlist with bullish bias, 0..1
}

const (
	vixVolatileLevel = 28.0
	trendADXFloor    = 20.0
	breadthBullFloor = 0.55
	breadthBearCeil  = 0.45
)

// ClassifyRegime is a pure function of its inputs: VIX dominates, then an
// ADX-confirmed index trend with agreeing breadth, else rangebound. With no
// usable feeds at all the regime is unknown.
func ClassifyRegime(in RegimeInputs) Regime {
	if in.VIX == 0 && in.SPYTrend == "" && in.Breadth == 0 {
		return RegimeUnknown
	}
	if in.VIX >= vixVolatileLevel {
		return RegimeVolatile
	}
	if in.SPYADX >= trendADXFloor {
		switch {
		case in.SPYTrend == market.Bullish && in.Breadth >= breadthBullFloor:
			return RegimeTrendingUp
		case in.SPYTrend == market.Bearish && in.Breadth <= breadthBearCeil:
			return RegimeTrendingDown
		}
	}
	return RegimeRangebound
}

// StopMultiplier is the regime's ATR stop width. Volatile tape gets more
// room, trending tape trails tighter.
func (r Regime) StopMultiplier() float64 {
	switch r {
	case RegimeVolatile:
		return 0.75
	case RegimeRangebound:
		return 0.6
	}
	return 0.5
}

// TrendWeightScale scales trend-following contributions: boosted in a
// confirmed trend, damped when the tape is volatile.
func (r Regime) TrendWeightScale() float64 {
	switch r {
	case RegimeTrendingUp, RegimeTrendingDown:
		return 1.2
	case RegimeVolatile:
		return 0.8
	}
	return 1.0
}
