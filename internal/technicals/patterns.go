package technicals

import (
	"math"

	"market-intel-bot/internal/market"
)

// PatternType identifies a candlestick pattern
type PatternType string

const (
	PatternDoji             PatternType = "DOJI"
	PatternHammer           PatternType = "HAMMER"
	PatternShootingStar     PatternType = "SHOOTING_STAR"
	PatternBullishEngulfing PatternType = "BULLISH_ENGULFING"
	PatternBearishEngulfing PatternType = "BEARISH_ENGULFING"
	PatternMorningStar      PatternType = "MORNING_STAR"
	PatternEveningStar      PatternType = "EVENING_STAR"
)

// CandlePattern is a detected pattern at the tail of a series
type CandlePattern struct {
	Type      PatternType `json:"type"`
	Direction market.Bias `json:"direction"`
}

const dojiBodyRatio = 0.1

// DetectPatterns evaluates the last bars of the series for single, double, and
// triple candle patterns. Patterns are only reported for the most recent bars
// since stale patterns have no signal value.
func DetectPatterns(candles []market.Candle) []CandlePattern {
	var found []CandlePattern
	n := len(candles)
	if n == 0 {
		return found
	}

	last := candles[n-1]

	if isDoji(last) {
		found = append(found, CandlePattern{Type: PatternDoji, Direction: market.Neutral})
	}
	if isHammer(last) {
		found = append(found, CandlePattern{Type: PatternHammer, Direction: market.Bullish})
	}
	if isShootingStar(last) {
		found = append(found, CandlePattern{Type: PatternShootingStar, Direction: market.Bearish})
	}

	if n >= 2 {
		prev := candles[n-2]
		if isBullishEngulfing(prev, last) {
			found = append(found, CandlePattern{Type: PatternBullishEngulfing, Direction: market.Bullish})
		}
		if isBearishEngulfing(prev, last) {
			found = append(found, CandlePattern{Type: PatternBearishEngulfing, Direction: market.Bearish})
		}
	}

	if n >= 3 {
		c1, c2, c3 := candles[n-3], candles[n-2], candles[n-1]
		if isMorningStar(c1, c2, c3) {
			found = append(found, CandlePattern{Type: PatternMorningStar, Direction: market.Bullish})
		}
		if isEveningStar(c1, c2, c3) {
			found = append(found, CandlePattern{Type: PatternEveningStar, Direction: market.Bearish})
		}
	}

	return found
}

func body(c market.Candle) float64 {
	return math.Abs(c.Close - c.Open)
}

func upperWick(c market.Candle) float64 {
	return c.High - math.Max(c.Open, c.Close)
}

func lowerWick(c market.Candle) float64 {
	return math.Min(c.Open, c.Close) - c.Low
}

func isBullishBody(c market.Candle) bool {
	return c.Close > c.Open
}

func isBearishBody(c market.Candle) bool {
	return c.Close < c.Open
}

// isDoji: body under 10% of the bar's range
func isDoji(c market.Candle) bool {
	rng := c.High - c.Low
	if rng == 0 {
		return false
	}
	return body(c)/rng < dojiBodyRatio
}

// isHammer: bullish body, lower wick over twice the body, minimal upper wick
func isHammer(c market.Candle) bool {
	b := body(c)
	if b == 0 {
		return false
	}
	return isBullishBody(c) && lowerWick(c) > 2*b && upperWick(c) < 0.5*b
}

// isShootingStar: bearish body, upper wick over twice the body, minimal lower wick
func isShootingStar(c market.Candle) bool {
	b := body(c)
	if b == 0 {
		return false
	}
	return isBearishBody(c) && upperWick(c) > 2*b && lowerWick(c) < 0.5*b
}

// isBullishEngulfing: prior bearish body fully contained by the current
// bullish body
func isBullishEngulfing(prev, cur market.Candle) bool {
	return isBearishBody(prev) && isBullishBody(cur) &&
		cur.Open <= prev.Close && cur.Close >= prev.Open
}

// isBearishEngulfing: prior bullish body fully contained by the current
// bearish body
func isBearishEngulfing(prev, cur market.Candle) bool {
	return isBullishBody(prev) && isBearishBody(cur) &&
		cur.Open >= prev.Close && cur.Close <= prev.Open
}

// isMorningStar: bearish bar, then a doji body gapping below it, then a
// bullish bar closing above the midpoint of the first body
func isMorningStar(c1, c2, c3 market.Candle) bool {
	if !isBearishBody(c1) || !isBullishBody(c3) {
		return false
	}
	if body(c2) >= body(c1)*0.5 {
		return false
	}
	mid := (c1.Open + c1.Close) / 2
	gapBelow := math.Max(c2.Open, c2.Close) <= c1.Close
	return gapBelow && c3.Close > mid
}

// isEveningStar: the bearish mirror of the morning star
func isEveningStar(c1, c2, c3 market.Candle) bool {
	if !isBullishBody(c1) || !isBearishBody(c3) {
		return false
	}
	if body(c2) >= body(c1)*0.5 {
		return false
	}
	mid := (c1.Open + c1.Close) / 2
	gapAbove := math.Min(c2.Open, c2.Close) >= c1.Close
	return gapAbove && c3.Close < mid
}
