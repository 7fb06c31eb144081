package technicals

import (
	"math"

	"market-intel-bot/internal/market"
)

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// CalculateSMA calculates the trailing Simple Moving Average of closes
func CalculateSMA(candles []market.Candle, period int) float64 {
	if len(candles) < period {
		return 0
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}

	return sum / float64(period)
}

// CalculateEMA calculates the Exponential Moving Average of closes.
// Seeded with the SMA of the first `period` closes, then the standard
// recursive update with k = 2/(period+1).
func CalculateEMA(candles []market.Candle, period int) float64 {
	closes := extractCloses(candles)
	series := emaSeries(closes, period)
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// emaSeries returns the EMA series over vals. The first output value is the
// SMA seed of vals[:period]; output length is len(vals)-period+1.
func emaSeries(vals []float64, period int) []float64 {
	if period <= 0 || len(vals) < period {
		return nil
	}

	k := 2.0 / float64(period+1)

	sum := 0.0
	for _, v := range vals[:period] {
		sum += v
	}
	ema := sum / float64(period)

	out := make([]float64, 0, len(vals)-period+1)
	out = append(out, ema)
	for i := period; i < len(vals); i++ {
		ema = vals[i]*k + ema*(1-k)
		out = append(out, ema)
	}

	return out
}

// ============================================================================
// RSI (Wilder smoothing)
// ============================================================================

// CalculateRSI returns the latest RSI value
func CalculateRSI(candles []market.Candle, period int) float64 {
	series := rsiSeries(extractCloses(candles), period)
	if len(series) == 0 {
		return 50.0
	}
	return series[len(series)-1]
}

// rsiSeries computes the Wilder-smoothed RSI series. The first value uses
// simple averages of gains/losses over the first `period` deltas; subsequent
// values use Wilder's recursive update. rsiSeries[i] corresponds to
// closes[i+period].
func rsiSeries(closes []float64, period int) []float64 {
	if len(closes) < period+1 {
		return nil
	}

	avgGain := 0.0
	avgLoss := 0.0
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	out := make([]float64, 0, len(closes)-period)
	out = append(out, rsiFromAverages(avgGain, avgLoss))

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain := 0.0
		loss := 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out = append(out, rsiFromAverages(avgGain, avgLoss))
	}

	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ============================================================================
// MACD
// ============================================================================

// MACDResult holds MACD line, signal line, and histogram values
type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// CalculateMACD calculates MACD(fast, slow, signal). The MACD line is
// EMA(fast) - EMA(slow) with the longer EMA truncating the shorter; the signal
// line is the EMA(signalPeriod) of the MACD line series.
func CalculateMACD(candles []market.Candle, fastPeriod, slowPeriod, signalPeriod int) MACDResult {
	closes := extractCloses(candles)
	if len(closes) < slowPeriod {
		return MACDResult{}
	}

	fast := emaSeries(closes, fastPeriod)
	slow := emaSeries(closes, slowPeriod)

	// Align: the slow EMA starts later, truncate the fast series to match
	offset := len(fast) - len(slow)
	line := make([]float64, len(slow))
	for i := range slow {
		line[i] = fast[i+offset] - slow[i]
	}

	macd := line[len(line)-1]

	signalSeries := emaSeries(line, signalPeriod)
	signal := macd
	if len(signalSeries) > 0 {
		signal = signalSeries[len(signalSeries)-1]
	}

	return MACDResult{
		MACD:      macd,
		Signal:    signal,
		Histogram: macd - signal,
	}
}

// ============================================================================
// ATR (true range, Wilder smoothing)
// ============================================================================

// CalculateATR calculates the Wilder-smoothed Average True Range
func CalculateATR(candles []market.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 0
	}

	trs := trueRanges(candles)

	atr := 0.0
	for _, tr := range trs[:period] {
		atr += tr
	}
	atr /= float64(period)

	for i := period; i < len(trs); i++ {
		atr = (atr*float64(period-1) + trs[i]) / float64(period)
	}

	return atr
}

// trueRanges returns the TR series; trueRanges[i] covers candles[i+1]
func trueRanges(candles []market.Candle) []float64 {
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		h := candles[i].High
		l := candles[i].Low
		pc := candles[i-1].Close
		tr := math.Max(h-l, math.Max(math.Abs(h-pc), math.Abs(l-pc)))
		out = append(out, tr)
	}
	return out
}

// ============================================================================
// BOLLINGER BANDS
// ============================================================================

// BollingerResult holds Bollinger Band values plus the derived position and
// bandwidth of the latest close
type BollingerResult struct {
	Upper     float64 `json:"upper"`
	Middle    float64 `json:"middle"`
	Lower     float64 `json:"lower"`
	Position  float64 `json:"position"`  // (last-lower)/(upper-lower), clipped to [0,1]
	Bandwidth float64 `json:"bandwidth"` // (upper-lower)/middle * 100
}

// CalculateBollinger calculates Bollinger Bands over the closing prices
func CalculateBollinger(candles []market.Candle, period int, stdDevMult float64) BollingerResult {
	if len(candles) < period {
		return BollingerResult{Position: 0.5}
	}

	middle := CalculateSMA(candles, period)

	variance := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		diff := candles[i].Close - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	upper := middle + stdDev*stdDevMult
	lower := middle - stdDev*stdDevMult

	last := candles[len(candles)-1].Close
	position := 0.5
	if upper > lower {
		position = (last - lower) / (upper - lower)
		if position < 0 {
			position = 0
		} else if position > 1 {
			position = 1
		}
	}

	bandwidth := 0.0
	if middle != 0 {
		bandwidth = (upper - lower) / middle * 100
	}

	return BollingerResult{
		Upper:     upper,
		Middle:    middle,
		Lower:     lower,
		Position:  position,
		Bandwidth: bandwidth,
	}
}

// ============================================================================
// ADX / DMI (Wilder smoothing)
// ============================================================================

// TrendStrength buckets the ADX reading
type TrendStrength string

const (
	TrendStrong TrendStrength = "STRONG"
	TrendWeak   TrendStrength = "WEAK"
	NoTrend     TrendStrength = "NO_TREND"
)

// ADXResult holds the ADX value with directional components
type ADXResult struct {
	ADX       float64       `json:"adx"`
	PlusDI    float64       `json:"plus_di"`
	MinusDI   float64       `json:"minus_di"`
	Strength  TrendStrength `json:"strength"`
	Direction market.Bias   `json:"direction"`
}

// CalculateADX computes ADX with +DI/-DI using Wilder DM/TR smoothing.
// Strength buckets: >=30 STRONG, >=20 WEAK, else NO_TREND. Direction follows
// the sign of +DI minus -DI.
func CalculateADX(candles []market.Candle, period int) ADXResult {
	if len(candles) < 2*period+1 {
		return ADXResult{Strength: NoTrend, Direction: market.Neutral}
	}

	n := len(candles)
	plusDMs := make([]float64, 0, n-1)
	minusDMs := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		up := candles[i].High - candles[i-1].High
		down := candles[i-1].Low - candles[i].Low
		plus, minus := 0.0, 0.0
		if up > down && up > 0 {
			plus = up
		}
		if down > up && down > 0 {
			minus = down
		}
		plusDMs = append(plusDMs, plus)
		minusDMs = append(minusDMs, minus)
	}
	trs := trueRanges(candles)

	// Wilder smoothing: seed with plain sums, then sm = sm - sm/period + cur
	smPlus, smMinus, smTR := 0.0, 0.0, 0.0
	for i := 0; i < period; i++ {
		smPlus += plusDMs[i]
		smMinus += minusDMs[i]
		smTR += trs[i]
	}

	var dxs []float64
	var plusDI, minusDI float64
	for i := period; i < len(trs); i++ {
		smPlus = smPlus - smPlus/float64(period) + plusDMs[i]
		smMinus = smMinus - smMinus/float64(period) + minusDMs[i]
		smTR = smTR - smTR/float64(period) + trs[i]

		if smTR == 0 {
			continue
		}
		plusDI = 100 * smPlus / smTR
		minusDI = 100 * smMinus / smTR

		sum := plusDI + minusDI
		if sum == 0 {
			continue
		}
		dxs = append(dxs, 100*math.Abs(plusDI-minusDI)/sum)
	}

	if len(dxs) < period {
		return ADXResult{PlusDI: plusDI, MinusDI: minusDI, Strength: NoTrend, Direction: market.Neutral}
	}

	adx := 0.0
	for _, dx := range dxs[:period] {
		adx += dx
	}
	adx /= float64(period)
	for i := period; i < len(dxs); i++ {
		adx = (adx*float64(period-1) + dxs[i]) / float64(period)
	}

	strength := NoTrend
	if adx >= 30 {
		strength = TrendStrong
	} else if adx >= 20 {
		strength = TrendWeak
	}

	direction := market.Neutral
	if plusDI > minusDI {
		direction = market.Bullish
	} else if minusDI > plusDI {
		direction = market.Bearish
	}

	return ADXResult{
		ADX:       adx,
		PlusDI:    plusDI,
		MinusDI:   minusDI,
		Strength:  strength,
		Direction: direction,
	}
}

// ============================================================================
// VOLUME
// ============================================================================

// CalculateAverageVolume calculates average volume over a period
func CalculateAverageVolume(candles []market.Candle, period int) float64 {
	if len(candles) == 0 {
		return 0
	}
	if len(candles) < period {
		period = len(candles)
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Volume
	}

	return sum / float64(period)
}

// IsVolumeSpike checks if the last bar's volume is at least multiplier times
// the trailing average
func IsVolumeSpike(candles []market.Candle, period int, multiplier float64) bool {
	if len(candles) < period+1 {
		return false
	}

	avg := CalculateAverageVolume(candles[:len(candles)-1], period)
	if avg == 0 {
		return false
	}

	return candles[len(candles)-1].Volume >= avg*multiplier
}

func extractCloses(candles []market.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
