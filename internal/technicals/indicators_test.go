package technicals

import (
	"math"
	"testing"
	"time"

	"market-intel-bot/internal/market"
)

// risingCandles builds n bars with closes rising linearly from start to end
// and constant volume
func risingCandles(n int, start, end, volume float64) []market.Candle {
	candles := make([]market.Candle, n)
	step := (end - start) / float64(n-1)
	for i := 0; i < n; i++ {
		c := start + step*float64(i)
		candles[i] = market.Candle{
			Time:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Open:   c - step/2,
			High:   c + step/2,
			Low:    c - step,
			Close:  c,
			Volume: volume,
		}
	}
	return candles
}

func flatCandles(n int, price float64) []market.Candle {
	candles := make([]market.Candle, n)
	for i := 0; i < n; i++ {
		candles[i] = market.Candle{
			Open:   price,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: 1e6,
		}
	}
	return candles
}

// TestSMA verifies the trailing mean over the last period closes
func TestSMA(t *testing.T) {
	candles := make([]market.Candle, 5)
	for i := range candles {
		candles[i].Close = float64(i + 1)
	}

	if got := CalculateSMA(candles, 5); got != 3 {
		t.Errorf("SMA(1..5, 5) = %v, want 3", got)
	}
	if got := CalculateSMA(candles, 2); got != 4.5 {
		t.Errorf("SMA(1..5, 2) = %v, want 4.5", got)
	}
	if got := CalculateSMA(candles, 10); got != 0 {
		t.Errorf("SMA with insufficient data = %v, want 0", got)
	}
}

// TestEMASeedsWithSMA verifies the EMA equals the SMA when the series length
// equals the period
func TestEMASeedsWithSMA(t *testing.T) {
	candles := make([]market.Candle, 10)
	for i := range candles {
		candles[i].Close = float64(i * 2)
	}

	ema := CalculateEMA(candles, 10)
	sma := CalculateSMA(candles, 10)
	if math.Abs(ema-sma) > 1e-9 {
		t.Errorf("EMA seed = %v, want SMA %v", ema, sma)
	}
}

// TestRSIExtremes verifies the Wilder RSI saturates at 100 on all-gains and 0
// on all-losses
func TestRSIExtremes(t *testing.T) {
	up := risingCandles(40, 100, 140, 1e6)
	if got := CalculateRSI(up, 14); got != 100 {
		t.Errorf("RSI of monotonic rise = %v, want 100", got)
	}

	down := risingCandles(40, 140, 100, 1e6)
	if got := CalculateRSI(down, 14); got != 0 {
		t.Errorf("RSI of monotonic fall = %v, want 0", got)
	}
}

// TestMACDHistogram verifies the histogram is the line minus the signal and
// stays positive in a steady uptrend
func TestMACDHistogram(t *testing.T) {
	candles := risingCandles(60, 100, 160, 1e6)
	macd := CalculateMACD(candles, 12, 26, 9)

	if math.Abs(macd.Histogram-(macd.MACD-macd.Signal)) > 1e-9 {
		t.Errorf("histogram %v != line %v - signal %v", macd.Histogram, macd.MACD, macd.Signal)
	}
	if macd.MACD <= 0 {
		t.Errorf("MACD line in uptrend = %v, want > 0", macd.MACD)
	}
	if macd.Histogram <= 0 {
		t.Errorf("MACD histogram in uptrend = %v, want > 0", macd.Histogram)
	}
}

// TestATRConstantRange verifies the Wilder ATR converges to the bar range for
// a constant-range series
func TestATRConstantRange(t *testing.T) {
	candles := flatCandles(40, 100)
	atr := CalculateATR(candles, 14)
	if math.Abs(atr-2) > 1e-9 {
		t.Errorf("ATR of constant 2-point range = %v, want 2", atr)
	}
}

// TestBollingerFlat verifies degenerate bands on a flat series
func TestBollingerFlat(t *testing.T) {
	candles := flatCandles(30, 50)
	bb := CalculateBollinger(candles, 20, 2)

	if bb.Upper != bb.Lower || bb.Middle != 50 {
		t.Errorf("flat series bands = %+v, want collapsed at 50", bb)
	}
	if bb.Position != 0.5 {
		t.Errorf("flat series position = %v, want 0.5", bb.Position)
	}
	if bb.Bandwidth != 0 {
		t.Errorf("flat series bandwidth = %v, want 0", bb.Bandwidth)
	}
}

// TestBollingerPositionClipped verifies the position stays within [0,1]
func TestBollingerPositionClipped(t *testing.T) {
	candles := flatCandles(30, 100)
	// Spike the last close far above the band
	candles[len(candles)-1].Close = 500

	bb := CalculateBollinger(candles, 20, 2)
	if bb.Position < 0 || bb.Position > 1 {
		t.Errorf("position = %v, want within [0,1]", bb.Position)
	}
}

// TestADXTrend verifies ADX reports a strong bullish trend on a steady rise
func TestADXTrend(t *testing.T) {
	candles := risingCandles(60, 100, 160, 1e6)
	adx := CalculateADX(candles, 14)

	if adx.PlusDI <= adx.MinusDI {
		t.Errorf("+DI %v should exceed -DI %v in an uptrend", adx.PlusDI, adx.MinusDI)
	}
	if adx.Direction != market.Bullish {
		t.Errorf("direction = %v, want BULLISH", adx.Direction)
	}
	if adx.Strength != TrendStrong {
		t.Errorf("strength = %v, want STRONG", adx.Strength)
	}
}

// TestVolumeSpike verifies detection against the trailing average
func TestVolumeSpike(t *testing.T) {
	candles := flatCandles(30, 100)
	if IsVolumeSpike(candles, 20, 2.0) {
		t.Error("constant volume should not be a spike")
	}

	candles[len(candles)-1].Volume = 3e6
	if !IsVolumeSpike(candles, 20, 2.0) {
		t.Error("3x volume should be a spike")
	}
}

// TestPivots verifies the classic pivot formulas on the last bar
func TestPivots(t *testing.T) {
	candles := []market.Candle{{High: 102, Low: 98, Close: 100}}
	p := CalculatePivots(candles)

	checks := map[string][2]float64{
		"PP": {p.PP, 100},
		"R1": {p.R1, 102},
		"S1": {p.S1, 98},
		"R2": {p.R2, 104},
		"S2": {p.S2, 96},
		"R3": {p.R3, 106},
		"S3": {p.S3, 94},
	}
	for name, pair := range checks {
		if math.Abs(pair[0]-pair[1]) > 1e-9 {
			t.Errorf("%s = %v, want %v", name, pair[0], pair[1])
		}
	}
}

// TestDetectGaps verifies the 0.5% gap threshold and direction labels
func TestDetectGaps(t *testing.T) {
	candles := flatCandles(10, 100)
	// 1% gap up on bar 5
	candles[5].Open = 101
	candles[5].High = 102
	// 0.2% move on bar 7, below threshold
	candles[7].Open = 100.2

	gaps := DetectGaps(candles, 5)
	if len(gaps) != 1 {
		t.Fatalf("got %d gaps, want 1", len(gaps))
	}
	if gaps[0].Type != GapUp || gaps[0].Index != 5 {
		t.Errorf("gap = %+v, want GAP_UP at index 5", gaps[0])
	}
}

// TestFibLevels verifies retracement anchors and extension projection for an
// up move
func TestFibLevels(t *testing.T) {
	fib := CalculateFibLevels(200, 100, FibUp)

	if fib.Retracements["0"] != 200 {
		t.Errorf("0%% level = %v, want swing high 200", fib.Retracements["0"])
	}
	if fib.Retracements["100"] != 100 {
		t.Errorf("100%% level = %v, want swing low 100", fib.Retracements["100"])
	}
	if math.Abs(fib.Retracements["50"]-150) > 1e-9 {
		t.Errorf("50%% level = %v, want 150", fib.Retracements["50"])
	}
	if math.Abs(fib.Extensions["161.8"]-261.8) > 1e-6 {
		t.Errorf("161.8%% extension = %v, want 261.8", fib.Extensions["161.8"])
	}
}
