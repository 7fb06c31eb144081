package technicals

import (
	"reflect"
	"testing"

	"market-intel-bot/internal/market"
)

// TestAnalyzeRequiresMinBars verifies short series are rejected
func TestAnalyzeRequiresMinBars(t *testing.T) {
	candles := flatCandles(MinBars-1, 100)
	if _, err := Analyze("AAPL", "1d", candles); err != ErrInsufficientData {
		t.Errorf("err = %v, want ErrInsufficientData", err)
	}
}

// TestAnalyzeBullishTrend verifies a steady rise produces an overbought RSI,
// positive MACD histogram, and an overall bullish bias
func TestAnalyzeBullishTrend(t *testing.T) {
	candles := risingCandles(60, 100, 160, 1e6)

	snap, err := Analyze("AAPL", "1d", candles)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if snap.RSI <= 70 {
		t.Errorf("RSI = %v, want > 70", snap.RSI)
	}
	if snap.MACD.Histogram <= 0 {
		t.Errorf("MACD histogram = %v, want > 0", snap.MACD.Histogram)
	}
	if snap.Bias != market.Bullish {
		t.Errorf("bias = %v (bull=%v bear=%v), want BULLISH",
			snap.Bias, snap.BullPoints, snap.BearPoints)
	}
	if snap.LastClose != 160 {
		t.Errorf("last close = %v, want 160", snap.LastClose)
	}
}

// TestAnalyzeBearishTrend verifies the mirror case
func TestAnalyzeBearishTrend(t *testing.T) {
	candles := make([]market.Candle, 60)
	step := 1.0
	for i := range candles {
		c := 160 - step*float64(i)
		candles[i] = market.Candle{
			Open:   c + step/2,
			High:   c + step,
			Low:    c - step/2,
			Close:  c,
			Volume: 1e6,
		}
	}

	snap, err := Analyze("AAPL", "1d", candles)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if snap.Bias != market.Bearish {
		t.Errorf("bias = %v, want BEARISH", snap.Bias)
	}
	if snap.RSI >= 30 {
		t.Errorf("RSI = %v, want < 30", snap.RSI)
	}
}

// TestAnalyzePurity verifies analyze(candles) == analyze(candles) bitwise
func TestAnalyzePurity(t *testing.T) {
	candles := risingCandles(80, 50, 95, 2e6)
	candles[40].Volume = 8e6 // one spike bar to exercise more branches

	a, err := Analyze("TSLA", "1d", candles)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	b, err := Analyze("TSLA", "1d", candles)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if !reflect.DeepEqual(a, b) {
		t.Error("Analyze is not deterministic for identical input")
	}
}

// TestAnalyzeNeutralFlat verifies a flat series lands neutral
func TestAnalyzeNeutralFlat(t *testing.T) {
	candles := flatCandles(60, 100)

	snap, err := Analyze("SPY", "1d", candles)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if snap.Bias != market.Neutral {
		t.Errorf("bias = %v (bull=%v bear=%v), want NEUTRAL",
			snap.Bias, snap.BullPoints, snap.BearPoints)
	}
}
