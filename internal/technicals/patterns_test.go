package technicals

import (
	"testing"

	"market-intel-bot/internal/market"
)

// TestDoji verifies a tiny body within a wide range is a doji
func TestDoji(t *testing.T) {
	doji := market.Candle{Open: 100, High: 102, Low: 98, Close: 100.1}
	if !isDoji(doji) {
		t.Error("should detect doji with body under 10% of range")
	}

	notDoji := market.Candle{Open: 100, High: 110, Low: 98, Close: 108}
	if isDoji(notDoji) {
		t.Error("should not detect doji with a large body")
	}
}

// TestHammer verifies the long-lower-wick bullish reversal bar
func TestHammer(t *testing.T) {
	hammer := market.Candle{Open: 100, High: 100.6, Low: 98, Close: 100.5}
	if !isHammer(hammer) {
		t.Error("should detect hammer")
	}

	// Upper wick too large
	notHammer := market.Candle{Open: 100, High: 102, Low: 98, Close: 100.5}
	if isHammer(notHammer) {
		t.Error("should not detect hammer with a large upper wick")
	}
}

// TestShootingStar verifies the bearish mirror of the hammer
func TestShootingStar(t *testing.T) {
	star := market.Candle{Open: 100.5, High: 102.5, Low: 99.9, Close: 100}
	if !isShootingStar(star) {
		t.Error("should detect shooting star")
	}
}

// TestBullishEngulfing verifies the prior bearish body must be contained
func TestBullishEngulfing(t *testing.T) {
	prev := market.Candle{Open: 100, High: 101, Low: 98, Close: 99}
	cur := market.Candle{Open: 98.5, High: 101.5, Low: 98, Close: 100.5}
	if !isBullishEngulfing(prev, cur) {
		t.Error("should detect bullish engulfing")
	}

	// Current body does not reach back over the prior open
	small := market.Candle{Open: 98.5, High: 100, Low: 98, Close: 99.5}
	if isBullishEngulfing(prev, small) {
		t.Error("should not detect engulfing when the body is not contained")
	}
}

// TestBearishEngulfing verifies the bearish variant
func TestBearishEngulfing(t *testing.T) {
	prev := market.Candle{Open: 99, High: 101, Low: 98, Close: 100}
	cur := market.Candle{Open: 100.5, High: 101, Low: 96, Close: 96.5}
	if !isBearishEngulfing(prev, cur) {
		t.Error("should detect bearish engulfing")
	}
}

// TestMorningStar verifies the three-bar bullish reversal
func TestMorningStar(t *testing.T) {
	c1 := market.Candle{Open: 100, High: 100.5, Low: 95.5, Close: 96}
	c2 := market.Candle{Open: 95.5, High: 96, Low: 95, Close: 95.8}
	c3 := market.Candle{Open: 96, High: 99.5, Low: 95.8, Close: 99}

	if !isMorningStar(c1, c2, c3) {
		t.Error("should detect morning star")
	}

	// Third bar fails to close above the midpoint of the first body
	weak := market.Candle{Open: 96, High: 97.5, Low: 95.8, Close: 97.5}
	if isMorningStar(c1, c2, weak) {
		t.Error("should not detect morning star without a strong third bar")
	}
}

// TestEveningStar verifies the bearish mirror
func TestEveningStar(t *testing.T) {
	c1 := market.Candle{Open: 96, High: 100.5, Low: 95.5, Close: 100}
	c2 := market.Candle{Open: 100.5, High: 101, Low: 100, Close: 100.7}
	c3 := market.Candle{Open: 100, High: 100.2, Low: 96.5, Close: 97}

	if !isEveningStar(c1, c2, c3) {
		t.Error("should detect evening star")
	}
}

// TestDetectRSIDivergences verifies regular bearish detection from aligned
// price/RSI series
func TestDetectRSIDivergences(t *testing.T) {
	closes := []float64{10, 12, 11, 13, 12}
	rsi := []float64{50, 70, 50, 65, 50}

	divs := DetectRSIDivergences(closes, rsi)
	if len(divs) != 1 {
		t.Fatalf("got %d divergences, want 1", len(divs))
	}
	if divs[0].Type != RegularBearish {
		t.Errorf("type = %v, want REGULAR_BEARISH", divs[0].Type)
	}
}

// TestDetectRSIDivergencesHidden verifies hidden bullish detection
func TestDetectRSIDivergencesHidden(t *testing.T) {
	// Price makes a higher low while RSI makes a lower low
	closes := []float64{10, 8, 11, 9, 12}
	rsi := []float64{60, 40, 65, 35, 70}

	divs := DetectRSIDivergences(closes, rsi)
	found := false
	for _, d := range divs {
		if d.Type == HiddenBullish {
			found = true
		}
	}
	if !found {
		t.Errorf("expected HIDDEN_BULLISH, got %+v", divs)
	}
}
