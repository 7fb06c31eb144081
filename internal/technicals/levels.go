package technicals

import (
	"market-intel-bot/internal/market"
)

// ============================================================================
// PIVOT POINTS
// ============================================================================

// PivotPoints holds classic daily pivot levels
type PivotPoints struct {
	PP float64 `json:"pp"`
	R1 float64 `json:"r1"`
	R2 float64 `json:"r2"`
	R3 float64 `json:"r3"`
	S1 float64 `json:"s1"`
	S2 float64 `json:"s2"`
	S3 float64 `json:"s3"`
}

// CalculatePivots computes classic pivot points from the last bar's H, L, C
func CalculatePivots(candles []market.Candle) PivotPoints {
	if len(candles) == 0 {
		return PivotPoints{}
	}

	last := candles[len(candles)-1]
	high := last.High
	low := last.Low
	close := last.Close

	pp := (high + low + close) / 3

	return PivotPoints{
		PP: pp,
		R1: 2*pp - low,
		S1: 2*pp - high,
		R2: pp + (high - low),
		S2: pp - (high - low),
		R3: high + 2*(pp-low),
		S3: low - 2*(high-pp),
	}
}

// ============================================================================
// GAPS
// ============================================================================

// GapType labels the gap direction
type GapType string

const (
	GapUp   GapType = "GAP_UP"
	GapDown GapType = "GAP_DOWN"
)

// Gap records an open that gapped away from the prior close by at least 0.5%
type Gap struct {
	Index     int     `json:"index"`
	Type      GapType `json:"type"`
	PrevClose float64 `json:"prev_close"`
	Open      float64 `json:"open"`
	Percent   float64 `json:"percent"`
	Filled    bool    `json:"filled"`
}

const gapThresholdPct = 0.5

// DetectGaps scans the series for opens at least 0.5% away from the prior
// close. Only the most recent maxGaps entries are kept.
func DetectGaps(candles []market.Candle, maxGaps int) []Gap {
	var gaps []Gap

	for i := 1; i < len(candles); i++ {
		prevClose := candles[i-1].Close
		if prevClose == 0 {
			continue
		}
		open := candles[i].Open
		pct := (open - prevClose) / prevClose * 100
		if pct < gapThresholdPct && pct > -gapThresholdPct {
			continue
		}

		g := Gap{
			Index:     i,
			PrevClose: prevClose,
			Open:      open,
			Percent:   pct,
		}
		if pct > 0 {
			g.Type = GapUp
			// A gap up fills when a later low trades back to the prior close
			for j := i; j < len(candles); j++ {
				if candles[j].Low <= prevClose {
					g.Filled = true
					break
				}
			}
		} else {
			g.Type = GapDown
			for j := i; j < len(candles); j++ {
				if candles[j].High >= prevClose {
					g.Filled = true
					break
				}
			}
		}
		gaps = append(gaps, g)
	}

	if maxGaps > 0 && len(gaps) > maxGaps {
		gaps = gaps[len(gaps)-maxGaps:]
	}

	return gaps
}

// ============================================================================
// SWING POINTS (fractal)
// ============================================================================

// SwingPoints holds the most recent fractal swing high and low
type SwingPoints struct {
	High      float64 `json:"high"`
	HighIndex int     `json:"high_index"`
	Low       float64 `json:"low"`
	LowIndex  int     `json:"low_index"`
}

// FindSwingPoints scans back from the tail for the most recent fractal swing
// high and swing low over a symmetric lookback window. Falls back to the series
// extremes when no fractal exists.
func FindSwingPoints(candles []market.Candle, lookback int) SwingPoints {
	sp := SwingPoints{HighIndex: -1, LowIndex: -1}
	n := len(candles)
	if n == 0 {
		return sp
	}

	for i := n - 1 - lookback; i >= lookback; i-- {
		if sp.HighIndex < 0 && isSwingHigh(candles, i, lookback) {
			sp.High = candles[i].High
			sp.HighIndex = i
		}
		if sp.LowIndex < 0 && isSwingLow(candles, i, lookback) {
			sp.Low = candles[i].Low
			sp.LowIndex = i
		}
		if sp.HighIndex >= 0 && sp.LowIndex >= 0 {
			break
		}
	}

	if sp.HighIndex < 0 {
		for i, c := range candles {
			if c.High > sp.High {
				sp.High = c.High
				sp.HighIndex = i
			}
		}
	}
	if sp.LowIndex < 0 {
		sp.Low = candles[0].Low
		sp.LowIndex = 0
		for i, c := range candles {
			if c.Low < sp.Low {
				sp.Low = c.Low
				sp.LowIndex = i
			}
		}
	}

	return sp
}

func isSwingHigh(candles []market.Candle, i, lookback int) bool {
	h := candles[i].High
	for j := i - lookback; j <= i+lookback; j++ {
		if j == i {
			continue
		}
		if candles[j].High >= h {
			return false
		}
	}
	return true
}

func isSwingLow(candles []market.Candle, i, lookback int) bool {
	l := candles[i].Low
	for j := i - lookback; j <= i+lookback; j++ {
		if j == i {
			continue
		}
		if candles[j].Low <= l {
			return false
		}
	}
	return true
}

// ============================================================================
// FIBONACCI
// ============================================================================

// FibDirection orients the retracement grid
type FibDirection string

const (
	FibUp   FibDirection = "UP"
	FibDown FibDirection = "DOWN"
)

// FibLevels holds retracement levels within the swing range and extensions
// beyond it, keyed by the percentage label.
type FibLevels struct {
	Direction    FibDirection       `json:"direction"`
	SwingHigh    float64            `json:"swing_high"`
	SwingLow     float64            `json:"swing_low"`
	Retracements map[string]float64 `json:"retracements"`
	Extensions   map[string]float64 `json:"extensions"`
}

var (
	fibRetracePcts = []struct {
		label string
		pct   float64
	}{
		{"0", 0}, {"23.6", 0.236}, {"38.2", 0.382}, {"50", 0.5},
		{"61.8", 0.618}, {"78.6", 0.786}, {"100", 1},
	}
	fibExtensionPcts = []struct {
		label string
		pct   float64
	}{
		{"127.2", 1.272}, {"161.8", 1.618}, {"200", 2}, {"261.8", 2.618},
	}
)

// CalculateFibLevels builds retracements and extensions from a swing range.
// For UP moves, 0% sits at the swing high and retracements walk down toward
// the low; extensions project above the high. DOWN mirrors.
func CalculateFibLevels(swingHigh, swingLow float64, direction FibDirection) FibLevels {
	levels := FibLevels{
		Direction:    direction,
		SwingHigh:    swingHigh,
		SwingLow:     swingLow,
		Retracements: make(map[string]float64, len(fibRetracePcts)),
		Extensions:   make(map[string]float64, len(fibExtensionPcts)),
	}

	rng := swingHigh - swingLow

	for _, r := range fibRetracePcts {
		if direction == FibUp {
			levels.Retracements[r.label] = swingHigh - rng*r.pct
		} else {
			levels.Retracements[r.label] = swingLow + rng*r.pct
		}
	}

	for _, e := range fibExtensionPcts {
		if direction == FibUp {
			levels.Extensions[e.label] = swingLow + rng*e.pct
		} else {
			levels.Extensions[e.label] = swingHigh - rng*e.pct
		}
	}

	return levels
}
