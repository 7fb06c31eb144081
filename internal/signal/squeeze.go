package signal

import "market-intel-bot/internal/market"

// Squeeze component thresholds. Each of the three components contributes
// 0, 1, or 2 points; the composite is 0..6.
const (
	squeezeVolRatioHigh = 0.5
	squeezeVolRatioMid  = 0.4
	squeezeFTDHigh      = 1_000_000
	squeezeFTDMid       = 500_000
	squeezeSIHigh       = 20.0
	squeezeSIMid        = 10.0
)

// ScoreSqueeze composes short-volume ratio, FTD size, and SI%-of-float into
// the 0..6 squeeze score. Component values above 100 (ratio above 1 for the
// short-volume leg) are vendor glitches and contribute nothing.
func ScoreSqueeze(ticker string, si *market.ShortInterest, ftds []market.FTDRecord) *market.SqueezeScore {
	if si == nil && len(ftds) == 0 {
		return nil
	}

	score := 0

	if si != nil {
		ratio := si.ShortVolRatio
		if ratio > 1 {
			ratio = 0
		}
		switch {
		case ratio > squeezeVolRatioHigh:
			score += 2
		case ratio > squeezeVolRatioMid:
			score++
		}

		pct := si.PercentOfFloat
		if pct > 100 {
			pct = 0
		}
		switch {
		case pct > squeezeSIHigh:
			score += 2
		case pct > squeezeSIMid:
			score++
		}
	}

	if qty := latestFTD(ftds); qty > 0 {
		switch {
		case qty > squeezeFTDHigh:
			score += 2
		case qty > squeezeFTDMid:
			score++
		}
	}

	return &market.SqueezeScore{Ticker: ticker, Score: score, Label: squeezeLabel(score)}
}

func latestFTD(ftds []market.FTDRecord) float64 {
	var latest market.FTDRecord
	for _, r := range ftds {
		if r.Date > latest.Date {
			latest = r
		}
	}
	return latest.Quantity
}

func squeezeLabel(score int) string {
	switch {
	case score >= 5:
		return "EXTREME"
	case score >= 4:
		return "HIGH"
	case score >= 3:
		return "ELEVATED"
	case score >= 2:
		return "MODERATE"
	}
	return "LOW"
}
