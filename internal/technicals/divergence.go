package technicals

// DivergenceType labels an RSI/price divergence
type DivergenceType string

const (
	RegularBullish DivergenceType = "REGULAR_BULLISH"
	RegularBearish DivergenceType = "REGULAR_BEARISH"
	HiddenBullish  DivergenceType = "HIDDEN_BULLISH"
	HiddenBearish  DivergenceType = "HIDDEN_BEARISH"
)

// Divergence records a detected RSI divergence between the last two swing
// points of the oscillator
type Divergence struct {
	Type DivergenceType `json:"type"`
}

// DetectRSIDivergences compares the last two RSI peaks (bearish side) and the
// last two RSI troughs (bullish side) against the price closes aligned to the
// same indices. A regular divergence is price making a higher high (lower low)
// while RSI does the opposite; hidden divergences are the mirror case.
//
// closes and rsi must be aligned: rsi[i] corresponds to closes[i].
func DetectRSIDivergences(closes, rsi []float64) []Divergence {
	var out []Divergence
	if len(closes) != len(rsi) || len(closes) < 5 {
		return out
	}

	peaks := localExtrema(rsi, true)
	if len(peaks) >= 2 {
		p1, p2 := peaks[len(peaks)-2], peaks[len(peaks)-1]
		priceHH := closes[p2] > closes[p1]
		priceLH := closes[p2] < closes[p1]
		rsiLH := rsi[p2] < rsi[p1]
		rsiHH := rsi[p2] > rsi[p1]

		if priceHH && rsiLH {
			out = append(out, Divergence{Type: RegularBearish})
		} else if priceLH && rsiHH {
			out = append(out, Divergence{Type: HiddenBearish})
		}
	}

	troughs := localExtrema(rsi, false)
	if len(troughs) >= 2 {
		t1, t2 := troughs[len(troughs)-2], troughs[len(troughs)-1]
		priceLL := closes[t2] < closes[t1]
		priceHL := closes[t2] > closes[t1]
		rsiHL := rsi[t2] > rsi[t1]
		rsiLL := rsi[t2] < rsi[t1]

		if priceLL && rsiHL {
			out = append(out, Divergence{Type: RegularBullish})
		} else if priceHL && rsiLL {
			out = append(out, Divergence{Type: HiddenBullish})
		}
	}

	return out
}

// localExtrema returns indices of strict local maxima (or minima) of the series
func localExtrema(vals []float64, maxima bool) []int {
	var idx []int
	for i := 1; i < len(vals)-1; i++ {
		if maxima {
			if vals[i] > vals[i-1] && vals[i] > vals[i+1] {
				idx = append(idx, i)
			}
		} else {
			if vals[i] < vals[i-1] && vals[i] < vals[i+1] {
				idx = append(idx, i)
			}
		}
	}
	return idx
}
