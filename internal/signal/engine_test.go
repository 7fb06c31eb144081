package signal

import (
	"math"
	"testing"
	"time"

	"market-intel-bot/internal/logging"
	"market-intel-bot/internal/market"
	"market-intel-bot/internal/technicals"
)

func risingCandles(n int, start, end, volume float64) []market.Candle {
	step := (end - start) / float64(n-1)
	out := make([]market.Candle, n)
	base := time.Date(2026, 8, 3, 14, 30, 0, 0, time.UTC)
	for i := range out {
		close := start + float64(i)*step
		out[i] = market.Candle{
			Time:   base.Add(time.Duration(i) * 24 * time.Hour),
			Open:   close - step,
			High:   close + 0.5,
			Low:    close - step - 0.5,
			Close:  close,
			Volume: volume,
		}
	}
	return out
}

// TestBullishTrendSignal: 60 rising daily bars with flat volume and no
// flow/DP/SI feeds must produce a BULLISH signal with confidence >= 55 and a
// LONG setup at the last close with riskReward 2.0
func TestBullishTrendSignal(t *testing.T) {
	candles := risingCandles(60, 100, 160, 1e6)
	snap, err := technicals.Analyze("TEST", "1d", candles)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	eng := NewEngine(nil, logging.Default())
	res := eng.Evaluate(Inputs{
		Ticker:     "TEST",
		Quote:      &market.Quote{Ticker: "TEST", Last: 160},
		Technicals: snap,
		Regime:     RegimeUnknown,
		Session:    "MIDDAY",
	})

	if res == nil {
		t.Fatal("no result")
	}
	if res.Direction != market.Bullish {
		t.Fatalf("direction = %s (bull %.1f bear %.1f), want BULLISH", res.Direction, res.BullScore, res.BearScore)
	}
	if res.Confidence < 55 {
		t.Errorf("confidence = %.1f, want >= 55", res.Confidence)
	}
	if len(res.Features) != FeatureCount {
		t.Fatalf("feature vector has %d slots, want %d", len(res.Features), FeatureCount)
	}

	setup := res.Setup
	if setup == nil {
		t.Fatal("no setup generated")
	}
	if setup.Direction != market.Long || setup.Entry != 160 {
		t.Errorf("setup = %s @ %.2f, want LONG @ 160", setup.Direction, setup.Entry)
	}
	if math.Abs(setup.RiskReward-2.0) > 1e-6 {
		t.Errorf("riskReward = %v, want 2.0", setup.RiskReward)
	}
	if !(setup.Stop < setup.Entry && setup.Entry <= setup.Target1 && setup.Target1 <= setup.Target2) {
		t.Errorf("LONG ordering violated: stop %.2f entry %.2f t1 %.2f t2 %.2f",
			setup.Stop, setup.Entry, setup.Target1, setup.Target2)
	}
}

// TestSqueezeComposite: SI 24.5%, short-volume ratio 0.62, FTDs 1.25M score
// the full 6 points and label EXTREME
func TestSqueezeComposite(t *testing.T) {
	sq := ScoreSqueeze("GME",
		&market.ShortInterest{Ticker: "GME", PercentOfFloat: 24.5, ShortVolRatio: 0.62},
		[]market.FTDRecord{{Date: "2026-08-20", Quantity: 1_250_000}},
	)
	if sq == nil {
		t.Fatal("no squeeze score")
	}
	if sq.Score != 6 {
		t.Errorf("score = %d, want 6", sq.Score)
	}
	if sq.Label != "EXTREME" {
		t.Errorf("label = %s, want EXTREME", sq.Label)
	}
}

func TestSqueezeBadDataZeroed(t *testing.T) {
	sq := ScoreSqueeze("X",
		&market.ShortInterest{PercentOfFloat: 150, ShortVolRatio: 1.4},
		nil,
	)
	if sq.Score != 0 {
		t.Errorf("score = %d for out-of-range inputs, want 0", sq.Score)
	}
	if sq.Label != "LOW" {
		t.Errorf("label = %s, want LOW", sq.Label)
	}
}

func TestSqueezeLabels(t *testing.T) {
	cases := []struct {
		score int
		want  string
	}{
		{0, "LOW"}, {1, "LOW"}, {2, "MODERATE"}, {3, "ELEVATED"},
		{4, "HIGH"}, {5, "EXTREME"}, {6, "EXTREME"},
	}
	for _, tc := range cases {
		if got := squeezeLabel(tc.score); got != tc.want {
			t.Errorf("label(%d) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestShortSetupMirrors(t *testing.T) {
	setup := GenerateSetup(SetupInputs{
		Ticker: "TEST",
		Bias:   market.Bearish,
		Price:  200,
		ATR:    4,
		Regime: RegimeUnknown,
	})
	if setup == nil {
		t.Fatal("no setup")
	}
	if setup.Direction != market.Short {
		t.Fatalf("direction = %s, want SHORT", setup.Direction)
	}
	if !(setup.Stop > setup.Entry && setup.Entry >= setup.Target1 && setup.Target1 >= setup.Target2) {
		t.Errorf("SHORT ordering violated: stop %.2f entry %.2f t1 %.2f t2 %.2f",
			setup.Stop, setup.Entry, setup.Target1, setup.Target2)
	}
	if math.Abs(setup.RiskReward-2.0) > 1e-6 {
		t.Errorf("riskReward = %v, want 2.0", setup.RiskReward)
	}
}

func TestSetupPivotFallback(t *testing.T) {
	setup := GenerateSetup(SetupInputs{
		Ticker:  "TEST",
		Bias:    market.Bullish,
		Price:   100,
		PivotR1: 102,
		PivotS1: 98,
		Regime:  RegimeUnknown,
	})
	if setup == nil {
		t.Fatal("no setup")
	}
	// ATR fallback is |r1-s1|/2 = 2
	if setup.Target1 != 102 {
		t.Errorf("target1 = %v, want 102", setup.Target1)
	}
}

func TestSetupRequiresVolatilityAnchor(t *testing.T) {
	if s := GenerateSetup(SetupInputs{Ticker: "X", Bias: market.Bullish, Price: 50}); s != nil {
		t.Errorf("setup without ATR or pivots should be nil, got %+v", s)
	}
}

func TestConfidenceCapped(t *testing.T) {
	// overwhelming bullish inputs must not exceed the cap
	eng := NewEngine(nil, logging.Default())
	candles := risingCandles(60, 100, 160, 1e6)
	snap, _ := technicals.Analyze("TEST", "1d", candles)

	flow := []market.FlowItem{
		{Ticker: "TEST", ContractType: "call", Premium: 5_000_000, Execution: "sweep", Direction: market.Bullish},
	}
	res := eng.Evaluate(Inputs{
		Ticker:     "TEST",
		Quote:      &market.Quote{Ticker: "TEST", Last: 160, VWAP: 150},
		Technicals: snap,
		Flow:       flow,
		ShortInterest: &market.ShortInterest{
			PercentOfFloat: 25, ShortVolRatio: 0.6,
		},
		FTDs:   []market.FTDRecord{{Date: "2026-08-20", Quantity: 2_000_000}},
		Regime: RegimeTrendingUp,
	})
	if res.Confidence > maxConfidence {
		t.Errorf("confidence %.1f exceeds cap %v", res.Confidence, maxConfidence)
	}
}

func TestNeutralWithinDeadband(t *testing.T) {
	eng := NewEngine(nil, logging.Default())
	res := eng.Evaluate(Inputs{
		Ticker: "FLAT",
		Quote:  &market.Quote{Ticker: "FLAT", Last: 100},
		Regime: RegimeUnknown,
	})
	if res == nil {
		t.Fatal("no result")
	}
	if res.Direction != market.Neutral {
		t.Errorf("no-inputs direction = %s, want NEUTRAL", res.Direction)
	}
	if res.Setup != nil {
		t.Error("neutral signal must not carry a setup")
	}
}

func TestRegimeClassifier(t *testing.T) {
	cases := []struct {
		name string
		in   RegimeInputs
		want Regime
	}{
		{"empty", RegimeInputs{}, RegimeUnknown},
		{"vix spike", RegimeInputs{VIX: 32, SPYTrend: market.Bullish, SPYADX: 30, Breadth: 0.8}, RegimeVolatile},
		{"uptrend", RegimeInputs{VIX: 15, SPYTrend: market.Bullish, SPYADX: 25, Breadth: 0.7}, RegimeTrendingUp},
		{"downtrend", RegimeInputs{VIX: 20, SPYTrend: market.Bearish, SPYADX: 28, Breadth: 0.3}, RegimeTrendingDown},
		{"chop", RegimeInputs{VIX: 15, SPYTrend: market.Neutral, SPYADX: 12, Breadth: 0.5}, RegimeRangebound},
		{"trend without breadth", RegimeInputs{VIX: 15, SPYTrend: market.Bullish, SPYADX: 25, Breadth: 0.4}, RegimeRangebound},
	}
	for _, tc := range cases {
		if got := ClassifyRegime(tc.in); got != tc.want {
			t.Errorf("%s: regime = %s, want %s", tc.name, got, tc.want)
		}
	}
}

type fixedCalibrator struct{ prob float64 }

func (c fixedCalibrator) Predict([]float64) (float64, bool) { return c.prob, true }

func TestEnsembleBlend(t *testing.T) {
	eng := NewEngine(fixedCalibrator{prob: 0.8}, logging.Default())
	res := eng.Evaluate(Inputs{
		Ticker: "X",
		Quote:  &market.Quote{Ticker: "X", Last: 100},
		Regime: RegimeUnknown,
	})
	if res.Ensemble == nil || !res.Ensemble.ModelPresent {
		t.Fatal("ensemble should carry the model probability")
	}
	want := math.Round(ensembleAlpha*res.Confidence + (1-ensembleAlpha)*80)
	if res.Ensemble.Blended != want {
		t.Errorf("blended = %v, want %v", res.Ensemble.Blended, want)
	}
}
