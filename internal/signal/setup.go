package signal

import (
	"math"
	"time"

	"market-intel-bot/internal/market"
)

// SetupInputs anchor a concrete trade setup
type SetupInputs struct {
	Ticker     string
	Bias       market.Bias
	Price      float64
	ATR        float64
	PivotR1    float64
	PivotS1    float64
	Confidence float64
	Session    string
	Regime     Regime
}

// Horizon thresholds on the expected move |t1-entry|/entry
const (
	horizonSwingLongPct  = 5.0
	horizonSwingShortPct = 2.0
	horizonDayTradePct   = 0.8
)

// GenerateSetup turns a directional bias into an entry/targets/stop triple.
// ATR falls back to half the pivot R1-S1 span when the computed ATR is
// missing. Returns nil when no usable volatility anchor exists.
func GenerateSetup(in SetupInputs) *market.Setup {
	if in.Price <= 0 || (in.Bias != market.Bullish && in.Bias != market.Bearish) {
		return nil
	}

	atr := in.ATR
	if atr <= 0 {
		atr = math.Abs(in.PivotR1-in.PivotS1) / 2
	}
	if atr <= 0 {
		return nil
	}

	stopMult := in.Regime.StopMultiplier()

	var setup market.Setup
	if in.Bias == market.Bullish {
		setup = market.Setup{
			Direction: market.Long,
			Entry:     in.Price,
			Target1:   in.Price + atr,
			Target2:   in.Price + 2*atr,
			Stop:      in.Price - stopMult*atr,
		}
	} else {
		setup = market.Setup{
			Direction: market.Short,
			Entry:     in.Price,
			Target1:   in.Price - atr,
			Target2:   in.Price - 2*atr,
			Stop:      in.Price + stopMult*atr,
		}
	}

	setup.Ticker = in.Ticker
	setup.RiskReward = math.Abs(setup.Target1-setup.Entry) / math.Abs(setup.Entry-setup.Stop)
	setup.Confidence = in.Confidence
	setup.Session = in.Session
	setup.CreatedAt = time.Now().UTC()
	setup.Horizon = classifyHorizon(math.Abs(setup.Target1-setup.Entry) / setup.Entry * 100)

	return &setup
}

func classifyHorizon(movePct float64) market.Horizon {
	switch {
	case movePct > horizonSwingLongPct:
		return market.HorizonSwing3d
	case movePct > horizonSwingShortPct:
		return market.HorizonSwing1d
	case movePct > horizonDayTradePct:
		return market.HorizonDayTrade
	}
	return market.HorizonScalp
}
