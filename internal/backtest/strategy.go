package backtest

import (
	"market-intel-bot/internal/market"
	"market-intel-bot/internal/signal"
	"market-intel-bot/internal/technicals"
)

// minBiasPoints a technical snapshot must show before the replay enters
const minBiasPoints = 4.0

// TechnicalStrategy replays the technical half of the signal pipeline: a
// snapshot is computed over the visible history and a setup is generated
// when the weighted bias clears the entry floor.
func TechnicalStrategy(ticker string, regime signal.Regime) StrategyFunc {
	return func(bars []market.Candle, index int) (*market.Setup, error) {
		snap, err := technicals.Analyze(ticker, "1d", bars)
		if err != nil {
			return nil, nil
		}

		var points float64
		switch snap.Bias {
		case market.Bullish:
			points = snap.BullPoints - snap.BearPoints
		case market.Bearish:
			points = snap.BearPoints - snap.BullPoints
		default:
			return nil, nil
		}
		if points < minBiasPoints {
			return nil, nil
		}

		return signal.GenerateSetup(signal.SetupInputs{
			Ticker:  ticker,
			Bias:    snap.Bias,
			Price:   snap.LastClose,
			ATR:     snap.ATR,
			PivotR1: snap.Pivots.R1,
			PivotS1: snap.Pivots.S1,
			Regime:  regime,
		}), nil
	}
}
