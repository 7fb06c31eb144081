package journal

import (
	"math"
	"time"

	"market-intel-bot/internal/market"
	"market-intel-bot/internal/ml"
)

const (
	// gracePeriod shields a fresh fill from its own entry noise
	gracePeriod = 5 * time.Minute

	// maxAge expires swing positions that never resolved
	maxAge = 5 * 24 * time.Hour

	// riskFallback sizes P&L for legacy trades recorded without shares
	riskFallback = 2000.0
)

// CheckOutcomes resolves pending trades against the latest prices. Only the
// last trade price is consulted; intrabar highs and lows are not simulated.
// Stop is checked before targets so a whipsaw bar resolves conservatively.
// Returns the trades closed this pass.
func (j *Journal) CheckOutcomes(prices map[string]float64) []*Trade {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now().UTC()
	var closed []*Trade

	for _, t := range j.trades {
		if t.Status != StatusPending {
			continue
		}
		if now.Sub(t.OpenedAt) < gracePeriod {
			continue
		}

		price, ok := prices[t.Ticker]
		if !ok || price <= 0 {
			continue
		}

		status := resolve(t, price)
		if status == StatusPending && now.Sub(t.OpenedAt) > maxAge {
			status = StatusExpired
		}
		if status == StatusPending {
			continue
		}

		j.closeLocked(t, status, price, now)
		closed = append(closed, t)
	}

	if len(closed) > 0 {
		j.saveLocked()
	}
	return closed
}

func resolve(t *Trade, price float64) Status {
	if t.Direction == market.Long {
		switch {
		case price <= t.Stop:
			return StatusLossStop
		case price >= t.Target2:
			return StatusWinT2
		case price >= t.Target1:
			return StatusWinT1
		}
		return StatusPending
	}
	switch {
	case price >= t.Stop:
		return StatusLossStop
	case price <= t.Target2:
		return StatusWinT2
	case price <= t.Target1:
		return StatusWinT1
	}
	return StatusPending
}

// CloseIntraday force-closes pending intraday-horizon trades at the session
// close. Sign of the P&L picks WIN_EOD or LOSS_EOD. Trades whose ticker has
// no price stay open for the next pass.
func (j *Journal) CloseIntraday(prices map[string]float64) []*Trade {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now().UTC()
	var closed []*Trade

	for _, t := range j.trades {
		if t.Status != StatusPending || !t.Horizon.Intraday() {
			continue
		}
		price, ok := prices[t.Ticker]
		if !ok || price <= 0 {
			continue
		}

		status := StatusWinEOD
		if points(t, price) < 0 {
			status = StatusLossEOD
		}
		j.closeLocked(t, status, price, now)
		closed = append(closed, t)
	}

	if len(closed) > 0 {
		j.saveLocked()
	}
	return closed
}

// Close manually closes a pending trade at the given price. Unknown or
// already-closed ids return false.
func (j *Journal) Close(id string, price float64) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, t := range j.trades {
		if t.ID != id || t.Status != StatusPending {
			continue
		}
		if price <= 0 {
			price = t.Entry
		}
		j.closeLocked(t, StatusClosed, price, j.now().UTC())
		j.saveLocked()
		return true
	}
	return false
}

func (j *Journal) closeLocked(t *Trade, status Status, price float64, now time.Time) {
	t.Status = status
	t.ExitPrice = price
	t.ClosedAt = &now
	t.PnLPoints = points(t, price)
	t.PnLPct = t.PnLPoints / t.Entry * 100
	t.PnLTotal = t.PnLPoints * shareBasis(t)
	t.UnrealizedPct = 0
	t.UnrealizedTotal = 0

	j.log.Info().Str("ticker", t.Ticker).Str("status", string(status)).
		Float64("exit", price).Float64("pnlPct", t.PnLPct).
		Float64("pnlTotal", t.PnLTotal).Msg("paper trade closed")
}

// points is the direction-signed per-share move from entry
func points(t *Trade, price float64) float64 {
	p := price - t.Entry
	if t.Direction == market.Short {
		p = -p
	}
	return p
}

// shareBasis backfills a share count for trades recorded before sizing
// existed, assuming a fixed dollar risk to the stop
func shareBasis(t *Trade) float64 {
	if t.Shares > 0 {
		return t.Shares
	}
	risk := math.Abs(t.Entry - t.Stop)
	if risk <= 0 {
		return 0
	}
	return riskFallback / risk
}

// UpdateUnrealized refreshes mark-to-market fields on pending trades
func (j *Journal) UpdateUnrealized(prices map[string]float64) {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, t := range j.trades {
		if t.Status != StatusPending {
			continue
		}
		price, ok := prices[t.Ticker]
		if !ok || price <= 0 {
			continue
		}
		p := points(t, price)
		t.UnrealizedPct = p / t.Entry * 100
		t.UnrealizedTotal = p * shareBasis(t)
	}
}

// ===== Stats and training =====

// Stats summarizes the closed ledger
type Stats struct {
	Total    int     `json:"total"`
	Open     int     `json:"open"`
	Wins     int     `json:"wins"`
	Losses   int     `json:"losses"`
	Expired  int     `json:"expired"`
	WinRate  float64 `json:"winRate"`
	TotalPnL float64 `json:"totalPnl"`
	AvgPnL   float64 `json:"avgPnlPct"`
}

// Stats returns the current summary
func (j *Journal) Stats() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.statsLocked()
}

func (j *Journal) statsLocked() Stats {
	st := Stats{Total: len(j.trades)}
	var pctSum float64
	for _, t := range j.trades {
		switch {
		case t.Status == StatusPending:
			st.Open++
			continue
		case t.Status.Win():
			st.Wins++
		case t.Status.Loss():
			st.Losses++
		case t.Status == StatusExpired:
			st.Expired++
		}
		st.TotalPnL += t.PnLTotal
		pctSum += t.PnLPct
	}
	if decided := st.Wins + st.Losses; decided > 0 {
		st.WinRate = float64(st.Wins) / float64(decided)
	}
	if closed := st.Total - st.Open; closed > 0 {
		st.AvgPnL = pctSum / float64(closed)
	}
	return st
}

// TrainingData converts decided trades into labeled calibration samples.
// Expired and manually closed trades carry no verdict and are skipped, as
// are trades recorded without a feature vector.
func (j *Journal) TrainingData() []ml.Sample {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []ml.Sample
	for _, t := range j.trades {
		if len(t.Features) == 0 {
			continue
		}
		var label float64
		switch {
		case t.Status.Win():
			label = 1
		case t.Status.Loss():
			label = 0
		default:
			continue
		}
		out = append(out, ml.Sample{Features: t.Features, Label: label})
	}
	return out
}
