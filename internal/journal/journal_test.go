package journal

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"market-intel-bot/internal/market"
)

func alwaysTrading() bool { return true }

func newTestJournal() *Journal {
	return New(DefaultConfig(), "v1.0", alwaysTrading)
}

func longSetup(ticker string, entry, stop, t1, t2 float64) *market.Setup {
	return &market.Setup{
		Ticker:     ticker,
		Direction:  market.Long,
		Entry:      entry,
		Stop:       stop,
		Target1:    t1,
		Target2:    t2,
		Confidence: 60,
		Horizon:    market.HorizonSwing1d,
	}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestAdmissionVersionCooldown(t *testing.T) {
	j := newTestJournal()
	base := time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return base }

	if adm := j.Open(longSetup("AAPL", 230, 228, 233, 236), 230, nil); !adm.Admitted {
		t.Fatalf("first open rejected: %s", adm.Reason)
	}

	// 30 minutes later the same (ticker, direction, version) is still cooling
	j.now = func() time.Time { return base.Add(30 * time.Minute) }
	if adm := j.Open(longSetup("AAPL", 231, 229, 234, 237), 231, nil); adm.Admitted || adm.Reason != ReasonCooldown {
		t.Errorf("same-version reopen = %+v, want COOLDOWN_ACTIVE rejection", adm)
	}

	// a promoted version opens its own bucket immediately
	j.SetActiveVersion("v1.1")
	adm := j.Open(longSetup("AAPL", 231, 229, 234, 237), 231, nil)
	if !adm.Admitted {
		t.Fatalf("new-version open rejected: %s", adm.Reason)
	}
	if adm.Trade.SignalVersion != "v1.1" {
		t.Errorf("trade version = %s, want v1.1", adm.Trade.SignalVersion)
	}
}

func TestAdmissionSessionGate(t *testing.T) {
	j := New(DefaultConfig(), "v1.0", func() bool { return false })
	if adm := j.Open(longSetup("AAPL", 230, 228, 233, 236), 230, nil); adm.Admitted || adm.Reason != ReasonNotTradingSession {
		t.Errorf("admission outside trading session = %+v, want rejection", adm)
	}
}

func TestAdmissionTickerLimit(t *testing.T) {
	j := newTestJournal()
	base := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return base }

	shortSetup := longSetup("NVDA", 180, 183, 177, 174)
	shortSetup.Direction = market.Short

	if adm := j.Open(longSetup("NVDA", 180, 178, 182, 184), 180, nil); !adm.Admitted {
		t.Fatalf("open 1: %s", adm.Reason)
	}
	if adm := j.Open(shortSetup, 180, nil); !adm.Admitted {
		t.Fatalf("open 2: %s", adm.Reason)
	}

	j.now = func() time.Time { return base.Add(3 * time.Hour) }
	if adm := j.Open(longSetup("NVDA", 181, 179, 183, 185), 181, nil); !adm.Admitted {
		t.Fatalf("open 3 after cooldown: %s", adm.Reason)
	}

	j.now = func() time.Time { return base.Add(6 * time.Hour) }
	if adm := j.Open(longSetup("NVDA", 182, 180, 184, 186), 182, nil); adm.Admitted || adm.Reason != ReasonTickerLimit {
		t.Errorf("fourth open = %+v, want TICKER_LIMIT rejection", adm)
	}
}

func TestFillRescalePreservesDistances(t *testing.T) {
	j := newTestJournal()
	adm := j.Open(longSetup("TSLA", 100, 99, 102, 104), 101, nil)
	if !adm.Admitted {
		t.Fatalf("open rejected: %s", adm.Reason)
	}

	tr := adm.Trade
	if !approx(tr.Stop, 99.99) {
		t.Errorf("stop = %v, want 99.99", tr.Stop)
	}
	if !approx(tr.Target1, 103.02) {
		t.Errorf("target1 = %v, want 103.02", tr.Target1)
	}
	if !approx(tr.Target2, 105.04) {
		t.Errorf("target2 = %v, want 105.04", tr.Target2)
	}
}

func TestFillAtEntryKeepsLevels(t *testing.T) {
	j := newTestJournal()
	adm := j.Open(longSetup("TSLA", 100, 99, 102, 104), 100, nil)
	if !adm.Admitted {
		t.Fatalf("open rejected: %s", adm.Reason)
	}
	tr := adm.Trade
	if tr.Stop != 99 || tr.Target1 != 102 || tr.Target2 != 104 {
		t.Errorf("levels moved on exact fill: stop=%v t1=%v t2=%v", tr.Stop, tr.Target1, tr.Target2)
	}
}

func TestSizingConfidenceFallback(t *testing.T) {
	j := newTestJournal()
	setup := longSetup("AMD", 100, 98, 102, 104)
	setup.Confidence = 50

	adm := j.Open(setup, 100, nil)
	if !adm.Admitted {
		t.Fatalf("open rejected: %s", adm.Reason)
	}
	// 10% + 50% of 30% = 25% of the $25k bucket = $6250 at $100
	if adm.Trade.Shares != 62 {
		t.Errorf("shares = %v, want 62", adm.Trade.Shares)
	}
}

func TestSizingKellyAfterHistory(t *testing.T) {
	j := newTestJournal()
	// 7 wins averaging +2%, 5 losses averaging -1%
	for i := 0; i < 7; i++ {
		j.trades = append(j.trades, &Trade{Status: StatusWinT1, PnLPct: 2})
	}
	for i := 0; i < 5; i++ {
		j.trades = append(j.trades, &Trade{Status: StatusLossStop, PnLPct: -1})
	}

	// kelly = 7/12 - (5/12)/2 = 0.375, halved = 0.1875, modifier saturates
	got := j.allocationLocked(80)
	if !approx(got, 0.1875) {
		t.Errorf("allocation = %v, want 0.1875", got)
	}
}

func TestSizingRejectsOverBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VersionBudget = 1000
	j := New(cfg, "v1.0", alwaysTrading)

	if adm := j.Open(longSetup("BRK", 2000, 1980, 2020, 2040), 2000, nil); adm.Admitted || adm.Reason != ReasonOverBudget {
		t.Errorf("unaffordable open = %+v, want OVER_BUDGET rejection", adm)
	}
}

func TestSizingRejectsBelowMinShares(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VersionBudget = 2000
	j := New(cfg, "v1.0", alwaysTrading)

	setup := longSetup("F", 50, 49, 51, 52)
	setup.Confidence = 0 // 10% of $2000 buys 4 shares, floor is 10 under $100
	if adm := j.Open(setup, 50, nil); adm.Admitted || adm.Reason != ReasonMinShares {
		t.Errorf("sub-minimum open = %+v, want BELOW_MIN_SHARES rejection", adm)
	}
}

// TestSizingNeverExceedsVersionBudget: a nearly-exhausted bucket must not
// admit a minimum-floor position whose notional overshoots the remainder
func TestSizingNeverExceedsVersionBudget(t *testing.T) {
	j := newTestJournal()
	// $24,050 already pending leaves $950 of the $25k bucket
	j.trades = append(j.trades, &Trade{
		Ticker: "NVDA", Status: StatusPending, SignalVersion: "v1.0",
		Entry: 240.50, Shares: 100,
	})

	setup := longSetup("PLTR", 99, 97, 101, 103)
	setup.Confidence = 100 // $950 at $99 buys 9 shares, floor is 10 under $100
	adm := j.Open(setup, 99, nil)
	if adm.Admitted || adm.Reason != ReasonMinShares {
		t.Fatalf("over-remainder open = %+v, want BELOW_MIN_SHARES rejection", adm)
	}

	if pending := j.pendingNotionalLocked("v1.0"); pending > j.cfg.VersionBudget {
		t.Errorf("pending notional %v exceeds version budget %v", pending, j.cfg.VersionBudget)
	}
}

// TestOutcomeGracePeriod verifies a fill is not stopped out by its own entry
// noise inside the first five minutes
func TestOutcomeGracePeriod(t *testing.T) {
	j := newTestJournal()
	base := time.Date(2026, 8, 25, 15, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return base }

	adm := j.Open(longSetup("AAPL", 100, 99, 102, 104), 100, nil)
	if !adm.Admitted {
		t.Fatalf("open rejected: %s", adm.Reason)
	}

	j.now = func() time.Time { return base.Add(2 * time.Minute) }
	if closed := j.CheckOutcomes(map[string]float64{"AAPL": 98.5}); len(closed) != 0 {
		t.Fatalf("closed %d trades inside grace period, want 0", len(closed))
	}
	if adm.Trade.Status != StatusPending {
		t.Fatalf("status = %s inside grace period, want PENDING", adm.Trade.Status)
	}

	j.now = func() time.Time { return base.Add(6 * time.Minute) }
	closed := j.CheckOutcomes(map[string]float64{"AAPL": 98.5})
	if len(closed) != 1 || closed[0].Status != StatusLossStop {
		t.Fatalf("closed = %+v, want one LOSS_STOP", closed)
	}
	if closed[0].PnLPct >= 0 {
		t.Errorf("stop-out pnl = %v, want negative", closed[0].PnLPct)
	}
}

func TestOutcomeStopBeforeTarget(t *testing.T) {
	j := newTestJournal()
	base := time.Date(2026, 8, 25, 15, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return base }

	short := longSetup("SPY", 100, 102, 98, 96)
	short.Direction = market.Short
	adm := j.Open(short, 100, nil)
	if !adm.Admitted {
		t.Fatalf("open rejected: %s", adm.Reason)
	}

	j.now = func() time.Time { return base.Add(10 * time.Minute) }
	closed := j.CheckOutcomes(map[string]float64{"SPY": 103})
	if len(closed) != 1 || closed[0].Status != StatusLossStop {
		t.Fatalf("short above stop = %+v, want LOSS_STOP", closed)
	}
}

func TestOutcomeTargetsAndExpiry(t *testing.T) {
	j := newTestJournal()
	base := time.Date(2026, 8, 25, 15, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return base }

	j.Open(longSetup("AAPL", 100, 99, 102, 104), 100, nil)

	j.now = func() time.Time { return base.Add(2 * time.Hour) }
	closed := j.CheckOutcomes(map[string]float64{"AAPL": 102.5})
	if len(closed) != 1 || closed[0].Status != StatusWinT1 {
		t.Fatalf("t1 touch = %+v, want WIN_T1", closed)
	}

	adm := j.Open(longSetup("MSFT", 500, 495, 510, 520), 500, nil)
	if !adm.Admitted {
		t.Fatalf("open rejected: %s", adm.Reason)
	}

	// never reaches a level, ages out after five days
	j.now = func() time.Time { return base.Add(6 * 24 * time.Hour) }
	closed = j.CheckOutcomes(map[string]float64{"MSFT": 502})
	if len(closed) != 1 || closed[0].Status != StatusExpired {
		t.Fatalf("stale trade = %+v, want EXPIRED", closed)
	}
}

func TestCloseIntradayAtSessionEnd(t *testing.T) {
	j := newTestJournal()
	base := time.Date(2026, 8, 25, 15, 55, 0, 0, time.UTC)
	j.now = func() time.Time { return base }

	day := longSetup("AAPL", 100, 99, 102, 104)
	day.Horizon = market.HorizonDayTrade
	swing := longSetup("MSFT", 500, 495, 510, 520)

	j.Open(day, 100, nil)
	j.Open(swing, 500, nil)

	closed := j.CloseIntraday(map[string]float64{"AAPL": 100.8, "MSFT": 505})
	if len(closed) != 1 {
		t.Fatalf("closed %d trades, want 1 (swing stays open)", len(closed))
	}
	if closed[0].Ticker != "AAPL" || closed[0].Status != StatusWinEOD {
		t.Errorf("eod close = %s/%s, want AAPL/WIN_EOD", closed[0].Ticker, closed[0].Status)
	}

	// the negative side
	j2 := newTestJournal()
	j2.now = func() time.Time { return base }
	day2 := longSetup("TSLA", 200, 198, 204, 208)
	day2.Horizon = market.HorizonScalp
	j2.Open(day2, 200, nil)
	closed = j2.CloseIntraday(map[string]float64{"TSLA": 199})
	if len(closed) != 1 || closed[0].Status != StatusLossEOD {
		t.Fatalf("losing eod close = %+v, want LOSS_EOD", closed)
	}
}

func TestTrainingDataLabels(t *testing.T) {
	j := newTestJournal()
	j.trades = []*Trade{
		{Status: StatusWinT2, Features: []float64{1, 2}},
		{Status: StatusLossStop, Features: []float64{3, 4}},
		{Status: StatusExpired, Features: []float64{5, 6}}, // no verdict
		{Status: StatusPending, Features: []float64{7, 8}}, // not decided
		{Status: StatusWinT1},                              // no features
	}

	samples := j.TrainingData()
	if len(samples) != 2 {
		t.Fatalf("samples = %d, want 2", len(samples))
	}
	if samples[0].Label != 1 || samples[1].Label != 0 {
		t.Errorf("labels = %v/%v, want 1/0", samples[0].Label, samples[1].Label)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trade-journal.json")

	j := newTestJournal()
	base := time.Date(2026, 8, 25, 15, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return base }
	j.Open(longSetup("AAPL", 100, 99, 102, 104), 100, []float64{0.5, -0.5})

	j.now = func() time.Time { return base.Add(time.Hour) }
	j.CheckOutcomes(map[string]float64{"AAPL": 104.5})

	if err := j.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	j2 := newTestJournal()
	if err := j2.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}

	got := j2.Trades()
	if len(got) != 1 {
		t.Fatalf("loaded %d trades, want 1", len(got))
	}
	if got[0].Status != StatusWinT2 || !approx(got[0].ExitPrice, 104.5) {
		t.Errorf("loaded trade = %s@%v, want WIN_T2@104.5", got[0].Status, got[0].ExitPrice)
	}
	if len(got[0].Features) != 2 {
		t.Errorf("features not persisted: %v", got[0].Features)
	}
}

func TestLoadMissingFileIsCleanStart(t *testing.T) {
	j := newTestJournal()
	if err := j.Load(filepath.Join(t.TempDir(), "absent.json")); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(j.Trades()) != 0 {
		t.Error("expected empty ledger")
	}
}
