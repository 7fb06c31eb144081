package scanner

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"market-intel-bot/internal/logging"
	"market-intel-bot/internal/market"
	"market-intel-bot/internal/state"
)

func TestHarvestEmptySnapshot(t *testing.T) {
	if got := Harvest(state.NewState(), []string{"AAPL"}); len(got) != 0 {
		t.Errorf("empty snapshot harvested %d candidates, want 0", len(got))
	}
}

func TestHarvestWeights(t *testing.T) {
	s := state.NewState()
	s.OptionsFlow = []market.FlowItem{
		// sweep (2) + premium > $1M (2) = 4
		{Ticker: "PLTR", Premium: 1_500_000, Execution: "sweep"},
		// premium > $500k only = 1
		{Ticker: "SOFI", Premium: 600_000, Execution: "lit"},
	}
	s.DarkPoolRecent = []market.DarkPoolPrint{
		{Ticker: "PLTR", Premium: 6_000_000}, // +3
		{Ticker: "HOOD", Premium: 1_000_000}, // below $5M floor
	}
	s.News = []market.NewsItem{
		{Tickers: []string{"SOFI"}}, // +0.5
	}
	s.Movers = []market.Mover{
		{Ticker: "RIVN", ChangePercent: -8.2}, // +8.2 by |%change|
	}

	cands := Harvest(s, nil)
	byTicker := map[string]Candidate{}
	for _, c := range cands {
		byTicker[c.Ticker] = c
	}

	if got := byTicker["PLTR"].Weight; got != 7 {
		t.Errorf("PLTR weight = %v, want 7", got)
	}
	if got := byTicker["SOFI"].Weight; got != 1.5 {
		t.Errorf("SOFI weight = %v, want 1.5", got)
	}
	if got := byTicker["RIVN"].Weight; got != 8.2 {
		t.Errorf("RIVN weight = %v, want 8.2", got)
	}
	if _, ok := byTicker["HOOD"]; ok {
		t.Error("HOOD below every floor should not be harvested")
	}

	// strongest first
	if cands[0].Ticker != "RIVN" {
		t.Errorf("top candidate = %s, want RIVN", cands[0].Ticker)
	}
}

func TestHarvestExcludesWatchlistAndDenyList(t *testing.T) {
	s := state.NewState()
	s.OptionsFlow = []market.FlowItem{
		{Ticker: "AAPL", Premium: 2_000_000, Execution: "sweep"},
		{Ticker: "SPY", Premium: 2_000_000, Execution: "sweep"},
		{Ticker: "PLTR", Premium: 2_000_000, Execution: "sweep"},
	}

	cands := Harvest(s, []string{"AAPL"})
	if len(cands) != 1 || cands[0].Ticker != "PLTR" {
		t.Errorf("candidates = %+v, want only PLTR", cands)
	}
}

func TestScanFiltersByConfidence(t *testing.T) {
	s := state.NewState()
	s.OptionsFlow = []market.FlowItem{
		{Ticker: "PLTR", Premium: 2_000_000, Execution: "sweep"},
		{Ticker: "SOFI", Premium: 2_000_000, Execution: "sweep"},
	}

	score := func(_ context.Context, ticker string) (*market.SignalResult, error) {
		conf := 70.0
		if ticker == "SOFI" {
			conf = 30.0 // below threshold
		}
		return &market.SignalResult{Ticker: ticker, Direction: market.Bullish, Confidence: conf}, nil
	}

	sc := New(DefaultConfig(), score, logging.Default())
	sc.pace.SetLimit(rate.Inf)

	found := sc.Scan(context.Background(), s, nil)
	if len(found) != 1 || found[0].Ticker != "PLTR" {
		t.Fatalf("discoveries = %+v, want only PLTR", found)
	}
	if found[0].Confidence != 70 {
		t.Errorf("confidence = %v, want 70", found[0].Confidence)
	}
}

func TestScanCooldownSuppressesRepeat(t *testing.T) {
	s := state.NewState()
	s.OptionsFlow = []market.FlowItem{
		{Ticker: "PLTR", Premium: 2_000_000, Execution: "sweep"},
	}

	score := func(_ context.Context, ticker string) (*market.SignalResult, error) {
		return &market.SignalResult{Ticker: ticker, Direction: market.Bullish, Confidence: 80}, nil
	}

	sc := New(DefaultConfig(), score, logging.Default())
	sc.pace.SetLimit(rate.Inf)

	base := time.Date(2026, 8, 25, 11, 0, 0, 0, time.UTC)
	sc.now = func() time.Time { return base }

	if got := len(sc.Scan(context.Background(), s, nil)); got != 1 {
		t.Fatalf("first scan found %d, want 1", got)
	}

	sc.now = func() time.Time { return base.Add(10 * time.Minute) }
	if got := len(sc.Scan(context.Background(), s, nil)); got != 0 {
		t.Errorf("scan within cooldown found %d, want 0", got)
	}

	sc.now = func() time.Time { return base.Add(31 * time.Minute) }
	if got := len(sc.Scan(context.Background(), s, nil)); got != 1 {
		t.Errorf("scan after cooldown found %d, want 1", got)
	}
}

func TestMergeReplacesAndTruncates(t *testing.T) {
	now := time.Now()
	existing := []market.Discovery{
		{Ticker: "PLTR", Confidence: 50, FoundAt: now.Add(-time.Hour)},
		{Ticker: "SOFI", Confidence: 45, FoundAt: now.Add(-time.Hour)},
	}
	fresh := []market.Discovery{
		{Ticker: "PLTR", Confidence: 75, FoundAt: now},
	}

	merged := Merge(existing, fresh)
	if len(merged) != 2 {
		t.Fatalf("merged len = %d, want 2", len(merged))
	}
	if merged[0].Ticker != "PLTR" || merged[0].Confidence != 75 {
		t.Errorf("PLTR entry not replaced: %+v", merged[0])
	}

	// truncation
	big := make([]market.Discovery, MaxDiscoveries+5)
	for i := range big {
		big[i] = market.Discovery{Ticker: string(rune('A' + i))}
	}
	if got := len(Merge(big, nil)); got != MaxDiscoveries {
		t.Errorf("merged len = %d, want %d", got, MaxDiscoveries)
	}
}
