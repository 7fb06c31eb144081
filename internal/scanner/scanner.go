package scanner

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"market-intel-bot/internal/logging"
	"market-intel-bot/internal/market"
	"market-intel-bot/internal/state"
)

// Harvest weights per source
const (
	weightSweep       = 2.0
	weightPremiumHigh = 2.0 // premium > $1M
	weightPremiumMid  = 1.0 // premium > $500k
	weightDarkPool    = 3.0 // notional > $5M
	weightNews        = 0.5
	weightInsider     = 1.0

	premiumMidFloor  = 500_000
	premiumHighFloor = 1_000_000
	darkPoolFloor    = 5_000_000
)

// Defaults
const (
	DefaultMinConfidence = 40.0
	DefaultMaxCandidates = 5
	DefaultCooldown      = 30 * time.Minute
	DefaultTopN          = 3

	// MaxDiscoveries bounds the merged result list
	MaxDiscoveries = 20

	// quick-score pacing between candidate evaluations
	scoreSpacing = 2 * time.Second
)

// denyList excludes index products and broad ETFs from discovery
var denyList = map[string]bool{
	"SPY": true, "QQQ": true, "IWM": true, "DIA": true, "VIX": true,
	"UVXY": true, "SQQQ": true, "TQQQ": true, "SPXS": true, "SPXL": true,
	"XLF": true, "XLE": true, "XLK": true, "GLD": true, "SLV": true,
	"TLT": true, "HYG": true, "EEM": true, "FXI": true, "ARKK": true,
}

// Config tunes the scanner
type Config struct {
	MinConfidence float64
	MaxCandidates int
	Cooldown      time.Duration
	TopN          int
}

// DefaultConfig returns production settings
func DefaultConfig() Config {
	return Config{
		MinConfidence: DefaultMinConfidence,
		MaxCandidates: DefaultMaxCandidates,
		Cooldown:      DefaultCooldown,
		TopN:          DefaultTopN,
	}
}

// QuickScorer runs the reduced signal pipeline for one off-watchlist ticker
// using only the cheap endpoints. nil result means no usable signal.
type QuickScorer func(ctx context.Context, ticker string) (*market.SignalResult, error)

// Candidate is one harvested ticker with its accumulated source weight
type Candidate struct {
	Ticker  string
	Weight  float64
	Sources []string
}

// Scanner harvests the market-wide feeds for off-watchlist movers, scores
// the strongest few, and surfaces cooled-down discoveries.
type Scanner struct {
	cfg    Config
	score  QuickScorer
	logger *logging.Logger
	pace   *rate.Limiter

	mu        sync.Mutex
	lastAlert map[string]time.Time

	now func() time.Time
}

// New creates a scanner
func New(cfg Config, score QuickScorer, logger *logging.Logger) *Scanner {
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = DefaultMinConfidence
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultMaxCandidates
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
	return &Scanner{
		cfg:       cfg,
		score:     score,
		logger:    logger.WithComponent("scanner"),
		pace:      rate.NewLimiter(rate.Every(scoreSpacing), 1),
		lastAlert: map[string]time.Time{},
		now:       time.Now,
	}
}

// Harvest accumulates weighted counts per ticker across the market-wide
// feeds, excluding watchlist members and the index deny-list. An empty
// snapshot yields an empty candidate list.
func Harvest(snap *state.State, watchlist []string) []Candidate {
	onWatch := make(map[string]bool, len(watchlist))
	for _, t := range watchlist {
		onWatch[t] = true
	}

	type acc struct {
		weight  float64
		sources map[string]bool
	}
	weights := map[string]*acc{}

	bump := func(ticker, source string, w float64) {
		if ticker == "" || onWatch[ticker] || denyList[ticker] || w <= 0 {
			return
		}
		a := weights[ticker]
		if a == nil {
			a = &acc{sources: map[string]bool{}}
			weights[ticker] = a
		}
		a.weight += w
		a.sources[source] = true
	}

	for _, item := range snap.OptionsFlow {
		w := 0.0
		if item.Execution == "sweep" {
			w += weightSweep
		}
		switch {
		case item.Premium > premiumHighFloor:
			w += weightPremiumHigh
		case item.Premium > premiumMidFloor:
			w += weightPremiumMid
		}
		bump(item.Ticker, "flow", w)
	}

	for _, p := range snap.DarkPoolRecent {
		if p.Premium > darkPoolFloor {
			bump(p.Ticker, "darkpool", weightDarkPool)
		}
	}

	for _, row := range snap.TopNetImpact {
		if row.NetImpact != 0 {
			bump(row.Ticker, "net_impact", 1)
		}
	}

	for _, txs := range snap.Insider {
		for _, item := range txs {
			bump(item.Ticker, "insider", weightInsider)
		}
	}

	for _, item := range snap.News {
		for _, ticker := range item.Tickers {
			bump(ticker, "news", weightNews)
		}
	}

	for _, m := range snap.Movers {
		bump(m.Ticker, "movers", math.Abs(m.ChangePercent))
	}

	out := make([]Candidate, 0, len(weights))
	for ticker, a := range weights {
		sources := make([]string, 0, len(a.sources))
		for s := range a.sources {
			sources = append(sources, s)
		}
		sort.Strings(sources)
		out = append(out, Candidate{Ticker: ticker, Weight: a.weight, Sources: sources})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Ticker < out[j].Ticker
	})
	return out
}

// Scan harvests, quick-scores the strongest candidates with inter-call
// pacing, and returns the cooled-down discoveries above the confidence
// threshold.
func (s *Scanner) Scan(ctx context.Context, snap *state.State, watchlist []string) []market.Discovery {
	candidates := Harvest(snap, watchlist)
	if len(candidates) > s.cfg.MaxCandidates {
		candidates = candidates[:s.cfg.MaxCandidates]
	}

	var out []market.Discovery
	scored := 0
	for _, cand := range candidates {
		if scored >= s.cfg.TopN {
			break
		}
		if !s.offCooldown(cand.Ticker) {
			continue
		}
		if err := s.pace.Wait(ctx); err != nil {
			break
		}
		scored++

		res, err := s.score(ctx, cand.Ticker)
		if err != nil || res == nil {
			continue
		}
		if res.Confidence < s.cfg.MinConfidence || res.Direction == market.Neutral {
			continue
		}

		s.armCooldown(cand.Ticker)
		out = append(out, market.Discovery{
			Ticker:     cand.Ticker,
			Sources:    cand.Sources,
			Weight:     cand.Weight,
			Direction:  res.Direction,
			Confidence: res.Confidence,
			FoundAt:    s.now().UTC(),
		})
		s.logger.Info("discovery", "ticker", cand.Ticker,
			"confidence", res.Confidence, "weight", cand.Weight)
	}
	return out
}

// Merge replaces prior discoveries for the same tickers and truncates to the
// newest MaxDiscoveries entries.
func Merge(existing, fresh []market.Discovery) []market.Discovery {
	replaced := make(map[string]bool, len(fresh))
	for _, d := range fresh {
		replaced[d.Ticker] = true
	}

	merged := make([]market.Discovery, 0, len(existing)+len(fresh))
	merged = append(merged, fresh...)
	for _, d := range existing {
		if !replaced[d.Ticker] {
			merged = append(merged, d)
		}
	}
	if len(merged) > MaxDiscoveries {
		merged = merged[:MaxDiscoveries]
	}
	return merged
}

func (s *Scanner) offCooldown(ticker string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastAlert[ticker]
	return !ok || s.now().Sub(last) >= s.cfg.Cooldown
}

func (s *Scanner) armCooldown(ticker string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAlert[ticker] = s.now()
}
