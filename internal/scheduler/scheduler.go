package scheduler

import (
	"sync"
	"time"

	"market-intel-bot/internal/logging"
)

// Tier is the depth of a poll cycle. Tiers are cumulative: WARM includes HOT,
// COLD includes both.
type Tier string

const (
	TierHot  Tier = "HOT"
	TierWarm Tier = "WARM"
	TierCold Tier = "COLD"
)

// Includes reports whether a cycle at tier t should also run endpoints tagged
// `other`
func (t Tier) Includes(other Tier) bool {
	rank := map[Tier]int{TierHot: 0, TierWarm: 1, TierCold: 2}
	return rank[t] >= rank[other]
}

// Config holds the tunable scheduler knobs
type Config struct {
	DailyLimit   int     // API calls per ET day
	SafetyMargin float64 // fraction of the limit we allow ourselves to use
	WarmEvery    int     // every Nth cycle is WARM
	ColdEvery    int     // every Nth cycle is COLD
}

// DefaultConfig mirrors the production budget: 15k calls/day at 90% headroom
func DefaultConfig() Config {
	return Config{
		DailyLimit:   15000,
		SafetyMargin: 0.90,
		WarmEvery:    5,
		ColdEvery:    15,
	}
}

// Scheduler owns the cycle counter, tier derivation, and the daily call
// budget. All methods are safe for concurrent use; the REST client's success
// hook calls RecordCall from fetch goroutines.
type Scheduler struct {
	mu  sync.Mutex
	cfg Config
	loc *time.Location
	log *logging.Logger

	cycleCount     int
	dailyCallCount int
	lastResetDate  string // ET date, YYYY-MM-DD

	now func() time.Time
}

// New creates a scheduler. It needs the America/New_York zone; a host without
// tzdata cannot schedule market sessions, so that failure is fatal upstream.
func New(cfg Config, logger *logging.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, err
	}
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = DefaultConfig().DailyLimit
	}
	if cfg.SafetyMargin <= 0 || cfg.SafetyMargin > 1 {
		cfg.SafetyMargin = DefaultConfig().SafetyMargin
	}
	if cfg.WarmEvery <= 0 {
		cfg.WarmEvery = DefaultConfig().WarmEvery
	}
	if cfg.ColdEvery <= 0 {
		cfg.ColdEvery = DefaultConfig().ColdEvery
	}

	s := &Scheduler{
		cfg: cfg,
		loc: loc,
		log: logger.WithComponent("scheduler"),
		now: time.Now,
	}
	s.lastResetDate = s.estDate()
	return s, nil
}

// CurrentSession resolves the session for the current ET wall clock
func (s *Scheduler) CurrentSession() Session {
	return SessionAt(s.now().In(s.loc))
}

// CycleCadence returns the poll interval for the current session
func (s *Scheduler) CycleCadence() time.Duration {
	return Cadence(s.CurrentSession())
}

// IsTradingSession reports whether paper trades may open right now
func (s *Scheduler) IsTradingSession() bool {
	return s.CurrentSession().IsTrading()
}

// NextTier advances the cycle counter and derives the new cycle's tier:
// every coldEvery-th cycle is COLD, every warmEvery-th non-COLD cycle is
// WARM, everything else is HOT. When the budget is exhausted the tier is
// forced down to HOT regardless of the counter.
func (s *Scheduler) NextTier() Tier {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolloverLocked()

	s.cycleCount++

	tier := TierHot
	switch {
	case s.cycleCount%s.cfg.ColdEvery == 0:
		tier = TierCold
	case s.cycleCount%s.cfg.WarmEvery == 0:
		tier = TierWarm
	}

	if tier != TierHot && !s.withinBudgetLocked() {
		s.log.Warn("budget exhausted, downgrading cycle",
			"wanted", string(tier), "used", s.dailyCallCount, "limit", s.cfg.DailyLimit)
		tier = TierHot
	}
	return tier
}

// RecordCall counts one successful upstream call against today's budget
func (s *Scheduler) RecordCall() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolloverLocked()
	s.dailyCallCount++
}

// IsWithinBudget reports whether today's usage is still under
// limit × safetyMargin
func (s *Scheduler) IsWithinBudget() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolloverLocked()
	return s.withinBudgetLocked()
}

func (s *Scheduler) withinBudgetLocked() bool {
	ceiling := float64(s.cfg.DailyLimit) * s.cfg.SafetyMargin
	return float64(s.dailyCallCount) < ceiling
}

// Counters returns the persistable counter set
func (s *Scheduler) Counters() (cycleCount, dailyCallCount int, lastResetDate string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolloverLocked()
	return s.cycleCount, s.dailyCallCount, s.lastResetDate
}

// RestoreCounters reloads persisted counters. The daily call count only
// survives a restart when the saved ET date is still today; a stale snapshot
// starts the day fresh. The cycle counter always survives so tier cadence is
// not biased toward COLD after restarts.
func (s *Scheduler) RestoreCounters(cycleCount, dailyCallCount int, savedDate string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cycleCount = cycleCount
	today := s.estDate()
	if savedDate == today {
		s.dailyCallCount = dailyCallCount
		s.lastResetDate = savedDate
		s.log.Info("restored daily budget counter", "used", dailyCallCount, "date", savedDate)
		return
	}
	s.dailyCallCount = 0
	s.lastResetDate = today
}

// rolloverLocked zeroes the daily counter when the ET date changes. Calling
// it repeatedly on the same date is a no-op. Caller must hold the lock.
func (s *Scheduler) rolloverLocked() {
	today := s.estDate()
	if today == s.lastResetDate {
		return
	}
	s.log.Info("daily budget reset", "previous_date", s.lastResetDate, "used", s.dailyCallCount)
	s.dailyCallCount = 0
	s.lastResetDate = today
}

func (s *Scheduler) estDate() string {
	return s.now().In(s.loc).Format("2006-01-02")
}
