package scheduler

import (
	"testing"
	"time"

	"market-intel-bot/internal/logging"
)

func newTestScheduler(t *testing.T, cfg Config) *Scheduler {
	t.Helper()
	s, err := New(cfg, logging.Default())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return s
}

// etTime builds an ET instant for session table tests
func etTime(t *testing.T, year int, month time.Month, day, hour, min int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load tz: %v", err)
	}
	return time.Date(year, month, day, hour, min, 0, 0, loc)
}

func TestSessionWindows(t *testing.T) {
	// 2026-08-25 is a Tuesday
	cases := []struct {
		hour, min int
		want      Session
	}{
		{4, 0, Overnight},
		{8, 29, Overnight},
		{8, 30, PreMarket},
		{9, 0, PreMarket},
		{9, 1, OpenRush},
		{9, 20, OpenRush},
		{9, 21, PowerOpen},
		{10, 0, PowerOpen},
		{10, 1, Midday},
		{15, 0, Midday},
		{15, 1, PowerHour},
		{16, 15, PowerHour},
		{16, 16, AfterHours},
		{17, 0, AfterHours},
		{17, 1, Overnight},
		{23, 30, Overnight},
	}

	for _, tc := range cases {
		got := SessionAt(etTime(t, 2026, time.August, 25, tc.hour, tc.min))
		if got != tc.want {
			t.Errorf("%02d:%02d = %s, want %s", tc.hour, tc.min, got, tc.want)
		}
	}
}

func TestSessionWeekendAndHoliday(t *testing.T) {
	// Saturday midday
	if got := SessionAt(etTime(t, 2026, time.August, 22, 12, 0)); got != Overnight {
		t.Errorf("saturday = %s, want OVERNIGHT", got)
	}
	// Independence Day observed 2026-07-03, a Friday
	if got := SessionAt(etTime(t, 2026, time.July, 3, 12, 0)); got != Overnight {
		t.Errorf("holiday = %s, want OVERNIGHT", got)
	}
}

func TestCadencePerSession(t *testing.T) {
	cases := []struct {
		session Session
		want    time.Duration
	}{
		{Overnight, 60 * time.Minute},
		{PreMarket, 10 * time.Minute},
		{OpenRush, 5 * time.Minute},
		{PowerOpen, 1 * time.Minute},
		{Midday, 10 * time.Minute},
		{PowerHour, 5 * time.Minute},
		{AfterHours, 10 * time.Minute},
	}
	for _, tc := range cases {
		if got := Cadence(tc.session); got != tc.want {
			t.Errorf("cadence(%s) = %v, want %v", tc.session, got, tc.want)
		}
	}
}

func TestTierSequence(t *testing.T) {
	s := newTestScheduler(t, Config{DailyLimit: 1000, SafetyMargin: 0.9, WarmEvery: 5, ColdEvery: 15})

	want := []Tier{
		TierHot, TierHot, TierHot, TierHot, TierWarm,
		TierHot, TierHot, TierHot, TierHot, TierWarm,
		TierHot, TierHot, TierHot, TierHot, TierCold,
	}
	for i, w := range want {
		if got := s.NextTier(); got != w {
			t.Errorf("cycle %d tier = %s, want %s", i+1, got, w)
		}
	}
}

func TestTierCumulative(t *testing.T) {
	if !TierCold.Includes(TierWarm) || !TierCold.Includes(TierHot) {
		t.Error("COLD should include WARM and HOT")
	}
	if !TierWarm.Includes(TierHot) {
		t.Error("WARM should include HOT")
	}
	if TierHot.Includes(TierWarm) || TierWarm.Includes(TierCold) {
		t.Error("lower tiers must not include higher ones")
	}
}

// TestBudgetForcesHotTier: with limit 100 and margin 0.5, 50 successful calls
// exhaust the budget and the next WARM/COLD cycle is forced to HOT
func TestBudgetForcesHotTier(t *testing.T) {
	s := newTestScheduler(t, Config{DailyLimit: 100, SafetyMargin: 0.5, WarmEvery: 5, ColdEvery: 15})

	for i := 0; i < 49; i++ {
		s.RecordCall()
	}
	if !s.IsWithinBudget() {
		t.Fatal("49 of 50 used, should still be within budget")
	}

	s.RecordCall()
	if s.IsWithinBudget() {
		t.Fatal("50 of 50 used, should be over budget")
	}

	// advance to cycle 5, normally WARM
	for i := 0; i < 4; i++ {
		s.NextTier()
	}
	if got := s.NextTier(); got != TierHot {
		t.Errorf("over-budget cycle 5 tier = %s, want HOT", got)
	}
}

func TestDailyRolloverIdempotent(t *testing.T) {
	s := newTestScheduler(t, Config{DailyLimit: 1000, SafetyMargin: 0.9, WarmEvery: 5, ColdEvery: 15})

	day1 := etTime(t, 2026, time.August, 25, 12, 0)
	s.now = func() time.Time { return day1 }
	s.lastResetDate = s.estDate()

	s.RecordCall()
	s.RecordCall()
	if _, daily, _ := s.Counters(); daily != 2 {
		t.Fatalf("daily = %d, want 2", daily)
	}

	day2 := etTime(t, 2026, time.August, 26, 1, 0)
	s.now = func() time.Time { return day2 }

	if _, daily, date := s.Counters(); daily != 0 || date != "2026-08-26" {
		t.Errorf("after rollover daily = %d date = %s, want 0 / 2026-08-26", daily, date)
	}

	// repeated checks on the same date must not reset again
	s.RecordCall()
	if _, daily, _ := s.Counters(); daily != 1 {
		t.Errorf("daily = %d after second rollover check, want 1", daily)
	}
}

func TestRestoreCounters(t *testing.T) {
	s := newTestScheduler(t, Config{DailyLimit: 1000, SafetyMargin: 0.9, WarmEvery: 5, ColdEvery: 15})

	fixed := etTime(t, 2026, time.August, 25, 12, 0)
	s.now = func() time.Time { return fixed }

	s.RestoreCounters(42, 300, "2026-08-25")
	cycle, daily, _ := s.Counters()
	if cycle != 42 || daily != 300 {
		t.Errorf("same-day restore: cycle=%d daily=%d, want 42/300", cycle, daily)
	}

	s.RestoreCounters(42, 300, "2026-08-24")
	cycle, daily, date := s.Counters()
	if cycle != 42 || daily != 0 || date != "2026-08-25" {
		t.Errorf("stale restore: cycle=%d daily=%d date=%s, want 42/0/2026-08-25", cycle, daily, date)
	}
}

func TestEndpointTierSets(t *testing.T) {
	hot := PerTickerEndpoints(TierHot)
	warm := PerTickerEndpoints(TierWarm)
	cold := PerTickerEndpoints(TierCold)

	if len(hot) != 6 || len(warm) != 10 || len(cold) != 14 {
		t.Errorf("per-ticker set sizes = %d/%d/%d, want 6/10/14", len(hot), len(warm), len(cold))
	}

	// cumulative: every HOT endpoint appears in WARM and COLD sets
	inSet := func(eps []Endpoint, name string) bool {
		for _, ep := range eps {
			if ep.Name == name {
				return true
			}
		}
		return false
	}
	for _, ep := range hot {
		if !inSet(warm, ep.Name) || !inSet(cold, ep.Name) {
			t.Errorf("HOT endpoint %s missing from cumulative set", ep.Name)
		}
	}

	if inSet(hot, "short_interest") {
		t.Error("COLD endpoint short_interest should not be in the HOT set")
	}
	if !inSet(cold, "short_interest") {
		t.Error("short_interest should be in the COLD set")
	}

	if mkt := MarketEndpoints(TierHot); len(mkt) != 6 {
		t.Errorf("market HOT set size = %d, want 6", len(mkt))
	}
}

func TestIsTradingSession(t *testing.T) {
	if Overnight.IsTrading() {
		t.Error("OVERNIGHT must not be a trading session")
	}
	for _, s := range []Session{PreMarket, OpenRush, PowerOpen, Midday, PowerHour, AfterHours} {
		if !s.IsTrading() {
			t.Errorf("%s should be a trading session", s)
		}
	}
}
