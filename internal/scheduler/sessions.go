package scheduler

import "time"

// Session is the clock-based market phase. It is a function of the
// America/New_York wall clock only; weekends and market holidays degrade to
// OVERNIGHT.
type Session string

const (
	Overnight  Session = "OVERNIGHT"
	PreMarket  Session = "PRE_MARKET"
	OpenRush   Session = "OPEN_RUSH"
	PowerOpen  Session = "POWER_OPEN"
	Midday     Session = "MIDDAY"
	PowerHour  Session = "POWER_HOUR"
	AfterHours Session = "AFTER_HOURS"
)

// sessionWindow is an inclusive minute-of-day range in ET
type sessionWindow struct {
	session  Session
	startMin int
	endMin   int
}

var sessionWindows = []sessionWindow{
	{PreMarket, 8*60 + 30, 9 * 60},     // 08:30-09:00
	{OpenRush, 9*60 + 1, 9*60 + 20},    // 09:01-09:20
	{PowerOpen, 9*60 + 21, 10 * 60},    // 09:21-10:00
	{Midday, 10*60 + 1, 15 * 60},       // 10:01-15:00
	{PowerHour, 15*60 + 1, 16*60 + 15}, // 15:01-16:15
	{AfterHours, 16*60 + 16, 17 * 60},  // 16:16-17:00
}

// sessionCadence is the base poll interval per session
var sessionCadence = map[Session]time.Duration{
	Overnight:  60 * time.Minute,
	PreMarket:  10 * time.Minute,
	OpenRush:   5 * time.Minute,
	PowerOpen:  1 * time.Minute,
	Midday:     10 * time.Minute,
	PowerHour:  5 * time.Minute,
	AfterHours: 10 * time.Minute,
}

// marketHolidays are full-closure NYSE dates (ET, YYYY-MM-DD)
var marketHolidays = map[string]bool{
	"2025-01-01": true, "2025-01-09": true, "2025-01-20": true,
	"2025-02-17": true, "2025-04-18": true, "2025-05-26": true,
	"2025-06-19": true, "2025-07-04": true, "2025-09-01": true,
	"2025-11-27": true, "2025-12-25": true,
	"2026-01-01": true, "2026-01-19": true, "2026-02-16": true,
	"2026-04-03": true, "2026-05-25": true, "2026-06-19": true,
	"2026-07-03": true, "2026-09-07": true, "2026-11-26": true,
	"2026-12-25": true,
}

// SessionAt resolves the session for an instant, already shifted to ET
func SessionAt(et time.Time) Session {
	if et.Weekday() == time.Saturday || et.Weekday() == time.Sunday {
		return Overnight
	}
	if marketHolidays[et.Format("2006-01-02")] {
		return Overnight
	}

	minute := et.Hour()*60 + et.Minute()
	for _, w := range sessionWindows {
		if minute >= w.startMin && minute <= w.endMin {
			return w.session
		}
	}
	return Overnight
}

// Cadence returns the base poll interval for a session
func Cadence(s Session) time.Duration {
	if d, ok := sessionCadence[s]; ok {
		return d
	}
	return sessionCadence[Overnight]
}

// IsTrading reports whether the session is part of the tradeable day.
// OVERNIGHT (and therefore weekends and holidays) is not.
func (s Session) IsTrading() bool {
	return s != Overnight
}
