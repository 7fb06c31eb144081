package upstream

import (
	"context"
	"sync"
	"time"
)

// Default sliding-window sizing: the vendor ceiling is ~120 requests/min, we
// cap ourselves at 100/min for headroom.
const (
	DefaultWindowLimit = 100
	DefaultWindow      = time.Minute

	// Slack added past the oldest entry's expiry before retrying a full window
	windowSlack = 50 * time.Millisecond
)

// SlidingWindow is a sliding-window rate limiter. Request timestamps are kept
// in a deque; before each acquire, entries older than the window are trimmed.
// When the window is full, Acquire blocks until the oldest entry expires plus
// a small slack.
type SlidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	stamps []time.Time
}

// NewSlidingWindow creates a limiter allowing `limit` acquisitions per window
func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	if limit <= 0 {
		limit = DefaultWindowLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &SlidingWindow{
		limit:  limit,
		window: window,
	}
}

// Acquire blocks until a slot is available or the context is cancelled. On
// success the current timestamp is recorded in the window.
func (s *SlidingWindow) Acquire(ctx context.Context) error {
	for {
		s.mu.Lock()
		now := time.Now()
		s.trim(now)

		if len(s.stamps) < s.limit {
			s.stamps = append(s.stamps, now)
			s.mu.Unlock()
			return nil
		}

		wait := s.stamps[0].Add(s.window).Sub(now) + windowSlack
		s.mu.Unlock()

		if wait < 0 {
			wait = windowSlack
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// InWindow returns the number of requests currently inside the window
func (s *SlidingWindow) InWindow() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trim(time.Now())
	return len(s.stamps)
}

// trim drops entries older than the window. Caller must hold the lock.
func (s *SlidingWindow) trim(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(s.stamps) && !s.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		s.stamps = s.stamps[i:]
	}
}
