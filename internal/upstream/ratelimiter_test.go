package upstream

import (
	"context"
	"testing"
	"time"
)

// TestSlidingWindowAllowsUpToLimit verifies the first `limit` acquisitions go
// through without blocking
func TestSlidingWindowAllowsUpToLimit(t *testing.T) {
	lim := NewSlidingWindow(3, time.Second)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := lim.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("first 3 acquisitions took %v, should be immediate", elapsed)
	}
	if got := lim.InWindow(); got != 3 {
		t.Errorf("in-window = %d, want 3", got)
	}
}

// TestSlidingWindowBlocksWhenFull verifies the next acquisition waits for the
// oldest entry to leave the window
func TestSlidingWindowBlocksWhenFull(t *testing.T) {
	lim := NewSlidingWindow(2, 200*time.Millisecond)
	ctx := context.Background()

	lim.Acquire(ctx)
	lim.Acquire(ctx)

	start := time.Now()
	if err := lim.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("third acquire returned after %v, should have blocked ~200ms", elapsed)
	}
}

// TestSlidingWindowNeverExceedsLimit verifies the rolling-window invariant
// under rapid acquisition
func TestSlidingWindowNeverExceedsLimit(t *testing.T) {
	lim := NewSlidingWindow(5, 150*time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		if err := lim.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		if got := lim.InWindow(); got > 5 {
			t.Fatalf("in-window = %d after acquire %d, limit is 5", got, i)
		}
	}
}

// TestSlidingWindowRespectsContext verifies a cancelled context aborts a
// blocked acquire
func TestSlidingWindowRespectsContext(t *testing.T) {
	lim := NewSlidingWindow(1, time.Minute)
	lim.Acquire(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := lim.Acquire(ctx); err == nil {
		t.Error("blocked acquire should fail when context expires")
	}
}

// TestParseResetHintClamped verifies the 429 reset hint is clamped to [2s,30s]
func TestParseResetHintClamped(t *testing.T) {
	cases := []struct {
		hint string
		want time.Duration
	}{
		{"", 2 * time.Second},
		{"0.5", 2 * time.Second},
		{"5", 5 * time.Second},
		{"120", 30 * time.Second},
		{"garbage", 2 * time.Second},
	}

	for _, tc := range cases {
		if got := parseResetHint(tc.hint); got != tc.want {
			t.Errorf("parseResetHint(%q) = %v, want %v", tc.hint, got, tc.want)
		}
	}
}
