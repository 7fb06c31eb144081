package uwclient

import (
	"context"
	"testing"
	"time"

	"market-intel-bot/internal/logging"
	"market-intel-bot/internal/upstream"
)

func newMockClient(t *testing.T) *Client {
	t.Helper()
	lim := upstream.NewSlidingWindow(100, time.Minute)
	c := New("http://mock.invalid", "", lim, logging.Default())
	c.EnableMock(42)
	return c
}

func TestMockQuoteAndCandles(t *testing.T) {
	c := newMockClient(t)
	ctx := context.Background()

	q, err := c.Quote(ctx, "AAPL")
	if err != nil || q == nil {
		t.Fatalf("quote = %+v, err %v", q, err)
	}
	if q.Last <= 0 || q.PrevClose <= 0 {
		t.Errorf("synthetic quote should carry prices, got %+v", q)
	}

	bars, err := c.OHLC(ctx, "AAPL", "1d")
	if err != nil {
		t.Fatalf("ohlc: %v", err)
	}
	if len(bars) < 100 {
		t.Fatalf("bars = %d, want enough history for the analyzer", len(bars))
	}
	// series must ascend after decoding
	if !bars[0].Time.Before(bars[len(bars)-1].Time) {
		t.Error("candle series should ascend in time")
	}
	for _, b := range bars[:5] {
		if b.High < b.Low || b.Close <= 0 {
			t.Fatalf("malformed synthetic bar: %+v", b)
		}
	}
}

func TestMockFlowAndDarkPool(t *testing.T) {
	c := newMockClient(t)
	ctx := context.Background()

	flow, err := c.FlowRecent(ctx, "TSLA")
	if err != nil {
		t.Fatalf("flow: %v", err)
	}
	if len(flow) == 0 {
		t.Fatal("mock flow should not be empty")
	}
	for _, f := range flow {
		if f.Ticker != "TSLA" || f.Premium <= 0 {
			t.Fatalf("bad synthetic flow row: %+v", f)
		}
	}

	prints, err := c.DarkPool(ctx, "TSLA")
	if err != nil {
		t.Fatalf("darkpool: %v", err)
	}
	if len(prints) == 0 {
		t.Fatal("mock darkpool should not be empty")
	}
}

func TestMockUnknownEndpointIsAbsence(t *testing.T) {
	c := newMockClient(t)

	si, err := c.ShortInterest(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("short interest: %v", err)
	}
	if si != nil {
		t.Errorf("unmocked endpoint should decode as absence, got %+v", si)
	}
}
