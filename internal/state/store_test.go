package state

import (
	"fmt"
	"testing"
	"time"

	"market-intel-bot/internal/market"
)

func TestAlertRingBoundedAndOrdered(t *testing.T) {
	st := NewStore([]string{"AAPL"})

	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 250; i++ {
		st.PushAlert(market.Alert{
			ID:        fmt.Sprintf("a-%d", i),
			Type:      "TEST",
			Ticker:    "AAPL",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}

	alerts := st.Alerts()
	if len(alerts) != MaxAlerts {
		t.Fatalf("ring holds %d, want %d", len(alerts), MaxAlerts)
	}
	if alerts[0].ID != "a-249" {
		t.Errorf("newest alert = %s, want a-249", alerts[0].ID)
	}
	for i := 1; i < len(alerts); i++ {
		if alerts[i].Timestamp.After(alerts[i-1].Timestamp) {
			t.Fatalf("alerts not descending at index %d", i)
		}
	}
}

func TestSnapshotIsolation(t *testing.T) {
	st := NewStore([]string{"TSLA"})
	st.SetQuote("TSLA", &market.Quote{Ticker: "TSLA", Last: 250})

	snap := st.Snapshot()

	// later writes must not leak into the earlier snapshot
	st.SetQuote("NVDA", &market.Quote{Ticker: "NVDA", Last: 120})
	st.PushAlert(market.Alert{ID: "x", Timestamp: time.Now()})

	if _, ok := snap.Quotes["NVDA"]; ok {
		t.Error("snapshot saw a quote written after it was taken")
	}
	if len(snap.Alerts) != 0 {
		t.Error("snapshot saw an alert written after it was taken")
	}
	if snap.Quotes["TSLA"].Last != 250 {
		t.Error("snapshot lost the quote present at capture time")
	}
}

func TestSetupDeleteOnNil(t *testing.T) {
	st := NewStore(nil)
	st.SetSetup("AMD", &market.Setup{Ticker: "AMD", Entry: 100})
	st.SetSetup("AMD", nil)

	if _, ok := st.Snapshot().TradeSetups["AMD"]; ok {
		t.Error("nil setup should remove the ticker's entry")
	}
}

func TestGlobalListsCapped(t *testing.T) {
	st := NewStore(nil)

	items := make([]market.NewsItem, MaxGlobalItems+50)
	st.SetNews(items)

	if got := len(st.Snapshot().News); got != MaxGlobalItems {
		t.Errorf("news list len = %d, want %d", got, MaxGlobalItems)
	}
}

func TestRestoreNilMapsRebuilt(t *testing.T) {
	st := NewStore(nil)
	st.Restore(&State{Tickers: []string{"SPY"}})

	// writes after restoring a sparse document must not panic
	st.SetQuote("SPY", &market.Quote{Ticker: "SPY", Last: 500})
	if st.Quote("SPY") == nil {
		t.Error("quote write lost after restore")
	}
}

func TestTouchSetsLastUpdate(t *testing.T) {
	st := NewStore(nil)
	now := time.Now()
	st.Touch(now)
	if !st.Snapshot().LastUpdate.Equal(now) {
		t.Error("lastUpdate not set by Touch")
	}
}
