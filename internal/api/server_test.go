package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"market-intel-bot/internal/events"
	"market-intel-bot/internal/journal"
	"market-intel-bot/internal/logging"
	"market-intel-bot/internal/market"
	"market-intel-bot/internal/scheduler"
	"market-intel-bot/internal/state"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sched, err := scheduler.New(scheduler.DefaultConfig(), logging.Default())
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	store := state.NewStore([]string{"AAPL", "TSLA"})
	jr := journal.New(journal.DefaultConfig(), "v1.0", func() bool { return true })

	return NewServer(ServerConfig{Port: 8080, Host: "127.0.0.1"},
		store, jr, sched, events.NewEventBus(), logging.Default())
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := get(t, s, "/api/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if _, ok := body["session"]; !ok {
		t.Error("health payload missing session")
	}
}

func TestStateEndpointReturnsSnapshot(t *testing.T) {
	s := newTestServer(t)
	s.store.SetQuote("AAPL", &market.Quote{Ticker: "AAPL", Last: 230.5})

	w := get(t, s, "/api/state")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var snap state.State
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if q := snap.Quotes["AAPL"]; q == nil || q.Last != 230.5 {
		t.Errorf("snapshot quote = %+v, want AAPL at 230.5", snap.Quotes["AAPL"])
	}
}

func TestTradesEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := get(t, s, "/api/trades")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		ActiveVersion string `json:"activeVersion"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ActiveVersion != "v1.0" {
		t.Errorf("activeVersion = %s, want v1.0", body.ActiveVersion)
	}
}

func TestAlertsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.store.PushAlert(market.Alert{Ticker: "TSLA", Type: "FLOW", Timestamp: time.Now()})

	w := get(t, s, "/api/alerts")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Alerts []market.Alert `json:"alerts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Alerts) != 1 || body.Alerts[0].Ticker != "TSLA" {
		t.Errorf("alerts = %+v, want one TSLA alert", body.Alerts)
	}
}

func TestCloseTradeUnknownID(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/trades/no-such-id/close", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
