package tickclient

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"market-intel-bot/internal/logging"
	"market-intel-bot/internal/upstream"
)

// DefaultSocketURL is the tick vendor's real-time stocks cluster
const DefaultSocketURL = "wss://socket.polygon.io/stocks"

// ErrAuthFailed means the vendor rejected the API key; reconnecting will not
// help, so the stream stops.
var ErrAuthFailed = errors.New("tickclient: websocket auth failed")

// Cache holds live tape summaries per ticker, fed by the websocket and read
// by the signal engine.
type Cache struct {
	mu        sync.Mutex
	summaries map[string]*Summary
}

// NewCache creates an empty tape cache
func NewCache() *Cache {
	return &Cache{summaries: map[string]*Summary{}}
}

// Get returns the ticker's summary, creating it on first touch
func (c *Cache) Get(ticker string) *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.summaries[ticker]
	if !ok {
		s = NewSummary(ticker)
		c.summaries[ticker] = s
	}
	return s
}

// Stats copies out the ticker's current tape stats; ok is false when no tape
// has been seen for it.
func (c *Cache) Stats(ticker string) (Stats, bool) {
	c.mu.Lock()
	s, ok := c.summaries[ticker]
	c.mu.Unlock()
	if !ok {
		return Stats{}, false
	}
	return s.Snapshot(), true
}

// Stream is the authenticated tick websocket feeding a Cache
type Stream struct {
	stream *upstream.Stream
	cache  *Cache
	logger *logging.Logger
	apiKey string

	mu      sync.Mutex
	tickers []string
	failed  bool
}

// NewStream builds the tick subscriber; call Run in its own goroutine
func NewStream(socketURL, apiKey string, tickers []string, cache *Cache, logger *logging.Logger) *Stream {
	if socketURL == "" {
		socketURL = DefaultSocketURL
	}
	s := &Stream{
		cache:   cache,
		logger:  logger.WithComponent("tickstream"),
		apiKey:  apiKey,
		tickers: append([]string(nil), tickers...),
	}
	s.stream = upstream.NewStream(upstream.StreamConfig{
		Name:      "tick",
		URL:       socketURL,
		OnConnect: s.authenticate,
		OnMessage: s.handleFrame,
		Logger:    logger,
	})
	return s
}

// Run owns the reconnect loop until the context is cancelled or auth is
// rejected outright.
func (s *Stream) Run(ctx context.Context) {
	s.stream.Run(ctx)
}

// authenticate sends the auth message and the subscribe message back to
// back; the vendor queues subscribes received while auth is in flight. An
// auth_failed status later tears the connection down via handleStatus.
func (s *Stream) authenticate(_ *upstream.Stream) error {
	s.mu.Lock()
	s.failed = false
	s.mu.Unlock()

	if err := s.stream.Send(map[string]string{"action": "auth", "params": s.apiKey}); err != nil {
		return err
	}
	return s.subscribe(s.currentTickers())
}

// AuthFailed reports whether the vendor rejected the API key on the last
// connection; callers surface ErrAuthFailed instead of reconnecting forever.
func (s *Stream) AuthFailed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

func (s *Stream) currentTickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tickers...)
}

// SetTickers swaps the subscription set and subscribes the additions
func (s *Stream) SetTickers(tickers []string) {
	s.mu.Lock()
	prev := s.tickers
	s.tickers = append([]string(nil), tickers...)
	s.mu.Unlock()

	seen := make(map[string]bool, len(prev))
	for _, t := range prev {
		seen[t] = true
	}
	var added []string
	for _, t := range tickers {
		if !seen[t] {
			added = append(added, t)
		}
	}
	if len(added) > 0 {
		if err := s.subscribe(added); err != nil {
			s.logger.Warn("subscribe failed", "error", err)
		}
	}
}

// subscribe requests trades, minute aggregates, and second aggregates for
// each symbol.
func (s *Stream) subscribe(tickers []string) error {
	if len(tickers) == 0 {
		return nil
	}
	params := make([]string, 0, len(tickers)*3)
	for _, t := range tickers {
		params = append(params, "T."+t, "AM."+t, "A."+t)
	}
	return s.stream.Send(map[string]string{
		"action": "subscribe",
		"params": strings.Join(params, ","),
	})
}

func (s *Stream) handleFrame(data []byte) {
	// every frame is a JSON array of events
	var events []json.RawMessage
	if err := json.Unmarshal(data, &events); err != nil {
		return
	}

	for _, raw := range events {
		var ev struct {
			Ev     string `json:"ev"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}
		switch ev.Ev {
		case "status":
			s.handleStatus(ev.Status)
		case "T":
			s.handleTrade(raw)
		case "A":
			s.handleAgg(raw, false)
		case "AM":
			s.handleAgg(raw, true)
		case "Q":
			s.handleQuote(raw)
		}
	}
}

func (s *Stream) handleStatus(status string) {
	switch status {
	case "auth_success":
		s.logger.Info("tick stream authenticated")
	case "auth_failed":
		s.mu.Lock()
		s.failed = true
		s.mu.Unlock()
		s.logger.Error("tick stream auth rejected")
		s.stream.Close()
	}
}

func (s *Stream) handleTrade(raw json.RawMessage) {
	var t struct {
		Sym   string  `json:"sym"`
		Price float64 `json:"p"`
		Size  float64 `json:"s"`
		Conds []int   `json:"c"`
		Time  int64   `json:"t"`
	}
	if err := json.Unmarshal(raw, &t); err != nil || t.Sym == "" {
		return
	}
	s.cache.Get(t.Sym).RecordTrade(t.Price, t.Size, t.Conds, time.UnixMilli(t.Time).UTC())
}

func (s *Stream) handleQuote(raw json.RawMessage) {
	var q struct {
		Sym string  `json:"sym"`
		Bid float64 `json:"bp"`
		Ask float64 `json:"ap"`
	}
	if err := json.Unmarshal(raw, &q); err != nil || q.Sym == "" {
		return
	}
	s.cache.Get(q.Sym).SetQuote(q.Bid, q.Ask)
}

func (s *Stream) handleAgg(raw json.RawMessage, minute bool) {
	var a struct {
		Sym    string  `json:"sym"`
		Open   float64 `json:"o"`
		High   float64 `json:"h"`
		Low    float64 `json:"l"`
		Close  float64 `json:"c"`
		Volume float64 `json:"v"`
		VWAP   float64 `json:"vw"`
		Start  int64   `json:"s"`
	}
	if err := json.Unmarshal(raw, &a); err != nil || a.Sym == "" {
		return
	}

	bar := AggBar{
		Start:  time.UnixMilli(a.Start).UTC(),
		Open:   a.Open,
		High:   a.High,
		Low:    a.Low,
		Close:  a.Close,
		Volume: a.Volume,
		VWAP:   a.VWAP,
	}
	sum := s.cache.Get(a.Sym)
	if minute {
		sum.RecordMinuteBar(bar)
	} else {
		sum.RecordSecondBar(bar)
	}
}
