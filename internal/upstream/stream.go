package upstream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"market-intel-bot/internal/logging"
)

// Reconnect backoff: start at 5s, double up to a 300s cap, reset on a
// successful connect.
const (
	reconnectInitial = 5 * time.Second
	reconnectMax     = 300 * time.Second
)

// ErrNotConnected is returned by Send when no socket is up
var ErrNotConnected = errors.New("upstream: stream not connected")

// StreamConfig wires a vendor websocket channel
type StreamConfig struct {
	Name string
	URL  string

	// OnConnect runs after each (re)connect; vendors use it to authenticate
	// and re-send the subscribe message for the current ticker set.
	OnConnect func(s *Stream) error

	// OnMessage receives every raw frame
	OnMessage func(data []byte)

	Logger *logging.Logger
}

// Stream is a self-healing websocket subscription. It owns its reconnect loop
// and exposes Send for subscribe messages.
type Stream struct {
	cfg    StreamConfig
	logger *logging.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewStream creates a stream; call Run in its own goroutine
func NewStream(cfg StreamConfig) *Stream {
	return &Stream{
		cfg:    cfg,
		logger: cfg.Logger.WithComponent("stream." + cfg.Name),
	}
}

// Run connects and reads until the context is cancelled, reconnecting with
// exponential backoff on any drop.
func (s *Stream) Run(ctx context.Context) {
	backoff := reconnectInitial

	for {
		if ctx.Err() != nil {
			return
		}

		if err := s.connect(ctx); err != nil {
			s.logger.Warn("connect failed", "error", err, "retry_in", backoff.String())
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff *= 2
			if backoff > reconnectMax {
				backoff = reconnectMax
			}
			continue
		}

		backoff = reconnectInitial
		s.readLoop(ctx)

		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
			s.conn = nil
		}
		s.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("stream dropped, reconnecting", "retry_in", backoff.String())
		if !sleepCtx(ctx, backoff) {
			return
		}
	}
}

func (s *Stream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	if s.cfg.OnConnect != nil {
		if err := s.cfg.OnConnect(s); err != nil {
			conn.Close()
			s.mu.Lock()
			s.conn = nil
			s.mu.Unlock()
			return err
		}
	}

	s.logger.Info("stream connected")
	return nil
}

func (s *Stream) readLoop(ctx context.Context) {
	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil || ctx.Err() != nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		if s.cfg.OnMessage != nil {
			s.cfg.OnMessage(data)
		}
	}
}

// Send writes a JSON message to the live socket
func (s *Stream) Send(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteJSON(v)
}

// Close tears down the current socket; Run will reconnect unless its context
// is done.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
