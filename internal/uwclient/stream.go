package uwclient

import (
	"context"
	"encoding/json"
	"sync"

	"market-intel-bot/internal/logging"
	"market-intel-bot/internal/market"
	"market-intel-bot/internal/upstream"
)

// DefaultSocketURL is the flow vendor's websocket root; the token rides as a
// query parameter.
const DefaultSocketURL = "wss://api.unusualwhales.com/socket"

// Socket subscribes to the vendor's lit option-trade channel and the off-lit
// darkpool channel for the current ticker set. Frames arrive as
// ["channel", {payload}] pairs.
type Socket struct {
	stream *upstream.Stream
	logger *logging.Logger

	mu      sync.Mutex
	tickers []string

	// OnFlow receives each normalized lit print
	OnFlow func(item market.FlowItem)
	// OnDarkPool receives each normalized off-lit print
	OnDarkPool func(p market.DarkPoolPrint)
}

// NewSocket builds the subscriber; call Run in its own goroutine
func NewSocket(socketURL, token string, tickers []string, logger *logging.Logger) *Socket {
	if socketURL == "" {
		socketURL = DefaultSocketURL
	}
	s := &Socket{
		tickers: append([]string(nil), tickers...),
		logger:  logger.WithComponent("uwsocket"),
	}
	s.stream = upstream.NewStream(upstream.StreamConfig{
		Name:      "uw",
		URL:       socketURL + "?token=" + token,
		OnConnect: s.subscribeAll,
		OnMessage: s.handleFrame,
		Logger:    logger,
	})
	return s
}

// Run owns the reconnect loop until the context is cancelled
func (s *Socket) Run(ctx context.Context) {
	s.stream.Run(ctx)
}

// SetTickers swaps the subscription set; takes effect on the next reconnect
// and immediately for the added symbols.
func (s *Socket) SetTickers(tickers []string) {
	s.mu.Lock()
	added := diff(tickers, s.tickers)
	s.tickers = append([]string(nil), tickers...)
	s.mu.Unlock()

	for _, t := range added {
		s.join("option_trades:" + t)
		s.join("darkpool:" + t)
	}
}

func (s *Socket) subscribeAll(_ *upstream.Stream) error {
	s.mu.Lock()
	tickers := append([]string(nil), s.tickers...)
	s.mu.Unlock()

	for _, t := range tickers {
		if err := s.joinErr("option_trades:" + t); err != nil {
			return err
		}
		if err := s.joinErr("darkpool:" + t); err != nil {
			return err
		}
	}
	return nil
}

func (s *Socket) join(channel string) {
	if err := s.joinErr(channel); err != nil {
		s.logger.Warn("join failed", "channel", channel, "error", err)
	}
}

func (s *Socket) joinErr(channel string) error {
	return s.stream.Send(map[string]string{"channel": channel, "msg_type": "join"})
}

// handleFrame decodes one ["channel", payload] frame and fans out
func (s *Socket) handleFrame(data []byte) {
	var frame []json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil || len(frame) < 2 {
		return
	}

	var channel string
	if err := json.Unmarshal(frame[0], &channel); err != nil {
		return
	}

	switch {
	case hasPrefix(channel, "option_trades"):
		if s.OnFlow == nil {
			return
		}
		items := decodeFlowItems(asArray(frame[1]), tickerOf(channel), s.logger)
		for _, item := range items {
			s.OnFlow(item)
		}
	case hasPrefix(channel, "darkpool"):
		if s.OnDarkPool == nil {
			return
		}
		prints := decodeDarkPool(asArray(frame[1]), tickerOf(channel), s.logger)
		for _, p := range prints {
			s.OnDarkPool(p)
		}
	}
}

// asArray wraps a single-object payload so the batch decoders apply
func asArray(raw json.RawMessage) json.RawMessage {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			return raw
		default:
			return json.RawMessage("[" + string(raw) + "]")
		}
	}
	return raw
}

func hasPrefix(channel, prefix string) bool {
	return len(channel) >= len(prefix) && channel[:len(prefix)] == prefix
}

func tickerOf(channel string) string {
	for i := 0; i < len(channel); i++ {
		if channel[i] == ':' {
			return channel[i+1:]
		}
	}
	return ""
}

func diff(next, prev []string) []string {
	seen := make(map[string]bool, len(prev))
	for _, t := range prev {
		seen[t] = true
	}
	var added []string
	for _, t := range next {
		if !seen[t] {
			added = append(added, t)
		}
	}
	return added
}
