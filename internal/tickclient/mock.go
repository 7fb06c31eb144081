package tickclient

import (
	"hash/fnv"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"market-intel-bot/internal/upstream"
)

// EnableMock swaps the vendor transport for deterministic synthetic data
func (c *Client) EnableMock(seed int64) {
	c.rest.SetTransport(newMockTransport(seed))
	c.logger.Warn("tick vendor mock mode enabled, serving synthetic data")
}

var mockBoard = []string{"SPY", "QQQ", "AAPL", "NVDA", "TSLA", "AMD", "PLTR", "SOFI", "MARA", "COIN"}

type mockTransport struct {
	mu     sync.Mutex
	rng    *rand.Rand
	prices map[string]float64
}

func newMockTransport(seed int64) *mockTransport {
	return &mockTransport{
		rng:    rand.New(rand.NewSource(seed)),
		prices: make(map[string]float64),
	}
}

func (m *mockTransport) price(ticker string) float64 {
	p, ok := m.prices[ticker]
	if !ok {
		h := fnv.New32a()
		h.Write([]byte(ticker))
		p = 20 + float64(h.Sum32()%500)
	}
	p *= 1 + (m.rng.Float64()-0.5)*0.01
	m.prices[ticker] = p
	return p
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := req.URL.Path
	switch {
	case strings.Contains(path, "/v2/snapshot/") && strings.Contains(path, "/tickers/"):
		parts := strings.Split(path, "/")
		return upstream.JSONResponse(req, m.snapshot(parts[len(parts)-1]))
	case strings.Contains(path, "/v2/aggs/ticker/"):
		return upstream.JSONResponse(req, m.aggregates(path))
	case strings.HasSuffix(path, "/gainers"), strings.HasSuffix(path, "/losers"):
		return upstream.JSONResponse(req, m.movers(strings.HasSuffix(path, "/losers")))
	case strings.Contains(path, "/v3/reference/tickers/"):
		return upstream.JSONResponse(req, map[string]interface{}{"status": "OK"})
	default:
		return upstream.JSONResponse(req, map[string]interface{}{})
	}
}

func (m *mockTransport) snapshot(ticker string) map[string]interface{} {
	p := m.price(ticker)
	prev := p * 0.997
	return map[string]interface{}{
		"ticker": map[string]interface{}{
			"day": map[string]interface{}{
				"o": p * 0.995, "h": p * 1.01, "l": p * 0.99, "c": p,
				"v": 1_000_000 + m.rng.Float64()*20_000_000, "vw": p * 0.999,
			},
			"prevDay":          map[string]interface{}{"c": prev},
			"lastTrade":        map[string]interface{}{"p": p},
			"lastQuote":        map[string]interface{}{"p": p * 0.9995, "P": p * 1.0005},
			"todaysChange":     p - prev,
			"todaysChangePerc": (p - prev) / prev * 100,
		},
	}
}

// aggregates infers bar spacing from the /range/<span>/<timespan>/ segment
func (m *mockTransport) aggregates(path string) map[string]interface{} {
	parts := strings.Split(path, "/")
	ticker, step := "SPY", 24*time.Hour
	for i, p := range parts {
		if p == "ticker" && i+1 < len(parts) {
			ticker = parts[i+1]
		}
		if p == "range" && i+2 < len(parts) && parts[i+2] == "minute" {
			step = 5 * time.Minute
		}
	}

	const n = 120
	end := m.price(ticker)
	walk := make([]float64, n)
	walk[n-1] = end
	for i := n - 2; i >= 0; i-- {
		walk[i] = walk[i+1] / (1 + (m.rng.Float64()-0.49)*0.015)
	}

	now := time.Now().UTC()
	results := make([]map[string]interface{}, 0, n)
	for i := 0; i < n; i++ {
		c := walk[i]
		results = append(results, map[string]interface{}{
			"t": now.Add(-time.Duration(n-1-i) * step).UnixMilli(),
			"o": c * (1 + (m.rng.Float64()-0.5)*0.008),
			"h": c * 1.005,
			"l": c * 0.995,
			"c": c,
			"v": 200_000 + m.rng.Float64()*3_000_000,
		})
	}
	return map[string]interface{}{"results": results}
}

func (m *mockTransport) movers(losers bool) map[string]interface{} {
	tickers := make([]map[string]interface{}, 0, len(mockBoard))
	for _, t := range mockBoard {
		change := 2 + m.rng.Float64()*8
		if losers {
			change = -change
		}
		tickers = append(tickers, map[string]interface{}{
			"ticker":           t,
			"todaysChangePerc": change,
			"lastTrade":        map[string]interface{}{"p": m.price(t)},
		})
	}
	return map[string]interface{}{"tickers": tickers}
}
