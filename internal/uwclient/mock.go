package uwclient

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"market-intel-bot/internal/upstream"
)

// EnableMock swaps the vendor transport for a deterministic synthetic data
// source, used for development without an API token. The limiter, breaker,
// and decode paths all still run.
func (c *Client) EnableMock(seed int64) {
	c.rest.SetTransport(newMockTransport(seed))
	c.logger.Warn("flow vendor mock mode enabled, serving synthetic data")
}

// mockTransport serves the endpoint families the poll cycle depends on;
// everything else answers with an empty data array, which callers already
// treat as absence.
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

// price random-walks each ticker around a base derived from its symbol
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
	ticker := pathTicker(path)

	var payload interface{}
	switch {
	case strings.Contains(path, "/stock/") && strings.HasSuffix(path, "/info"):
		payload = m.quote(ticker)
	case strings.Contains(path, "/ohlc/"):
		payload = m.candles(ticker, 120)
	case strings.HasSuffix(path, "/flow-recent"), strings.Contains(path, "/option-trades/flow-alerts"):
		payload = m.flow(ticker, 10)
	case strings.Contains(path, "/darkpool/"):
		payload = m.darkpool(ticker, 10)
	case strings.Contains(path, "/greek-exposure/strike"):
		payload = m.gex(ticker)
	case strings.Contains(path, "/market/market-tide"):
		payload = m.tide()
	case strings.Contains(path, "/market/spike"):
		payload = []map[string]interface{}{{"value": 14 + m.rng.Float64()*10}}
	case strings.HasSuffix(path, "/options-volume"), strings.Contains(path, "/market/total-options-volume"):
		payload = m.optionVolume()
	default:
		payload = []interface{}{}
	}

	return upstream.JSONResponse(req, map[string]interface{}{"data": payload})
}

// pathTicker pulls the symbol segment out of /stock/<T>/... and /darkpool/<T>
func pathTicker(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		if (p == "stock" || p == "darkpool" || p == "shorts" || p == "insider" || p == "earnings") && i+1 < len(parts) {
			next := parts[i+1]
			if next != "recent" && next != "transactions" {
				return next
			}
		}
	}
	return "SPY"
}

func (m *mockTransport) quote(ticker string) map[string]interface{} {
	p := m.price(ticker)
	return map[string]interface{}{
		"last":       p,
		"bid":        p * 0.9995,
		"ask":        p * 1.0005,
		"open":       p * 0.995,
		"high":       p * 1.01,
		"low":        p * 0.99,
		"volume":     1_000_000 + m.rng.Float64()*20_000_000,
		"vwap":       p * 0.999,
		"prev_close": p * 0.997,
	}
}

// candles returns a newest-first daily series, the vendor's native order
func (m *mockTransport) candles(ticker string, n int) []map[string]interface{} {
	end := m.price(ticker)
	walk := make([]float64, n)
	walk[n-1] = end
	for i := n - 2; i >= 0; i-- {
		walk[i] = walk[i+1] / (1 + (m.rng.Float64()-0.49)*0.02)
	}

	now := time.Now().UTC()
	out := make([]map[string]interface{}, 0, n)
	for i := n - 1; i >= 0; i-- {
		c := walk[i]
		o := c * (1 + (m.rng.Float64()-0.5)*0.01)
		hi := c
		if o > hi {
			hi = o
		}
		lo := c
		if o < lo {
			lo = o
		}
		out = append(out, map[string]interface{}{
			"start_time": now.AddDate(0, 0, -(n - 1 - i)).Format(time.RFC3339),
			"open":       o,
			"high":       hi * 1.005,
			"low":        lo * 0.995,
			"close":      c,
			"volume":     500_000 + m.rng.Float64()*5_000_000,
		})
	}
	return out
}

func (m *mockTransport) flow(ticker string, n int) []map[string]interface{} {
	p := m.price(ticker)
	now := time.Now().UTC()
	out := make([]map[string]interface{}, 0, n)
	for i := 0; i < n; i++ {
		contract := "call"
		askSide, bidSide := 65.0, 35.0
		if m.rng.Intn(2) == 0 {
			contract = "put"
			askSide, bidSide = 35.0, 65.0
		}
		out = append(out, map[string]interface{}{
			"ticker":              ticker,
			"type":                contract,
			"strike":              p * (0.95 + m.rng.Float64()*0.1),
			"expiry":              now.AddDate(0, 0, 7+m.rng.Intn(30)).Format("2006-01-02"),
			"premium":             50_000 + m.rng.Float64()*1_500_000,
			"has_sweep":           m.rng.Intn(3) == 0,
			"executed_at":         now.Add(-time.Duration(i) * time.Minute).Format(time.RFC3339),
			"ask_side_percentage": askSide,
			"bid_side_percentage": bidSide,
		})
	}
	return out
}

func (m *mockTransport) darkpool(ticker string, n int) []map[string]interface{} {
	p := m.price(ticker)
	now := time.Now().UTC()
	out := make([]map[string]interface{}, 0, n)
	for i := 0; i < n; i++ {
		price := p * (0.998 + m.rng.Float64()*0.004)
		size := 10_000 + m.rng.Float64()*300_000
		out = append(out, map[string]interface{}{
			"ticker":      ticker,
			"price":       price,
			"size":        size,
			"premium":     price * size,
			"nbbo_ask":    p * 1.0005,
			"nbbo_bid":    p * 0.9995,
			"executed_at": now.Add(-time.Duration(i) * 2 * time.Minute).Format(time.RFC3339),
		})
	}
	return out
}

func (m *mockTransport) gex(ticker string) []map[string]interface{} {
	p := m.price(ticker)
	out := make([]map[string]interface{}, 0, 21)
	for i := -10; i <= 10; i++ {
		strike := p * (1 + float64(i)/100)
		scale := 1 - float64(i*i)/150 // concentration near the money
		out = append(out, map[string]interface{}{
			"strike":              fmt.Sprintf("%.2f", strike),
			"call_gamma_exposure": 5e8 * scale * m.rng.Float64(),
			"put_gamma_exposure":  -4e8 * scale * m.rng.Float64(),
		})
	}
	return out
}

func (m *mockTransport) tide() []map[string]interface{} {
	return []map[string]interface{}{{
		"net_call_premium": (m.rng.Float64() - 0.4) * 2e9,
		"net_put_premium":  (m.rng.Float64() - 0.5) * 1.5e9,
		"net_volume":       (m.rng.Float64() - 0.45) * 5e6,
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	}}
}

func (m *mockTransport) optionVolume() []map[string]interface{} {
	call := 1e6 + m.rng.Float64()*2e7
	put := call * (0.7 + m.rng.Float64()*0.6)
	return []map[string]interface{}{{
		"call_volume":  call,
		"put_volume":   put,
		"call_premium": call * 150,
		"put_premium":  put * 140,
	}}
}
