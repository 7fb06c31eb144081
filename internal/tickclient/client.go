package tickclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"market-intel-bot/internal/logging"
	"market-intel-bot/internal/market"
	"market-intel-bot/internal/upstream"
)

// DefaultBaseURL is the tick vendor's REST root
const DefaultBaseURL = "https://api.polygon.io"

// Client wraps the tick/aggregates/indicators vendor. Same absence policy as
// the flow vendor: nil result with nil error means "no data".
type Client struct {
	rest   *upstream.RESTClient
	logger *logging.Logger
}

// New creates a client with its own rate limiter; the tick vendor budget is
// independent of the flow vendor's.
func New(baseURL, token string, limiter *upstream.SlidingWindow, logger *logging.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		rest:   upstream.NewRESTClient("tick", baseURL, token, limiter, logger),
		logger: logger.WithComponent("tickclient"),
	}
}

// OnSuccess registers the budget-counter hook
func (c *Client) OnSuccess(fn func()) {
	c.rest.OnSuccess = fn
}

// Snapshot fetches the current per-ticker snapshot (last trade, day bar,
// prev-day bar).
func (c *Client) Snapshot(ctx context.Context, ticker string) (*market.Quote, error) {
	raw, err := c.rest.Get(ctx, "/v2/snapshot/locale/us/markets/stocks/tickers/"+ticker, nil)
	if err != nil || raw == nil {
		return nil, err
	}

	var w struct {
		Ticker struct {
			Day struct {
				Open   float64 `json:"o"`
				High   float64 `json:"h"`
				Low    float64 `json:"l"`
				Close  float64 `json:"c"`
				Volume float64 `json:"v"`
				VWAP   float64 `json:"vw"`
			} `json:"day"`
			PrevDay struct {
				Close float64 `json:"c"`
			} `json:"prevDay"`
			LastTrade struct {
				Price float64 `json:"p"`
			} `json:"lastTrade"`
			LastQuote struct {
				Bid float64 `json:"p"`
				Ask float64 `json:"P"`
			} `json:"lastQuote"`
			TodaysChange     float64 `json:"todaysChange"`
			TodaysChangePerc float64 `json:"todaysChangePerc"`
		} `json:"ticker"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		c.logger.Warn("snapshot decode failed", "ticker", ticker, "error", err)
		return nil, nil
	}

	last := w.Ticker.LastTrade.Price
	if last == 0 {
		last = w.Ticker.Day.Close
	}
	if last == 0 {
		return nil, nil
	}
	return &market.Quote{
		Ticker:        ticker,
		Last:          last,
		Bid:           w.Ticker.LastQuote.Bid,
		Ask:           w.Ticker.LastQuote.Ask,
		Change:        w.Ticker.TodaysChange,
		ChangePercent: w.Ticker.TodaysChangePerc,
		Open:          w.Ticker.Day.Open,
		High:          w.Ticker.Day.High,
		Low:           w.Ticker.Day.Low,
		Volume:        w.Ticker.Day.Volume,
		VWAP:          w.Ticker.Day.VWAP,
		PrevClose:     w.Ticker.PrevDay.Close,
		UpdatedAt:     time.Now().UTC(),
	}, nil
}

// Aggregates fetches a candle range, e.g. span=1, timespan="minute"
func (c *Client) Aggregates(ctx context.Context, ticker string, span int, timespan string, from, to time.Time) ([]market.Candle, error) {
	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/%d/%s/%d/%d",
		ticker, span, timespan, from.UnixMilli(), to.UnixMilli())
	raw, err := c.rest.Get(ctx, path, url.Values{"adjusted": {"true"}, "sort": {"asc"}, "limit": {"5000"}})
	if err != nil || raw == nil {
		return nil, err
	}

	var w struct {
		Results []struct {
			Time   int64   `json:"t"`
			Open   float64 `json:"o"`
			High   float64 `json:"h"`
			Low    float64 `json:"l"`
			Close  float64 `json:"c"`
			Volume float64 `json:"v"`
			VWAP   float64 `json:"vw"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		c.logger.Warn("aggs decode failed", "ticker", ticker, "error", err)
		return nil, nil
	}

	out := make([]market.Candle, 0, len(w.Results))
	for _, r := range w.Results {
		out = append(out, market.Candle{
			Time:   time.UnixMilli(r.Time).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
			VWAP:   r.VWAP,
		})
	}
	return out, nil
}

// Indicator fetches a server-side indicator series; name is one of rsi, ema,
// sma, macd. Used by the backtest utility to cross-check local math.
func (c *Client) Indicator(ctx context.Context, name, ticker string, window int) ([]float64, error) {
	params := url.Values{
		"timespan": {"day"},
		"window":   {fmt.Sprint(window)},
		"limit":    {"50"},
		"order":    {"asc"},
	}
	raw, err := c.rest.Get(ctx, "/v1/indicators/"+name+"/"+ticker, params)
	if err != nil || raw == nil {
		return nil, err
	}

	var w struct {
		Results struct {
			Values []struct {
				Value float64 `json:"value"`
			} `json:"values"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, nil
	}
	out := make([]float64, 0, len(w.Results.Values))
	for _, v := range w.Results.Values {
		out = append(out, v.Value)
	}
	return out, nil
}

// Movers fetches the gainers or losers board; direction is "gainers" or
// "losers".
func (c *Client) Movers(ctx context.Context, direction string) ([]market.Mover, error) {
	raw, err := c.rest.Get(ctx, "/v2/snapshot/locale/us/markets/stocks/"+direction, nil)
	if err != nil || raw == nil {
		return nil, err
	}

	var w struct {
		Tickers []struct {
			Ticker           string  `json:"ticker"`
			TodaysChangePerc float64 `json:"todaysChangePerc"`
			LastTrade        struct {
				Price float64 `json:"p"`
			} `json:"lastTrade"`
		} `json:"tickers"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, nil
	}

	out := make([]market.Mover, 0, len(w.Tickers))
	for _, t := range w.Tickers {
		out = append(out, market.Mover{
			Ticker:        t.Ticker,
			Last:          t.LastTrade.Price,
			ChangePercent: t.TodaysChangePerc,
		})
	}
	return out, nil
}

// ValidTicker checks the reference list for symbol existence
func (c *Client) ValidTicker(ctx context.Context, ticker string) (bool, error) {
	raw, err := c.rest.Get(ctx, "/v3/reference/tickers/"+ticker, nil)
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}
