package uwclient

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"market-intel-bot/internal/logging"
	"market-intel-bot/internal/market"
	"market-intel-bot/internal/upstream"
)

// DefaultBaseURL is the flow vendor's REST root
const DefaultBaseURL = "https://api.unusualwhales.com/api"

// Client wraps the flow/darkpool/GEX vendor. Every method returns the zero
// value (nil or empty) when the vendor had no data; callers treat absence as
// "feature contributes nothing", never as an error.
type Client struct {
	rest   *upstream.RESTClient
	logger *logging.Logger
}

// New creates a client sharing the vendor-wide rate limiter
func New(baseURL, token string, limiter *upstream.SlidingWindow, logger *logging.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		rest:   upstream.NewRESTClient("uw", baseURL, token, limiter, logger),
		logger: logger.WithComponent("uwclient"),
	}
}

// OnSuccess registers the budget-counter hook on the underlying REST client
func (c *Client) OnSuccess(fn func()) {
	c.rest.OnSuccess = fn
}

// ===== Per-ticker endpoints =====

// Quote fetches the latest per-ticker price snapshot
func (c *Client) Quote(ctx context.Context, ticker string) (*market.Quote, error) {
	raw, err := c.rest.Get(ctx, "/stock/"+ticker+"/info", nil)
	if err != nil || raw == nil {
		return nil, err
	}

	var w struct {
		Last      flexFloat `json:"last"`
		Close     flexFloat `json:"close"`
		Bid       flexFloat `json:"bid"`
		Ask       flexFloat `json:"ask"`
		Open      flexFloat `json:"open"`
		High      flexFloat `json:"high"`
		Low       flexFloat `json:"low"`
		Volume    flexFloat `json:"volume"`
		VWAP      flexFloat `json:"vwap"`
		PrevClose flexFloat `json:"prev_close"`
	}
	if err := json.Unmarshal(unwrap(raw), &w); err != nil {
		c.logger.Warn("quote decode failed", "ticker", ticker, "error", err)
		return nil, nil
	}

	last := w.Last.val()
	if last == 0 {
		last = w.Close.val()
	}
	if last == 0 {
		return nil, nil
	}

	q := &market.Quote{
		Ticker:    ticker,
		Last:      last,
		Bid:       w.Bid.val(),
		Ask:       w.Ask.val(),
		Open:      w.Open.val(),
		High:      w.High.val(),
		Low:       w.Low.val(),
		Volume:    w.Volume.val(),
		VWAP:      w.VWAP.val(),
		PrevClose: w.PrevClose.val(),
		UpdatedAt: time.Now().UTC(),
	}
	if q.PrevClose > 0 {
		q.Change = q.Last - q.PrevClose
		q.ChangePercent = q.Change / q.PrevClose * 100
	}
	return q, nil
}

// FlowRecent fetches the ticker's latest options-flow prints
func (c *Client) FlowRecent(ctx context.Context, ticker string) ([]market.FlowItem, error) {
	raw, err := c.rest.Get(ctx, "/stock/"+ticker+"/flow-recent", nil)
	if err != nil || raw == nil {
		return nil, err
	}
	return decodeFlowItems(unwrap(raw), ticker, c.logger), nil
}

// FlowAlerts fetches the market-wide high-signal flow feed
func (c *Client) FlowAlerts(ctx context.Context) ([]market.FlowItem, error) {
	raw, err := c.rest.Get(ctx, "/option-trades/flow-alerts", url.Values{"limit": {"50"}})
	if err != nil || raw == nil {
		return nil, err
	}
	return decodeFlowItems(unwrap(raw), "", c.logger), nil
}

type wireFlow struct {
	premiumFields
	Ticker      string    `json:"ticker"`
	Symbol      string    `json:"underlying_symbol"`
	Type        string    `json:"type"`
	OptionType  string    `json:"option_type"`
	Strike      flexFloat `json:"strike"`
	Expiry      string    `json:"expiry"`
	HasSweep    bool      `json:"has_sweep"`
	Tags        []string  `json:"tags"`
	ExecutedAt  flexTime  `json:"executed_at"`
	CreatedAt   flexTime  `json:"created_at"`
	AskSidePerc flexFloat `json:"ask_side_percentage"`
	BidSidePerc flexFloat `json:"bid_side_percentage"`
}

func decodeFlowItems(data json.RawMessage, ticker string, logger *logging.Logger) []market.FlowItem {
	var rows []wireFlow
	if err := json.Unmarshal(data, &rows); err != nil {
		logger.Warn("flow decode failed", "error", err)
		return nil
	}

	out := make([]market.FlowItem, 0, len(rows))
	for _, r := range rows {
		item := market.FlowItem{
			Ticker:       firstNonEmpty(r.Ticker, r.Symbol, ticker),
			ContractType: strings.ToLower(firstNonEmpty(r.Type, r.OptionType)),
			Strike:       r.Strike.val(),
			Expiry:       r.Expiry,
			Premium:      r.dollars(),
			Execution:    classifyExecution(r),
			Timestamp:    firstTime(r.ExecutedAt.t, r.CreatedAt.t),
			Direction:    classifyFlowDirection(r),
		}
		if item.Ticker == "" || item.Premium <= 0 {
			continue
		}
		out = append(out, item)
	}
	return out
}

func classifyExecution(r wireFlow) string {
	if r.HasSweep {
		return "sweep"
	}
	for _, tag := range r.Tags {
		switch strings.ToLower(tag) {
		case "sweep", "intermarket_sweep":
			return "sweep"
		case "block", "floor":
			return "block"
		}
	}
	return "lit"
}

// classifyFlowDirection infers the print's lean: ask-side calls and bid-side
// puts are bullish, the mirror is bearish.
func classifyFlowDirection(r wireFlow) market.Bias {
	contract := strings.ToLower(firstNonEmpty(r.Type, r.OptionType))
	askSide := r.AskSidePerc.val() > r.BidSidePerc.val()
	switch {
	case contract == "call" && askSide, contract == "put" && !askSide && r.BidSidePerc.val() > 0:
		return market.Bullish
	case contract == "put" && askSide, contract == "call" && !askSide && r.BidSidePerc.val() > 0:
		return market.Bearish
	default:
		return market.Neutral
	}
}

// DarkPool fetches the ticker's recent off-lit prints
func (c *Client) DarkPool(ctx context.Context, ticker string) ([]market.DarkPoolPrint, error) {
	raw, err := c.rest.Get(ctx, "/darkpool/"+ticker, url.Values{"limit": {"50"}})
	if err != nil || raw == nil {
		return nil, err
	}
	return decodeDarkPool(unwrap(raw), ticker, c.logger), nil
}

// DarkPoolRecent fetches the market-wide off-lit feed
func (c *Client) DarkPoolRecent(ctx context.Context) ([]market.DarkPoolPrint, error) {
	raw, err := c.rest.Get(ctx, "/darkpool/recent", url.Values{"limit": {"50"}})
	if err != nil || raw == nil {
		return nil, err
	}
	return decodeDarkPool(unwrap(raw), "", c.logger), nil
}

func decodeDarkPool(data json.RawMessage, ticker string, logger *logging.Logger) []market.DarkPoolPrint {
	var rows []struct {
		premiumFields
		Ticker     string    `json:"ticker"`
		Price      flexFloat `json:"price"`
		Size       flexFloat `json:"size"`
		NBBOAsk    flexFloat `json:"nbbo_ask"`
		NBBOBid    flexFloat `json:"nbbo_bid"`
		ExecutedAt flexTime  `json:"executed_at"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		logger.Warn("darkpool decode failed", "error", err)
		return nil
	}

	out := make([]market.DarkPoolPrint, 0, len(rows))
	for _, r := range rows {
		price := r.Price.val()
		if price <= 0 {
			continue
		}
		p := market.DarkPoolPrint{
			Ticker:    firstNonEmpty(r.Ticker, ticker),
			Price:     price,
			Size:      r.Size.val(),
			Premium:   r.dollars(),
			Timestamp: r.ExecutedAt.t,
			Direction: market.Neutral,
		}
		if p.Premium == 0 {
			p.Premium = price * p.Size
		}
		switch {
		case r.NBBOAsk.val() > 0 && price >= r.NBBOAsk.val():
			p.Direction = market.Bullish
		case r.NBBOBid.val() > 0 && price <= r.NBBOBid.val():
			p.Direction = market.Bearish
		}
		out = append(out, p)
	}
	return out
}

// GEXByStrike fetches the ticker's gamma exposure surface
func (c *Client) GEXByStrike(ctx context.Context, ticker string) (*market.GEXProfile, error) {
	raw, err := c.rest.Get(ctx, "/stock/"+ticker+"/greek-exposure/strike", nil)
	if err != nil || raw == nil {
		return nil, err
	}

	var rows []struct {
		Strike  flexFloat `json:"strike"`
		CallGEX flexFloat `json:"call_gamma_exposure"`
		PutGEX  flexFloat `json:"put_gamma_exposure"`
		CallAlt flexFloat `json:"call_gex"`
		PutAlt  flexFloat `json:"put_gex"`
	}
	if err := json.Unmarshal(unwrap(raw), &rows); err != nil {
		c.logger.Warn("gex decode failed", "ticker", ticker, "error", err)
		return nil, nil
	}
	if len(rows) == 0 {
		return nil, nil
	}

	profile := &market.GEXProfile{Ticker: ticker, UpdatedAt: time.Now().UTC()}
	for _, r := range rows {
		row := market.GEXRow{Strike: r.Strike.val()}
		row.CallGEX = r.CallGEX.val()
		if row.CallGEX == 0 {
			row.CallGEX = r.CallAlt.val()
		}
		row.PutGEX = r.PutGEX.val()
		if row.PutGEX == 0 {
			row.PutGEX = r.PutAlt.val()
		}
		if row.Strike > 0 {
			profile.Rows = append(profile.Rows, row)
		}
	}
	return profile, nil
}

// OHLC fetches a candle series for one timeframe (e.g. "1m", "5m", "1d")
func (c *Client) OHLC(ctx context.Context, ticker, timeframe string) ([]market.Candle, error) {
	raw, err := c.rest.Get(ctx, "/stock/"+ticker+"/ohlc/"+timeframe, nil)
	if err != nil || raw == nil {
		return nil, err
	}

	var rows []struct {
		Start  flexTime  `json:"start_time"`
		Time   flexTime  `json:"market_time"`
		Open   flexFloat `json:"open"`
		High   flexFloat `json:"high"`
		Low    flexFloat `json:"low"`
		Close  flexFloat `json:"close"`
		Volume flexFloat `json:"volume"`
	}
	if err := json.Unmarshal(unwrap(raw), &rows); err != nil {
		c.logger.Warn("ohlc decode failed", "ticker", ticker, "error", err)
		return nil, nil
	}

	out := make([]market.Candle, 0, len(rows))
	for _, r := range rows {
		out = append(out, market.Candle{
			Time:   firstTime(r.Start.t, r.Time.t),
			Open:   r.Open.val(),
			High:   r.High.val(),
			Low:    r.Low.val(),
			Close:  r.Close.val(),
			Volume: r.Volume.val(),
		})
	}
	// vendor returns newest-first; series must ascend
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// OptionVolume fetches the day's per-ticker option activity summary
func (c *Client) OptionVolume(ctx context.Context, ticker string) (*market.OptionVolume, error) {
	raw, err := c.rest.Get(ctx, "/stock/"+ticker+"/options-volume", nil)
	if err != nil || raw == nil {
		return nil, err
	}

	var rows []struct {
		CallVolume  flexFloat `json:"call_volume"`
		PutVolume   flexFloat `json:"put_volume"`
		CallPremium flexFloat `json:"call_premium"`
		PutPremium  flexFloat `json:"put_premium"`
		BullishPrem flexFloat `json:"bullish_premium"`
		BearishPrem flexFloat `json:"bearish_premium"`
		AvgTotal    flexFloat `json:"avg_30_day_volume"`
	}
	data := unwrap(raw)
	if err := json.Unmarshal(data, &rows); err != nil {
		// single-object variant
		rows = rows[:0]
		var one struct {
			CallVolume  flexFloat `json:"call_volume"`
			PutVolume   flexFloat `json:"put_volume"`
			CallPremium flexFloat `json:"call_premium"`
			PutPremium  flexFloat `json:"put_premium"`
			BullishPrem flexFloat `json:"bullish_premium"`
			BearishPrem flexFloat `json:"bearish_premium"`
			AvgTotal    flexFloat `json:"avg_30_day_volume"`
		}
		if err := json.Unmarshal(data, &one); err != nil {
			c.logger.Warn("option volume decode failed", "ticker", ticker, "error", err)
			return nil, nil
		}
		rows = append(rows, one)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	r := rows[0]
	return &market.OptionVolume{
		Ticker:      ticker,
		CallVolume:  r.CallVolume.val(),
		PutVolume:   r.PutVolume.val(),
		CallPremium: r.CallPremium.val(),
		PutPremium:  r.PutPremium.val(),
		TotalVolume: r.CallVolume.val() + r.PutVolume.val(),
		AvgTotal:    r.AvgTotal.val(),
		BullishPrem: r.BullishPrem.val(),
		BearishPrem: r.BearishPrem.val(),
	}, nil
}

// IVRank fetches the 1-year implied-volatility rank
func (c *Client) IVRank(ctx context.Context, ticker string) (*market.IVRank, error) {
	raw, err := c.rest.Get(ctx, "/stock/"+ticker+"/iv-rank", nil)
	if err != nil || raw == nil {
		return nil, err
	}
	var rows []struct {
		Rank flexFloat `json:"iv_rank_1y"`
		IV   flexFloat `json:"implied_volatility"`
	}
	if err := json.Unmarshal(unwrap(raw), &rows); err != nil || len(rows) == 0 {
		return nil, nil
	}
	return &market.IVRank{Ticker: ticker, Rank: rows[0].Rank.val(), IV: rows[0].IV.val()}, nil
}

// MaxPain fetches the front-expiry max-pain strike
func (c *Client) MaxPain(ctx context.Context, ticker string) (*market.MaxPain, error) {
	raw, err := c.rest.Get(ctx, "/stock/"+ticker+"/max-pain", nil)
	if err != nil || raw == nil {
		return nil, err
	}
	var rows []struct {
		Expiry  string    `json:"expiry"`
		MaxPain flexFloat `json:"max_pain"`
	}
	if err := json.Unmarshal(unwrap(raw), &rows); err != nil || len(rows) == 0 {
		return nil, nil
	}
	return &market.MaxPain{Ticker: ticker, Expiry: rows[0].Expiry, Strike: rows[0].MaxPain.val()}, nil
}

// OIChange fetches day-over-day open interest deltas
func (c *Client) OIChange(ctx context.Context, ticker string) ([]market.OIChange, error) {
	raw, err := c.rest.Get(ctx, "/stock/"+ticker+"/oi-change", nil)
	if err != nil || raw == nil {
		return nil, err
	}
	var rows []struct {
		CallDelta flexFloat `json:"call_oi_change"`
		PutDelta  flexFloat `json:"put_oi_change"`
	}
	if err := json.Unmarshal(unwrap(raw), &rows); err != nil {
		return nil, nil
	}
	out := make([]market.OIChange, 0, len(rows))
	for _, r := range rows {
		out = append(out, market.OIChange{
			Ticker:      ticker,
			CallOIDelta: r.CallDelta.val(),
			PutOIDelta:  r.PutDelta.val(),
		})
	}
	return out, nil
}

// Greeks fetches aggregate per-ticker greeks
func (c *Client) Greeks(ctx context.Context, ticker string) (*market.Greeks, error) {
	raw, err := c.rest.Get(ctx, "/stock/"+ticker+"/greeks", nil)
	if err != nil || raw == nil {
		return nil, err
	}
	var rows []struct {
		Delta flexFloat `json:"total_delta"`
		Gamma flexFloat `json:"total_gamma"`
		Vanna flexFloat `json:"total_vanna"`
		Charm flexFloat `json:"total_charm"`
	}
	if err := json.Unmarshal(unwrap(raw), &rows); err != nil || len(rows) == 0 {
		return nil, nil
	}
	return &market.Greeks{
		Ticker: ticker,
		Delta:  rows[0].Delta.val(),
		Gamma:  rows[0].Gamma.val(),
		Vanna:  rows[0].Vanna.val(),
		Charm:  rows[0].Charm.val(),
	}, nil
}

// ShortInterest fetches the latest short-interest report. Percent-of-float
// above 100 is invalid vendor data and dropped.
func (c *Client) ShortInterest(ctx context.Context, ticker string) (*market.ShortInterest, error) {
	raw, err := c.rest.Get(ctx, "/shorts/"+ticker+"/interest-float", nil)
	if err != nil || raw == nil {
		return nil, err
	}
	var rows []struct {
		PercentOfFloat flexFloat `json:"short_interest_percent_float"`
		DaysToCover    flexFloat `json:"days_to_cover"`
		Utilization    flexFloat `json:"utilization"`
		ShortVolRatio  flexFloat `json:"short_volume_ratio"`
		ReportDate     string    `json:"report_date"`
	}
	if err := json.Unmarshal(unwrap(raw), &rows); err != nil || len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	pct := r.PercentOfFloat.val()
	// Some reports carry the value as a fraction of float. Only normalize
	// well below 1%, so a genuine low reading like 0.8% passes through.
	if pct > 0 && pct < 0.5 {
		c.logger.Debug("short interest reported as fraction", "ticker", ticker, "raw", pct)
		pct *= 100
	}
	if pct > 100 {
		return nil, nil
	}
	return &market.ShortInterest{
		Ticker:         ticker,
		PercentOfFloat: pct,
		DaysToCover:    r.DaysToCover.val(),
		Utilization:    r.Utilization.val(),
		ShortVolRatio:  r.ShortVolRatio.val(),
		ReportDate:     r.ReportDate,
		UpdatedAt:      time.Now().UTC(),
	}, nil
}

// FTDs fetches the ticker's recent fails-to-deliver records
func (c *Client) FTDs(ctx context.Context, ticker string) ([]market.FTDRecord, error) {
	raw, err := c.rest.Get(ctx, "/shorts/"+ticker+"/ftds", nil)
	if err != nil || raw == nil {
		return nil, err
	}
	var rows []struct {
		Date     string    `json:"settlement_date"`
		Quantity flexFloat `json:"quantity"`
	}
	if err := json.Unmarshal(unwrap(raw), &rows); err != nil {
		return nil, nil
	}
	out := make([]market.FTDRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, market.FTDRecord{Date: r.Date, Quantity: r.Quantity.val()})
	}
	return out, nil
}

// StockState fetches the day OHLC state, used to refresh prev-close
func (c *Client) StockState(ctx context.Context, ticker string) (*market.Quote, error) {
	raw, err := c.rest.Get(ctx, "/stock/"+ticker+"/stock-state", nil)
	if err != nil || raw == nil {
		return nil, err
	}
	var w struct {
		Open      flexFloat `json:"open"`
		High      flexFloat `json:"high"`
		Low       flexFloat `json:"low"`
		Close     flexFloat `json:"close"`
		Volume    flexFloat `json:"total_volume"`
		PrevClose flexFloat `json:"prev_close"`
	}
	if err := json.Unmarshal(unwrap(raw), &w); err != nil {
		return nil, nil
	}
	if w.Close.val() == 0 {
		return nil, nil
	}
	return &market.Quote{
		Ticker:    ticker,
		Last:      w.Close.val(),
		Open:      w.Open.val(),
		High:      w.High.val(),
		Low:       w.Low.val(),
		Volume:    w.Volume.val(),
		PrevClose: w.PrevClose.val(),
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Insider fetches the ticker's insider filings
func (c *Client) Insider(ctx context.Context, ticker string) ([]market.InsiderTransaction, error) {
	raw, err := c.rest.Get(ctx, "/insider/"+ticker, nil)
	if err != nil || raw == nil {
		return nil, err
	}
	return decodeInsider(unwrap(raw), ticker, c.logger), nil
}

// InsiderTransactions fetches the market-wide insider filing feed
func (c *Client) InsiderTransactions(ctx context.Context) ([]market.InsiderTransaction, error) {
	raw, err := c.rest.Get(ctx, "/insider/transactions", url.Values{"limit": {"50"}})
	if err != nil || raw == nil {
		return nil, err
	}
	return decodeInsider(unwrap(raw), "", c.logger), nil
}

func decodeInsider(data json.RawMessage, ticker string, logger *logging.Logger) []market.InsiderTransaction {
	var rows []struct {
		Ticker      string    `json:"ticker"`
		Name        string    `json:"owner_name"`
		Title       string    `json:"officer_title"`
		Transaction string    `json:"transaction_code"`
		Shares      flexFloat `json:"amount"`
		Value       flexFloat `json:"value"`
		FiledAt     flexTime  `json:"filing_date"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		logger.Warn("insider decode failed", "error", err)
		return nil
	}
	out := make([]market.InsiderTransaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, market.InsiderTransaction{
			Ticker:      firstNonEmpty(r.Ticker, ticker),
			Insider:     r.Name,
			Title:       r.Title,
			Transaction: r.Transaction,
			Shares:      r.Shares.val(),
			Value:       r.Value.val(),
			FiledAt:     r.FiledAt.t,
		})
	}
	return out
}

// Earnings fetches the ticker's next earnings date
func (c *Client) Earnings(ctx context.Context, ticker string) (*market.EarningsInfo, error) {
	raw, err := c.rest.Get(ctx, "/earnings/"+ticker, nil)
	if err != nil || raw == nil {
		return nil, err
	}
	var rows []struct {
		ReportDate string `json:"report_date"`
	}
	if err := json.Unmarshal(unwrap(raw), &rows); err != nil || len(rows) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	next := ""
	days := -1
	for _, r := range rows {
		d, err := time.Parse("2006-01-02", r.ReportDate)
		if err != nil || d.Before(now.Truncate(24*time.Hour)) {
			continue
		}
		if next == "" || r.ReportDate < next {
			next = r.ReportDate
			days = int(d.Sub(now).Hours() / 24)
		}
	}
	if next == "" {
		return nil, nil
	}
	return &market.EarningsInfo{Ticker: ticker, NextEarnings: next, DaysUntil: days, FetchedAt: now}, nil
}

// ===== Market-wide endpoints =====

// MarketTide fetches the market-wide net option flow summary
func (c *Client) MarketTide(ctx context.Context) (*market.MarketTide, error) {
	raw, err := c.rest.Get(ctx, "/market/market-tide", nil)
	if err != nil || raw == nil {
		return nil, err
	}
	var rows []struct {
		NetCall   flexFloat `json:"net_call_premium"`
		NetPut    flexFloat `json:"net_put_premium"`
		NetVolume flexFloat `json:"net_volume"`
		Timestamp flexTime  `json:"timestamp"`
	}
	if err := json.Unmarshal(unwrap(raw), &rows); err != nil || len(rows) == 0 {
		return nil, nil
	}
	last := rows[len(rows)-1]
	return &market.MarketTide{
		NetCallPremium: last.NetCall.val(),
		NetPutPremium:  last.NetPut.val(),
		NetVolume:      last.NetVolume.val(),
		Timestamp:      last.Timestamp.t,
	}, nil
}

// News fetches recent headlines
func (c *Client) News(ctx context.Context) ([]market.NewsItem, error) {
	raw, err := c.rest.Get(ctx, "/news/headlines", url.Values{"limit": {"50"}})
	if err != nil || raw == nil {
		return nil, err
	}
	var rows []struct {
		Headline  string   `json:"headline"`
		Tickers   []string `json:"tickers"`
		Source    string   `json:"source"`
		Sentiment string   `json:"sentiment"`
		CreatedAt flexTime `json:"created_at"`
	}
	if err := json.Unmarshal(unwrap(raw), &rows); err != nil {
		return nil, nil
	}
	out := make([]market.NewsItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, market.NewsItem{
			Headline:  r.Headline,
			Tickers:   r.Tickers,
			Source:    r.Source,
			Sentiment: r.Sentiment,
			Timestamp: r.CreatedAt.t,
		})
	}
	return out, nil
}

// TopNetImpact fetches the tickers with the largest net option premium impact
func (c *Client) TopNetImpact(ctx context.Context) ([]market.NetImpactRow, error) {
	raw, err := c.rest.Get(ctx, "/market/top-net-impact", nil)
	if err != nil || raw == nil {
		return nil, err
	}
	var rows []struct {
		Ticker    string    `json:"ticker"`
		NetImpact flexFloat `json:"net_impact"`
	}
	if err := json.Unmarshal(unwrap(raw), &rows); err != nil {
		return nil, nil
	}
	out := make([]market.NetImpactRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, market.NetImpactRow{Ticker: r.Ticker, NetImpact: r.NetImpact.val()})
	}
	return out, nil
}

// Spike fetches the market volatility spike reading (latest value)
func (c *Client) Spike(ctx context.Context) (float64, error) {
	raw, err := c.rest.Get(ctx, "/market/spike", nil)
	if err != nil || raw == nil {
		return 0, err
	}
	var rows []struct {
		Value flexFloat `json:"value"`
	}
	if err := json.Unmarshal(unwrap(raw), &rows); err != nil || len(rows) == 0 {
		return 0, nil
	}
	return rows[len(rows)-1].Value.val(), nil
}

// CongressRecent fetches the latest congressional trading disclosures
func (c *Client) CongressRecent(ctx context.Context) ([]market.CongressTrade, error) {
	raw, err := c.rest.Get(ctx, "/congress/recent-trades", url.Values{"limit": {"50"}})
	if err != nil || raw == nil {
		return nil, err
	}
	var rows []struct {
		Ticker      string   `json:"ticker"`
		Member      string   `json:"reporter"`
		Chamber     string   `json:"chamber"`
		Transaction string   `json:"txn_type"`
		Amount      string   `json:"amounts"`
		FiledAt     flexTime `json:"filed_at_date"`
		TradedAt    flexTime `json:"transaction_date"`
	}
	if err := json.Unmarshal(unwrap(raw), &rows); err != nil {
		return nil, nil
	}
	out := make([]market.CongressTrade, 0, len(rows))
	for _, r := range rows {
		out = append(out, market.CongressTrade{
			Ticker:      r.Ticker,
			Member:      r.Member,
			Chamber:     r.Chamber,
			Transaction: strings.ToLower(r.Transaction),
			Amount:      r.Amount,
			FiledAt:     r.FiledAt.t,
			TradedAt:    r.TradedAt.t,
		})
	}
	return out, nil
}

// EconomicCalendar fetches upcoming economic events
func (c *Client) EconomicCalendar(ctx context.Context) ([]market.EconomicEvent, error) {
	raw, err := c.rest.Get(ctx, "/market/economic-calendar", nil)
	if err != nil || raw == nil {
		return nil, err
	}
	var rows []struct {
		Event    string   `json:"event"`
		Forecast string   `json:"forecast"`
		Prior    string   `json:"prev"`
		Time     flexTime `json:"time"`
	}
	if err := json.Unmarshal(unwrap(raw), &rows); err != nil {
		return nil, nil
	}
	out := make([]market.EconomicEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, market.EconomicEvent{
			Event:    r.Event,
			Country:  "US",
			Forecast: r.Forecast,
			Prior:    r.Prior,
			Time:     r.Time.t,
		})
	}
	return out, nil
}

// TotalOptionsVolume fetches the market-wide option volume summary
func (c *Client) TotalOptionsVolume(ctx context.Context) (*market.OptionVolume, error) {
	raw, err := c.rest.Get(ctx, "/market/total-options-volume", nil)
	if err != nil || raw == nil {
		return nil, err
	}
	var rows []struct {
		CallVolume  flexFloat `json:"call_volume"`
		PutVolume   flexFloat `json:"put_volume"`
		CallPremium flexFloat `json:"call_premium"`
		PutPremium  flexFloat `json:"put_premium"`
	}
	if err := json.Unmarshal(unwrap(raw), &rows); err != nil || len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	return &market.OptionVolume{
		Ticker:      "MARKET",
		CallVolume:  r.CallVolume.val(),
		PutVolume:   r.PutVolume.val(),
		CallPremium: r.CallPremium.val(),
		PutPremium:  r.PutPremium.val(),
		TotalVolume: r.CallVolume.val() + r.PutVolume.val(),
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstTime(vals ...time.Time) time.Time {
	for _, v := range vals {
		if !v.IsZero() {
			return v
		}
	}
	return time.Time{}
}
