package market

import "time"

// ============================================================================
// DIRECTIONAL ENUMS
// ============================================================================

// Direction is the side of a trade or setup
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Opposite returns the other side
func (d Direction) Opposite() Direction {
	if d == Long {
		return Short
	}
	return Long
}

// Bias is the directional lean of a ticker derived from weighted indicator points
type Bias string

const (
	Bullish Bias = "BULLISH"
	Bearish Bias = "BEARISH"
	Neutral Bias = "NEUTRAL"
)

// Severity classifies alerts
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Horizon is the expected holding period of a setup
type Horizon string

const (
	HorizonScalp    Horizon = "Scalp"
	HorizonDayTrade Horizon = "DayTrade"
	HorizonIntraday Horizon = "Intraday"
	HorizonSwing1d  Horizon = "Swing-1-3d"
	HorizonSwing3d  Horizon = "Swing-3-5d"
)

// Intraday reports whether positions on this horizon must be flat by the close
func (h Horizon) Intraday() bool {
	switch h {
	case HorizonScalp, HorizonDayTrade, HorizonIntraday:
		return true
	}
	return false
}

// ============================================================================
// MARKET DATA RECORDS
// ============================================================================

// Candle is a single OHLCV bar. Series are ordered ascending by time.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	VWAP   float64   `json:"vwap,omitempty"`
}

// Quote is the latest per-ticker price snapshot, refreshed every HOT cycle
type Quote struct {
	Ticker        string    `json:"ticker"`
	Last          float64   `json:"last"`
	Bid           float64   `json:"bid"`
	Ask           float64   `json:"ask"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Volume        float64   `json:"volume"`
	VWAP          float64   `json:"vwap"`
	PrevClose     float64   `json:"prev_close"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FlowItem is a single normalized options-flow print
type FlowItem struct {
	Ticker       string    `json:"ticker"`
	ContractType string    `json:"contract_type"` // "call" or "put"
	Strike       float64   `json:"strike"`
	Expiry       string    `json:"expiry"`
	Premium      float64   `json:"premium"`
	Execution    string    `json:"execution"` // "block", "sweep", "lit"
	Timestamp    time.Time `json:"timestamp"`
	Direction    Bias      `json:"direction"`
}

// DarkPoolPrint is an off-lit execution. Direction is inferred by price vs spot:
// above ask bullish, below bid bearish, else neutral.
type DarkPoolPrint struct {
	Ticker    string    `json:"ticker"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	Premium   float64   `json:"premium"`
	Timestamp time.Time `json:"timestamp"`
	Direction Bias      `json:"direction"`
}

// GEXRow is dealer gamma exposure at one strike
type GEXRow struct {
	Strike  float64 `json:"strike"`
	CallGEX float64 `json:"call_gex"`
	PutGEX  float64 `json:"put_gex"`
}

// Net returns call minus put gamma at the strike. Positive strikes act as
// support walls, negative strikes as magnets.
func (g GEXRow) Net() float64 {
	return g.CallGEX + g.PutGEX
}

// GEXProfile is the per-ticker gamma exposure surface
type GEXProfile struct {
	Ticker    string    `json:"ticker"`
	Rows      []GEXRow  `json:"rows"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ShortInterest is the latest short-interest report for a ticker
type ShortInterest struct {
	Ticker         string    `json:"ticker"`
	PercentOfFloat float64   `json:"percent_of_float"`
	DaysToCover    float64   `json:"days_to_cover"`
	Utilization    float64   `json:"utilization,omitempty"`
	ShortVolRatio  float64   `json:"short_vol_ratio"`
	ReportDate     string    `json:"report_date"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FTDRecord is a fails-to-deliver entry
type FTDRecord struct {
	Date     string  `json:"date"`
	Quantity float64 `json:"quantity"`
}

// OptionVolume summarizes the day's per-ticker option activity
type OptionVolume struct {
	Ticker      string  `json:"ticker"`
	CallVolume  float64 `json:"call_volume"`
	PutVolume   float64 `json:"put_volume"`
	CallPremium float64 `json:"call_premium"`
	PutPremium  float64 `json:"put_premium"`
	TotalVolume float64 `json:"total_volume"`
	AvgTotal    float64 `json:"avg_total_volume"`
	BearishPrem float64 `json:"bearish_premium"`
	BullishPrem float64 `json:"bullish_premium"`
	IVRank      float64 `json:"iv_rank,omitempty"`
	ImpliedMove float64 `json:"implied_move,omitempty"`
}

// IVRank is the 1-year implied-volatility rank
type IVRank struct {
	Ticker string  `json:"ticker"`
	Rank   float64 `json:"rank"`
	IV     float64 `json:"iv"`
}

// MaxPain is the strike minimizing writer payout for the front expiry
type MaxPain struct {
	Ticker string  `json:"ticker"`
	Expiry string  `json:"expiry"`
	Strike float64 `json:"strike"`
}

// OIChange is the day-over-day open interest delta
type OIChange struct {
	Ticker      string  `json:"ticker"`
	CallOIDelta float64 `json:"call_oi_delta"`
	PutOIDelta  float64 `json:"put_oi_delta"`
}

// Greeks are aggregate per-ticker option greeks
type Greeks struct {
	Ticker string  `json:"ticker"`
	Delta  float64 `json:"delta"`
	Gamma  float64 `json:"gamma"`
	Vanna  float64 `json:"vanna"`
	Charm  float64 `json:"charm"`
}

// NewsItem is one headline from the news feed
type NewsItem struct {
	Headline  string    `json:"headline"`
	Tickers   []string  `json:"tickers"`
	Source    string    `json:"source"`
	Sentiment string    `json:"sentiment,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CongressTrade is a congressional trading disclosure
type CongressTrade struct {
	Ticker      string    `json:"ticker"`
	Member      string    `json:"member"`
	Chamber     string    `json:"chamber"`
	Transaction string    `json:"transaction"` // "buy" or "sell"
	Amount      string    `json:"amount"`
	FiledAt     time.Time `json:"filed_at"`
	TradedAt    time.Time `json:"traded_at"`
}

// InsiderTransaction is a corporate insider filing
type InsiderTransaction struct {
	Ticker      string    `json:"ticker"`
	Insider     string    `json:"insider"`
	Title       string    `json:"title"`
	Transaction string    `json:"transaction"`
	Shares      float64   `json:"shares"`
	Value       float64   `json:"value"`
	FiledAt     time.Time `json:"filed_at"`
}

// EconomicEvent is one economic-calendar entry
type EconomicEvent struct {
	Event    string    `json:"event"`
	Country  string    `json:"country"`
	Forecast string    `json:"forecast,omitempty"`
	Prior    string    `json:"prior,omitempty"`
	Time     time.Time `json:"time"`
}

// EarningsInfo is the cached next-earnings lookup for a ticker
type EarningsInfo struct {
	Ticker       string    `json:"ticker"`
	NextEarnings string    `json:"nextEarnings"`
	DaysUntil    int       `json:"daysUntil"`
	FetchedAt    time.Time `json:"fetchedAt"`
}

// MarketTide is the market-wide net option flow summary
type MarketTide struct {
	NetCallPremium float64   `json:"net_call_premium"`
	NetPutPremium  float64   `json:"net_put_premium"`
	NetVolume      float64   `json:"net_volume"`
	Timestamp      time.Time `json:"timestamp"`
}

// NetImpactRow is one entry from the top-net-impact feed
type NetImpactRow struct {
	Ticker    string  `json:"ticker"`
	NetImpact float64 `json:"net_impact"`
}

// Mover is a gainers/losers row from the tick vendor
type Mover struct {
	Ticker        string  `json:"ticker"`
	Last          float64 `json:"last"`
	ChangePercent float64 `json:"change_percent"`
}

// ============================================================================
// SIGNAL OUTPUT RECORDS
// ============================================================================

// Setup is the concrete tradeable triple consumed by the paper-trading journal.
// For LONG: stop < entry <= target1 <= target2; SHORT mirrors.
type Setup struct {
	Ticker     string    `json:"ticker"`
	Direction  Direction `json:"direction"`
	Entry      float64   `json:"entry"`
	Target1    float64   `json:"target1"`
	Target2    float64   `json:"target2"`
	Stop       float64   `json:"stop"`
	RiskReward float64   `json:"risk_reward"`
	Confidence float64   `json:"confidence"`
	Horizon    Horizon   `json:"horizon"`
	Session    string    `json:"session"`
	CreatedAt  time.Time `json:"created_at"`
}

// NamedContribution is one named signal contribution to a fused score
type NamedContribution struct {
	Name   string  `json:"name"`
	Side   Bias    `json:"side"`
	Points float64 `json:"points"`
}

// SignalResult is the fused per-ticker output of the signal engine
type SignalResult struct {
	Ticker     string              `json:"ticker"`
	Direction  Bias                `json:"direction"`
	Confidence float64             `json:"confidence"`
	BullScore  float64             `json:"bull_score"`
	BearScore  float64             `json:"bear_score"`
	Features   []float64           `json:"features"`
	Signals    []NamedContribution `json:"signals"`
	Horizon    Horizon             `json:"horizon"`
	Setup      *Setup              `json:"setup,omitempty"`
	Ensemble   *EnsembleResult     `json:"ensemble,omitempty"`
	Squeeze    *SqueezeScore       `json:"squeeze,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
}

// EnsembleResult blends the rule score with the ML calibrator probability
type EnsembleResult struct {
	RuleConfidence float64 `json:"rule_confidence"`
	MLProbability  float64 `json:"ml_probability"`
	Blended        float64 `json:"blended"`
	ModelPresent   bool    `json:"model_present"`
}

// SqueezeScore is the 0..6 composite from SI / FTD / short-volume thresholds
type SqueezeScore struct {
	Ticker string `json:"ticker"`
	Score  int    `json:"score"`
	Label  string `json:"label"`
}

// Alert is a single alert-engine emission
type Alert struct {
	ID        string    `json:"id"`
	Ticker    string    `json:"ticker"`
	Session   string    `json:"session"`
	Type      string    `json:"type"`
	Direction Bias      `json:"direction"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Discovery is one scored market-scanner result
type Discovery struct {
	Ticker     string    `json:"ticker"`
	Sources    []string  `json:"sources"`
	Weight     float64   `json:"weight"`
	Direction  Bias      `json:"direction"`
	Confidence float64   `json:"confidence"`
	FoundAt    time.Time `json:"found_at"`
}
