package state

import (
	"time"

	"market-intel-bot/internal/market"
	"market-intel-bot/internal/technicals"
)

// Bounded sizes for global lists and the alert ring
const (
	MaxAlerts      = 200
	MaxGlobalItems = 100
)

// State is the full in-memory document broadcast to clients and snapshotted
// to disk. Values stored in it are treated as immutable: writers replace
// whole subtrees, never mutate payloads in place. That discipline is what
// makes the shallow-clone Snapshot safe.
type State struct {
	Tickers []string `json:"tickers"`

	Quotes       map[string]*market.Quote                   `json:"quotes"`
	Technicals   map[string]map[string]*technicals.Snapshot `json:"technicals"` // ticker -> timeframe
	GEX          map[string]*market.GEXProfile              `json:"gex"`
	DarkPool     map[string][]market.DarkPoolPrint          `json:"darkPool"`
	Flow         map[string][]market.FlowItem               `json:"flow"`
	OptionVolume map[string]*market.OptionVolume            `json:"optionVolume"`
	IVRank       map[string]*market.IVRank                  `json:"ivRank"`
	MaxPain      map[string]*market.MaxPain                 `json:"maxPain"`
	OIChanges    map[string][]market.OIChange               `json:"oiChanges"`
	Greeks       map[string]*market.Greeks                  `json:"greeks"`
	ShortData    map[string]*market.ShortInterest           `json:"shortData"`
	FTDs         map[string][]market.FTDRecord              `json:"ftds"`
	Earnings     map[string]*market.EarningsInfo            `json:"earnings"`
	Insider      map[string][]market.InsiderTransaction     `json:"insider"`

	OptionsFlow      []market.FlowItem      `json:"optionsFlow"`
	DarkPoolRecent   []market.DarkPoolPrint `json:"darkPoolRecent"`
	TopNetImpact     []market.NetImpactRow  `json:"topNetImpact"`
	News             []market.NewsItem      `json:"news"`
	CongressTrades   []market.CongressTrade `json:"congressTrades"`
	EconomicCalendar []market.EconomicEvent `json:"economicCalendar"`
	Movers           []market.Mover         `json:"movers"`

	MarketTide *market.MarketTide `json:"marketTide"`

	TradeSetups map[string]*market.Setup        `json:"tradeSetups"`
	Signals     map[string]*market.SignalResult `json:"signals"`

	Alerts      []market.Alert     `json:"alerts"`
	Discoveries []market.Discovery `json:"discoveries"`

	Session      string    `json:"session"`
	MarketRegime string    `json:"marketRegime"`
	Sentiment    string    `json:"sentiment"`
	LastUpdate   time.Time `json:"lastUpdate"`
}

// NewState allocates an empty document with all maps ready
func NewState() *State {
	return &State{
		Quotes:       map[string]*market.Quote{},
		Technicals:   map[string]map[string]*technicals.Snapshot{},
		GEX:          map[string]*market.GEXProfile{},
		DarkPool:     map[string][]market.DarkPoolPrint{},
		Flow:         map[string][]market.FlowItem{},
		OptionVolume: map[string]*market.OptionVolume{},
		IVRank:       map[string]*market.IVRank{},
		MaxPain:      map[string]*market.MaxPain{},
		OIChanges:    map[string][]market.OIChange{},
		Greeks:       map[string]*market.Greeks{},
		ShortData:    map[string]*market.ShortInterest{},
		FTDs:         map[string][]market.FTDRecord{},
		Earnings:     map[string]*market.EarningsInfo{},
		Insider:      map[string][]market.InsiderTransaction{},
		TradeSetups:  map[string]*market.Setup{},
		Signals:      map[string]*market.SignalResult{},
	}
}
