package state

import (
	"sync"
	"time"

	"market-intel-bot/internal/market"
	"market-intel-bot/internal/technicals"
)

// Store guards the state document. Single writer (the orchestrator), many
// readers (broadcast shell, HTTP handlers). Every setter replaces a whole
// subtree under the write lock so readers never observe a torn payload.
type Store struct {
	mu sync.RWMutex
	s  *State
}

// NewStore creates a store with an empty document
func NewStore(tickers []string) *Store {
	s := NewState()
	s.Tickers = append([]string(nil), tickers...)
	return &Store{s: s}
}

// ===== Per-ticker writes =====

func (st *Store) SetQuote(ticker string, q *market.Quote) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Quotes[ticker] = q
}

func (st *Store) SetTechnicals(ticker, timeframe string, snap *technicals.Snapshot) {
	st.mu.Lock()
	defer st.mu.Unlock()
	byTF := st.s.Technicals[ticker]
	if byTF == nil {
		byTF = map[string]*technicals.Snapshot{}
		st.s.Technicals[ticker] = byTF
	}
	byTF[timeframe] = snap
}

func (st *Store) SetGEX(ticker string, p *market.GEXProfile) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.GEX[ticker] = p
}

func (st *Store) SetDarkPool(ticker string, prints []market.DarkPoolPrint) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.DarkPool[ticker] = prints
}

func (st *Store) SetFlow(ticker string, items []market.FlowItem) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Flow[ticker] = items
}

func (st *Store) SetOptionVolume(ticker string, v *market.OptionVolume) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.OptionVolume[ticker] = v
}

func (st *Store) SetIVRank(ticker string, v *market.IVRank) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.IVRank[ticker] = v
}

func (st *Store) SetMaxPain(ticker string, v *market.MaxPain) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.MaxPain[ticker] = v
}

func (st *Store) SetOIChanges(ticker string, rows []market.OIChange) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.OIChanges[ticker] = rows
}

func (st *Store) SetGreeks(ticker string, g *market.Greeks) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Greeks[ticker] = g
}

func (st *Store) SetShortInterest(ticker string, si *market.ShortInterest) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.ShortData[ticker] = si
}

func (st *Store) SetFTDs(ticker string, recs []market.FTDRecord) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.FTDs[ticker] = recs
}

func (st *Store) SetEarnings(ticker string, e *market.EarningsInfo) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Earnings[ticker] = e
}

func (st *Store) SetInsider(ticker string, txs []market.InsiderTransaction) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Insider[ticker] = txs
}

func (st *Store) SetSetup(ticker string, setup *market.Setup) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if setup == nil {
		delete(st.s.TradeSetups, ticker)
		return
	}
	st.s.TradeSetups[ticker] = setup
}

func (st *Store) SetSignal(ticker string, sig *market.SignalResult) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Signals[ticker] = sig
}

// ===== Market-wide writes =====

func (st *Store) SetOptionsFlow(items []market.FlowItem) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.OptionsFlow = capSlice(items, MaxGlobalItems)
}

func (st *Store) SetDarkPoolRecent(prints []market.DarkPoolPrint) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.DarkPoolRecent = capSlice(prints, MaxGlobalItems)
}

// PushFlow unshifts a live lit print into the market-wide flow feed
func (st *Store) PushFlow(item market.FlowItem) {
	st.mu.Lock()
	defer st.mu.Unlock()
	items := make([]market.FlowItem, 0, len(st.s.OptionsFlow)+1)
	items = append(items, item)
	items = append(items, st.s.OptionsFlow...)
	st.s.OptionsFlow = capSlice(items, MaxGlobalItems)
}

// PushDarkPool unshifts a live off-lit print into the market-wide feed
func (st *Store) PushDarkPool(p market.DarkPoolPrint) {
	st.mu.Lock()
	defer st.mu.Unlock()
	prints := make([]market.DarkPoolPrint, 0, len(st.s.DarkPoolRecent)+1)
	prints = append(prints, p)
	prints = append(prints, st.s.DarkPoolRecent...)
	st.s.DarkPoolRecent = capSlice(prints, MaxGlobalItems)
}

func (st *Store) SetTopNetImpact(rows []market.NetImpactRow) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.TopNetImpact = rows
}

func (st *Store) SetNews(items []market.NewsItem) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.News = capSlice(items, MaxGlobalItems)
}

func (st *Store) SetCongressTrades(items []market.CongressTrade) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.CongressTrades = capSlice(items, MaxGlobalItems)
}

func (st *Store) SetEconomicCalendar(items []market.EconomicEvent) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.EconomicCalendar = items
}

func (st *Store) SetMovers(items []market.Mover) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Movers = items
}

func (st *Store) SetMarketTide(tide *market.MarketTide) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.MarketTide = tide
}

func (st *Store) SetDiscoveries(items []market.Discovery) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Discoveries = items
}

// ===== Scalars =====

func (st *Store) SetSession(session string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Session = session
}

func (st *Store) SetMarketRegime(regime string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.MarketRegime = regime
}

func (st *Store) SetSentiment(sentiment string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Sentiment = sentiment
}

func (st *Store) SetTickers(tickers []string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Tickers = append([]string(nil), tickers...)
}

// Touch marks the end of a completed cycle
func (st *Store) Touch(now time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.LastUpdate = now
}

// PushAlert unshifts an alert; the ring keeps the newest MaxAlerts entries
// in descending time order.
func (st *Store) PushAlert(a market.Alert) {
	st.mu.Lock()
	defer st.mu.Unlock()
	alerts := make([]market.Alert, 0, len(st.s.Alerts)+1)
	alerts = append(alerts, a)
	alerts = append(alerts, st.s.Alerts...)
	if len(alerts) > MaxAlerts {
		alerts = alerts[:MaxAlerts]
	}
	st.s.Alerts = alerts
}

// ===== Reads =====

func (st *Store) Quote(ticker string) *market.Quote {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s.Quotes[ticker]
}

func (st *Store) TechnicalsFor(ticker, timeframe string) *technicals.Snapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if byTF := st.s.Technicals[ticker]; byTF != nil {
		return byTF[timeframe]
	}
	return nil
}

func (st *Store) Tickers() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return append([]string(nil), st.s.Tickers...)
}

func (st *Store) Alerts() []market.Alert {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return append([]market.Alert(nil), st.s.Alerts...)
}

// Snapshot returns a read-consistent copy of the document. Maps and slices
// are cloned one level deep; the payloads they point at are immutable by
// store convention, so sharing them is safe.
func (st *Store) Snapshot() *State {
	st.mu.RLock()
	defer st.mu.RUnlock()

	c := *st.s
	c.Tickers = append([]string(nil), st.s.Tickers...)
	c.Quotes = cloneMap(st.s.Quotes)
	c.GEX = cloneMap(st.s.GEX)
	c.DarkPool = cloneMap(st.s.DarkPool)
	c.Flow = cloneMap(st.s.Flow)
	c.OptionVolume = cloneMap(st.s.OptionVolume)
	c.IVRank = cloneMap(st.s.IVRank)
	c.MaxPain = cloneMap(st.s.MaxPain)
	c.OIChanges = cloneMap(st.s.OIChanges)
	c.Greeks = cloneMap(st.s.Greeks)
	c.ShortData = cloneMap(st.s.ShortData)
	c.FTDs = cloneMap(st.s.FTDs)
	c.Earnings = cloneMap(st.s.Earnings)
	c.Insider = cloneMap(st.s.Insider)
	c.TradeSetups = cloneMap(st.s.TradeSetups)
	c.Signals = cloneMap(st.s.Signals)

	c.Technicals = make(map[string]map[string]*technicals.Snapshot, len(st.s.Technicals))
	for ticker, byTF := range st.s.Technicals {
		c.Technicals[ticker] = cloneMap(byTF)
	}

	c.OptionsFlow = append([]market.FlowItem(nil), st.s.OptionsFlow...)
	c.DarkPoolRecent = append([]market.DarkPoolPrint(nil), st.s.DarkPoolRecent...)
	c.TopNetImpact = append([]market.NetImpactRow(nil), st.s.TopNetImpact...)
	c.News = append([]market.NewsItem(nil), st.s.News...)
	c.CongressTrades = append([]market.CongressTrade(nil), st.s.CongressTrades...)
	c.EconomicCalendar = append([]market.EconomicEvent(nil), st.s.EconomicCalendar...)
	c.Movers = append([]market.Mover(nil), st.s.Movers...)
	c.Alerts = append([]market.Alert(nil), st.s.Alerts...)
	c.Discoveries = append([]market.Discovery(nil), st.s.Discoveries...)

	return &c
}

// Restore replaces the whole document, used once at startup from the
// persisted snapshot.
func (st *Store) Restore(s *State) {
	if s == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if s.Quotes == nil {
		fresh := NewState()
		fresh.Tickers = s.Tickers
		s = fresh
	}
	st.s = s
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func capSlice[T any](s []T, max int) []T {
	if len(s) > max {
		return s[:max]
	}
	return s
}
