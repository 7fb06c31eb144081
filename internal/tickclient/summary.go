package tickclient

import (
	"sync"
	"time"
)

// Aggregate ring bounds: 300 one-second bars, 390 one-minute bars (a full
// regular session).
const (
	maxSecondBars = 300
	maxMinuteBars = 390

	rollingWindow = 5 * time.Minute
)

// TradeSide is the tick-rule classification of one trade
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
	SideMid  TradeSide = "MID"
)

// rejectConditions are trade condition codes excluded from tape analytics:
// average-price, odd-lot, contingent, prior-reference prints.
var rejectConditions = map[int]bool{15: true, 16: true, 37: true, 52: true}

// Trade is one classified tape print
type Trade struct {
	Price float64
	Size  float64
	Side  TradeSide
	Time  time.Time
}

// AggBar is one second/minute aggregate
type AggBar struct {
	Start  time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	VWAP   float64
}

// Summary is the live per-ticker tape state fed by the websocket. Writers
// and readers share a fine-grained mutex; the signal engine reads by copy.
type Summary struct {
	mu sync.Mutex

	ticker string

	last     float64
	bid      float64
	ask      float64
	lastSide TradeSide

	volume     float64
	notional   float64
	buyVolume  float64
	sellVolume float64

	hod float64
	lod float64

	recent []Trade // rolling 5-minute deque

	secondBars []AggBar
	minuteBars []AggBar
}

// NewSummary creates the tape state for one ticker
func NewSummary(ticker string) *Summary {
	return &Summary{ticker: ticker, lastSide: SideMid}
}

// SetQuote records the latest NBBO, used by the mid-quote tie rule
func (s *Summary) SetQuote(bid, ask float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bid = bid
	s.ask = ask
}

// RecordTrade classifies and folds one print into the running totals.
// Trades carrying a rejected condition code are dropped entirely.
func (s *Summary) RecordTrade(price, size float64, conditions []int, at time.Time) {
	for _, cond := range conditions {
		if rejectConditions[cond] {
			return
		}
	}
	if price <= 0 || size <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	side := s.classifyLocked(price)

	s.volume += size
	s.notional += price * size
	switch side {
	case SideBuy:
		s.buyVolume += size
	case SideSell:
		s.sellVolume += size
	}

	if s.hod == 0 || price > s.hod {
		s.hod = price
	}
	if s.lod == 0 || price < s.lod {
		s.lod = price
	}

	s.last = price
	s.lastSide = side

	s.recent = append(s.recent, Trade{Price: price, Size: size, Side: side, Time: at})
	s.trimRecentLocked(at)
}

// classifyLocked applies the tick rule: up-tick BUY, down-tick SELL; on an
// equal price fall back to the mid-quote rule when both sides of the NBBO
// are known, else inherit the last direction.
func (s *Summary) classifyLocked(price float64) TradeSide {
	switch {
	case s.last == 0:
		return SideMid
	case price > s.last:
		return SideBuy
	case price < s.last:
		return SideSell
	}

	if s.bid > 0 && s.ask > 0 {
		mid := (s.bid + s.ask) / 2
		switch {
		case price > mid:
			return SideBuy
		case price < mid:
			return SideSell
		}
	}
	return s.lastSide
}

func (s *Summary) trimRecentLocked(now time.Time) {
	cutoff := now.Add(-rollingWindow)
	i := 0
	for i < len(s.recent) && s.recent[i].Time.Before(cutoff) {
		i++
	}
	if i > 0 {
		s.recent = s.recent[i:]
	}
}

// RecordSecondBar appends a one-second aggregate, keeping the newest 300
func (s *Summary) RecordSecondBar(bar AggBar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secondBars = appendBounded(s.secondBars, bar, maxSecondBars)
}

// RecordMinuteBar appends a one-minute aggregate, keeping the newest 390
func (s *Summary) RecordMinuteBar(bar AggBar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minuteBars = appendBounded(s.minuteBars, bar, maxMinuteBars)
	if bar.High > s.hod || s.hod == 0 {
		s.hod = bar.High
	}
	if bar.Low < s.lod || s.lod == 0 {
		s.lod = bar.Low
	}
}

func appendBounded(bars []AggBar, bar AggBar, max int) []AggBar {
	bars = append(bars, bar)
	if len(bars) > max {
		bars = bars[len(bars)-max:]
	}
	return bars
}

// Stats is the copied-out view of a Summary
type Stats struct {
	Ticker     string
	Last       float64
	Bid        float64
	Ask        float64
	Volume     float64
	VWAP       float64
	BuyVolume  float64
	SellVolume float64
	HOD        float64
	LOD        float64
	Recent     []Trade
	MinuteBars []AggBar
}

// Snapshot copies the current tape state out under the lock
func (s *Summary) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Ticker:     s.ticker,
		Last:       s.last,
		Bid:        s.bid,
		Ask:        s.ask,
		Volume:     s.volume,
		BuyVolume:  s.buyVolume,
		SellVolume: s.sellVolume,
		HOD:        s.hod,
		LOD:        s.lod,
		Recent:     append([]Trade(nil), s.recent...),
		MinuteBars: append([]AggBar(nil), s.minuteBars...),
	}
	if s.volume > 0 {
		st.VWAP = s.notional / s.volume
	}
	return st
}

// BuyRatio returns buyVolume / (buyVolume + sellVolume), 0.5 when no
// classified volume exists yet
func (s *Summary) BuyRatio() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	classified := s.buyVolume + s.sellVolume
	if classified == 0 {
		return 0.5
	}
	return s.buyVolume / classified
}
