package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"market-intel-bot/internal/alerts"
	"market-intel-bot/internal/journal"
	"market-intel-bot/internal/logging"
	"market-intel-bot/internal/market"
	"market-intel-bot/internal/ml"
	"market-intel-bot/internal/persistence"
	"market-intel-bot/internal/scanner"
	"market-intel-bot/internal/scheduler"
	"market-intel-bot/internal/signal"
	"market-intel-bot/internal/state"
	"market-intel-bot/internal/technicals"
	"market-intel-bot/internal/tickclient"
	"market-intel-bot/internal/uwclient"
)

const (
	// defaultConcurrency bounds parallel upstream calls per cycle
	defaultConcurrency = 20

	// deadlineFraction of the cadence a cycle may spend before being cut off
	deadlineFraction = 0.8

	// minOpenConfidence gates paper-trade admissions on signal strength
	minOpenConfidence = 70.0

	// eodWindow after 16:00 ET during which the intraday sweep may run
	eodWindow = 5 * time.Minute
)

// Config tunes the orchestrator
type Config struct {
	Watchlist   []string
	Concurrency int
}

// Orchestrator drives the polling loop: one cycle per cadence tick, fetching
// the tier's endpoint set, then deriving technicals, signals, alerts, and
// paper-trade outcomes from the refreshed state.
type Orchestrator struct {
	cfg    Config
	logger *logging.Logger

	sched   *scheduler.Scheduler
	store   *state.Store
	uw      *uwclient.Client
	tick    *tickclient.Client
	tape    *tickclient.Cache
	engine  *signal.Engine
	alerts  *alerts.Engine
	scan    *scanner.Scanner
	journal *journal.Journal
	persist *persistence.Manager
	model   *ml.Model
	bus     Publisher

	notify func() // full-state broadcast hook

	mu          sync.Mutex
	vix         float64
	regime      signal.Regime
	lastSession scheduler.Session
	eodDate     string
	trainedAt   int // closed-trade count at last model fit

	now func() time.Time
	loc *time.Location
}

// Publisher is the slice of the event bus the orchestrator needs
type Publisher interface {
	PublishAlert(ticker, alertType, direction, severity, message string)
	PublishTradeOpened(ticker, direction, version string, entry, shares float64)
	PublishTradeClosed(ticker, status string, exitPrice, pnl, pnlPercent float64)
	PublishSignal(ticker, direction string, confidence float64)
	PublishDiscovery(ticker, direction string, confidence, weight float64)
	PublishSessionChange(from, to string)
	PublishCycleComplete(cycle int, tier string, calls int, elapsed time.Duration)
}

// Deps collects the orchestrator's collaborators
type Deps struct {
	Scheduler *scheduler.Scheduler
	Store     *state.Store
	UW        *uwclient.Client
	Tick      *tickclient.Client
	Tape      *tickclient.Cache
	Engine    *signal.Engine
	Alerts    *alerts.Engine
	Scanner   *scanner.Scanner
	Journal   *journal.Journal
	Persist   *persistence.Manager
	Model     *ml.Model
	Bus       Publisher
}

// New creates the orchestrator
func New(cfg Config, deps Deps, logger *logging.Logger) (*Orchestrator, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, fmt.Errorf("load market timezone: %w", err)
	}
	return &Orchestrator{
		cfg:     cfg,
		logger:  logger.WithComponent("orchestrator"),
		sched:   deps.Scheduler,
		store:   deps.Store,
		uw:      deps.UW,
		tick:    deps.Tick,
		tape:    deps.Tape,
		engine:  deps.Engine,
		alerts:  deps.Alerts,
		scan:    deps.Scanner,
		journal: deps.Journal,
		persist: deps.Persist,
		model:   deps.Model,
		bus:     deps.Bus,
		regime:  signal.RegimeUnknown,
		now:     time.Now,
		loc:     loc,
	}, nil
}

// SetNotify registers the per-cycle full-state broadcast hook
func (o *Orchestrator) SetNotify(fn func()) { o.notify = fn }

// Run executes cycles until the context is cancelled. Cadence follows the
// current session, re-read after every cycle so a session change takes
// effect immediately.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		o.RunCycle(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.sched.CycleCadence()):
		}
	}
}

// RunCycle executes one full polling cycle
func (o *Orchestrator) RunCycle(ctx context.Context) {
	started := o.now()
	tier := o.sched.NextTier()
	session := o.sched.CurrentSession()
	o.noteSession(session)

	cadence := o.sched.CycleCadence()
	cycleCtx, cancel := context.WithTimeout(ctx, time.Duration(float64(cadence)*deadlineFraction))
	defer cancel()

	_, callsBefore, _ := o.sched.Counters()

	// market-wide feeds land first so per-ticker scoring sees fresh context
	o.fetchMarket(cycleCtx, tier)
	o.refreshMovers(cycleCtx)
	o.fetchTickers(cycleCtx, tier)

	o.updateRegime()
	o.evaluateSignals(session)
	o.emitAlerts(session)
	o.settleJournal()
	o.maybeTrainModel()

	if o.scan != nil && o.sched.IsTradingSession() && tier.Includes(scheduler.TierWarm) {
		o.runScanner(cycleCtx)
	}

	o.store.Touch(o.now().UTC())
	o.snapshotToDisk()

	if o.notify != nil {
		o.notify()
	}

	cycles, callsAfter, _ := o.sched.Counters()
	o.bus.PublishCycleComplete(cycles, string(tier), callsAfter-callsBefore, o.now().Sub(started))
	o.logger.Info("cycle complete", "tier", string(tier), "session", string(session),
		"calls", callsAfter-callsBefore, "elapsed", o.now().Sub(started).String())
}

func (o *Orchestrator) fetchMarket(ctx context.Context, tier scheduler.Tier) {
	fetchers := o.marketFetchers()
	g := new(errgroup.Group)
	g.SetLimit(o.cfg.Concurrency)

	for _, ep := range scheduler.MarketEndpoints(tier) {
		fetch, ok := fetchers[ep.Name]
		if !ok {
			continue
		}
		name := ep.Name
		g.Go(func() error {
			if err := fetch(ctx); err != nil {
				o.logger.Warn("market fetch failed", "endpoint", name, "error", err.Error())
			}
			return nil
		})
	}
	g.Wait()
}

func (o *Orchestrator) fetchTickers(ctx context.Context, tier scheduler.Tier) {
	fetchers := o.tickerFetchers()
	g := new(errgroup.Group)
	g.SetLimit(o.cfg.Concurrency)

	for _, ticker := range o.cfg.Watchlist {
		for _, ep := range scheduler.PerTickerEndpoints(tier) {
			fetch, ok := fetchers[ep.Name]
			if !ok {
				continue
			}
			name, t := ep.Name, ticker
			g.Go(func() error {
				if err := fetch(ctx, t); err != nil {
					o.logger.Warn("ticker fetch failed", "endpoint", name, "ticker", t, "error", err.Error())
				}
				return nil
			})
		}
	}
	g.Wait()
}

// updateRegime reclassifies the market off the index technicals, the
// volatility spike reading, and mover breadth
func (o *Orchestrator) updateRegime() {
	snap := o.store.Snapshot()

	in := signal.RegimeInputs{VIX: o.getVIX()}
	if spy := snap.Technicals["SPY"]; spy != nil {
		if d := spy["1d"]; d != nil {
			in.SPYTrend = d.Bias
			in.SPYADX = d.ADX.ADX
		}
	}
	if len(snap.Movers) > 0 {
		up := 0
		for _, m := range snap.Movers {
			if m.ChangePercent > 0 {
				up++
			}
		}
		in.Breadth = float64(up) / float64(len(snap.Movers))
	}

	regime := signal.ClassifyRegime(in)
	o.mu.Lock()
	o.regime = regime
	o.mu.Unlock()
	o.store.SetMarketRegime(string(regime))
}

func (o *Orchestrator) currentRegime() signal.Regime {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.regime
}

// evaluateSignals fuses each watchlist ticker and admits paper trades for
// strong setups
func (o *Orchestrator) evaluateSignals(session scheduler.Session) {
	snap := o.store.Snapshot()
	regime := o.currentRegime()

	for _, ticker := range o.cfg.Watchlist {
		in := signal.Inputs{
			Ticker:        ticker,
			Quote:         snap.Quotes[ticker],
			Flow:          snap.Flow[ticker],
			DarkPool:      snap.DarkPool[ticker],
			GEX:           snap.GEX[ticker],
			OptionVolume:  snap.OptionVolume[ticker],
			IVRank:        snap.IVRank[ticker],
			ShortInterest: snap.ShortData[ticker],
			FTDs:          snap.FTDs[ticker],
			Congress:      snap.CongressTrades,
			Insider:       snap.Insider[ticker],
			News:          snap.News,
			Tide:          snap.MarketTide,
			Regime:        regime,
			Session:       string(session),
		}
		if byTF := snap.Technicals[ticker]; byTF != nil {
			in.Technicals = byTF["1d"]
		}
		if o.tape != nil {
			if stats, ok := o.tape.Stats(ticker); ok {
				in.Tape = &stats
			}
		}

		res := o.engine.Evaluate(in)
		if res == nil {
			continue
		}
		o.store.SetSignal(ticker, res)
		o.store.SetSetup(ticker, res.Setup)
		o.bus.PublishSignal(ticker, string(res.Direction), res.Confidence)

		if res.Setup != nil && res.Confidence >= minOpenConfidence {
			o.admitTrade(res, in.Quote, in.Tape)
		}
	}
}

// admitTrade tries to open a paper position at the freshest price available:
// live tape first, then the polled quote, then the setup's own entry
func (o *Orchestrator) admitTrade(res *market.SignalResult, quote *market.Quote, tape *tickclient.Stats) {
	fill := res.Setup.Entry
	if quote != nil && quote.Last > 0 {
		fill = quote.Last
	}
	if tape != nil && tape.Last > 0 {
		fill = tape.Last
	}

	adm := o.journal.Open(res.Setup, fill, res.Features)
	if !adm.Admitted {
		return
	}
	o.bus.PublishTradeOpened(adm.Trade.Ticker, string(adm.Trade.Direction),
		adm.Trade.SignalVersion, adm.Trade.Entry, adm.Trade.Shares)
}

func (o *Orchestrator) emitAlerts(session scheduler.Session) {
	snap := o.store.Snapshot()
	for _, a := range o.alerts.Evaluate(snap, string(session)) {
		o.store.PushAlert(a)
		o.bus.PublishAlert(a.Ticker, a.Type, string(a.Direction), string(a.Severity), a.Message)
	}
}

// settleJournal marks positions to market, resolves outcomes, and runs the
// once-per-day end-of-day sweep inside its window
func (o *Orchestrator) settleJournal() {
	prices := o.latestPrices()
	o.journal.UpdateUnrealized(prices)

	for _, t := range o.journal.CheckOutcomes(prices) {
		o.bus.PublishTradeClosed(t.Ticker, string(t.Status), t.ExitPrice, t.PnLTotal, t.PnLPct)
	}

	if o.inEODWindow() {
		for _, t := range o.journal.CloseIntraday(prices) {
			o.bus.PublishTradeClosed(t.Ticker, string(t.Status), t.ExitPrice, t.PnLTotal, t.PnLPct)
		}
	}
}

// latestPrices merges the polled quotes with the live tape, tape winning
func (o *Orchestrator) latestPrices() map[string]float64 {
	snap := o.store.Snapshot()
	prices := make(map[string]float64, len(snap.Quotes))
	for ticker, q := range snap.Quotes {
		if q != nil && q.Last > 0 {
			prices[ticker] = q.Last
		}
	}
	if o.tape != nil {
		for ticker := range prices {
			if stats, ok := o.tape.Stats(ticker); ok && stats.Last > 0 {
				prices[ticker] = stats.Last
			}
		}
	}
	return prices
}

// inEODWindow reports whether the ET clock is inside the post-close sweep
// window, at most once per day
func (o *Orchestrator) inEODWindow() bool {
	et := o.now().In(o.loc)
	if et.Hour() != 16 || et.Minute() >= int(eodWindow.Minutes()) {
		return false
	}

	date := et.Format("2006-01-02")
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.eodDate == date {
		return false
	}
	o.eodDate = date
	return true
}

// maybeTrainModel refits the calibrator when enough new decided trades have
// accumulated since the last fit
func (o *Orchestrator) maybeTrainModel() {
	if o.model == nil {
		return
	}
	samples := o.journal.TrainingData()

	o.mu.Lock()
	stale := len(samples) >= ml.MinSamples && len(samples) > o.trainedAt
	if stale {
		o.trainedAt = len(samples)
	}
	o.mu.Unlock()
	if !stale {
		return
	}

	if err := o.model.Fit(samples); err != nil {
		o.logger.Warn("calibrator fit failed", "error", err.Error())
		return
	}
	if err := o.model.Save(o.persist.Dir() + "/calibrator.json"); err != nil {
		o.logger.Warn("calibrator save failed", "error", err.Error())
	}
	o.logger.Info("calibrator retrained", "samples", len(samples))
}

func (o *Orchestrator) runScanner(ctx context.Context) {
	snap := o.store.Snapshot()
	fresh := o.scan.Scan(ctx, snap, o.cfg.Watchlist)
	if len(fresh) == 0 {
		return
	}
	merged := scanner.Merge(snap.Discoveries, fresh)
	o.store.SetDiscoveries(merged)
	for _, d := range fresh {
		o.bus.PublishDiscovery(d.Ticker, string(d.Direction), d.Confidence, d.Weight)
	}
}

// QuickScore is the reduced pipeline the scanner uses for off-watchlist
// tickers: quote, daily bars, and recent flow only
func (o *Orchestrator) QuickScore(ctx context.Context, ticker string) (*market.SignalResult, error) {
	quote, err := o.uw.Quote(ctx, ticker)
	if err != nil || quote == nil {
		return nil, err
	}

	in := signal.Inputs{
		Ticker:  ticker,
		Quote:   quote,
		Regime:  o.currentRegime(),
		Session: string(o.sched.CurrentSession()),
	}
	if candles, err := o.uw.OHLC(ctx, ticker, "1d"); err == nil && len(candles) > 0 {
		if snap, aerr := technicals.Analyze(ticker, "1d", candles); aerr == nil {
			in.Technicals = snap
		}
	}
	if items, err := o.uw.FlowRecent(ctx, ticker); err == nil {
		in.Flow = items
	}

	return o.engine.Evaluate(in), nil
}

func (o *Orchestrator) noteSession(session scheduler.Session) {
	o.mu.Lock()
	prev := o.lastSession
	o.lastSession = session
	o.mu.Unlock()

	o.store.SetSession(string(session))
	if prev != "" && prev != session {
		o.bus.PublishSessionChange(string(prev), string(session))
	}
}

func (o *Orchestrator) snapshotToDisk() {
	cycles, calls, date := o.sched.Counters()
	if err := o.persist.SaveState(o.store, cycles, calls, date); err != nil {
		o.logger.Warn("state snapshot failed", "error", err.Error())
	}
}

// RestoreFromDisk warm-starts the state and counters from the last snapshot
func (o *Orchestrator) RestoreFromDisk() {
	doc, err := o.persist.LoadState()
	if err != nil || doc == nil {
		return
	}
	o.store.Restore(doc.State)
	o.sched.RestoreCounters(doc.CycleCount, doc.DailyCallCount, doc.SavedDate)
	o.logger.Info("state restored", "savedAt", doc.SavedAt.String(), "cycles", doc.CycleCount)
}
