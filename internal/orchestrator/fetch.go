package orchestrator

import (
	"context"

	"market-intel-bot/internal/market"
	"market-intel-bot/internal/technicals"
)

// marketFetchers maps market-wide endpoint names to their fetch-and-store
// actions. One call per cycle each; a nil payload from upstream means "no
// data this cycle" and leaves the previous value in place.
func (o *Orchestrator) marketFetchers() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"market_tide": func(ctx context.Context) error {
			tide, err := o.uw.MarketTide(ctx)
			if err == nil && tide != nil {
				o.store.SetMarketTide(tide)
			}
			return err
		},
		"flow_alerts": func(ctx context.Context) error {
			items, err := o.uw.FlowAlerts(ctx)
			if err == nil && len(items) > 0 {
				o.store.SetOptionsFlow(items)
			}
			return err
		},
		"darkpool_recent": func(ctx context.Context) error {
			prints, err := o.uw.DarkPoolRecent(ctx)
			if err == nil && len(prints) > 0 {
				o.store.SetDarkPoolRecent(prints)
			}
			return err
		},
		"news": func(ctx context.Context) error {
			items, err := o.uw.News(ctx)
			if err == nil && len(items) > 0 {
				o.store.SetNews(items)
			}
			return err
		},
		"spike": func(ctx context.Context) error {
			v, err := o.uw.Spike(ctx)
			if err == nil && v > 0 {
				o.setVIX(v)
			}
			return err
		},
		"top_net_impact": func(ctx context.Context) error {
			rows, err := o.uw.TopNetImpact(ctx)
			if err == nil && len(rows) > 0 {
				o.store.SetTopNetImpact(rows)
			}
			return err
		},
		"total_options_volume": func(ctx context.Context) error {
			v, err := o.uw.TotalOptionsVolume(ctx)
			if err == nil && v != nil {
				o.store.SetSentiment(sentimentFromVolume(v))
			}
			return err
		},
		"insider_buy_sells": func(ctx context.Context) error {
			txs, err := o.uw.InsiderTransactions(ctx)
			if err == nil && len(txs) > 0 {
				o.storeInsiderByTicker(txs)
			}
			return err
		},
		"congress_recent": func(ctx context.Context) error {
			items, err := o.uw.CongressRecent(ctx)
			if err == nil && len(items) > 0 {
				o.store.SetCongressTrades(items)
			}
			return err
		},
		"insider_transactions": func(ctx context.Context) error {
			txs, err := o.uw.InsiderTransactions(ctx)
			if err == nil && len(txs) > 0 {
				o.storeInsiderByTicker(txs)
			}
			return err
		},
		"economic_calendar": func(ctx context.Context) error {
			items, err := o.uw.EconomicCalendar(ctx)
			if err == nil && len(items) > 0 {
				o.store.SetEconomicCalendar(items)
			}
			return err
		},
		"earnings_calendar": o.refreshEarnings,
	}
}

// tickerFetchers maps per-ticker endpoint names to their actions
func (o *Orchestrator) tickerFetchers() map[string]func(context.Context, string) error {
	return map[string]func(context.Context, string) error{
		"quote": func(ctx context.Context, t string) error {
			q, err := o.uw.Quote(ctx, t)
			if err == nil && q != nil {
				o.store.SetQuote(t, q)
			}
			return err
		},
		"flow_recent": func(ctx context.Context, t string) error {
			items, err := o.uw.FlowRecent(ctx, t)
			if err == nil && items != nil {
				o.store.SetFlow(t, items)
			}
			return err
		},
		"darkpool": func(ctx context.Context, t string) error {
			prints, err := o.uw.DarkPool(ctx, t)
			if err == nil && prints != nil {
				o.store.SetDarkPool(t, prints)
			}
			return err
		},
		"gex": func(ctx context.Context, t string) error {
			p, err := o.uw.GEXByStrike(ctx, t)
			if err == nil && p != nil {
				o.store.SetGEX(t, p)
			}
			return err
		},
		"ohlc": o.refreshTechnicals,
		"option_volume": func(ctx context.Context, t string) error {
			v, err := o.uw.OptionVolume(ctx, t)
			if err == nil && v != nil {
				o.store.SetOptionVolume(t, v)
			}
			return err
		},
		"iv_rank": func(ctx context.Context, t string) error {
			v, err := o.uw.IVRank(ctx, t)
			if err == nil && v != nil {
				o.store.SetIVRank(t, v)
			}
			return err
		},
		"max_pain": func(ctx context.Context, t string) error {
			v, err := o.uw.MaxPain(ctx, t)
			if err == nil && v != nil {
				o.store.SetMaxPain(t, v)
			}
			return err
		},
		"oi_change": func(ctx context.Context, t string) error {
			rows, err := o.uw.OIChange(ctx, t)
			if err == nil && rows != nil {
				o.store.SetOIChanges(t, rows)
			}
			return err
		},
		"greeks": func(ctx context.Context, t string) error {
			g, err := o.uw.Greeks(ctx, t)
			if err == nil && g != nil {
				o.store.SetGreeks(t, g)
			}
			return err
		},
		"short_interest": func(ctx context.Context, t string) error {
			si, err := o.uw.ShortInterest(ctx, t)
			if err == nil && si != nil {
				o.store.SetShortInterest(t, si)
			}
			if recs, ferr := o.uw.FTDs(ctx, t); ferr == nil && recs != nil {
				o.store.SetFTDs(t, recs)
			}
			return err
		},
		"stock_state": func(ctx context.Context, t string) error {
			q, err := o.uw.StockState(ctx, t)
			if err == nil && q != nil && o.store.Quote(t) == nil {
				// cold fallback only, never clobber a live quote
				o.store.SetQuote(t, q)
			}
			return err
		},
		"insider": func(ctx context.Context, t string) error {
			txs, err := o.uw.Insider(ctx, t)
			if err == nil && txs != nil {
				o.store.SetInsider(t, txs)
			}
			return err
		},
		"earnings": func(ctx context.Context, t string) error {
			e, err := o.uw.Earnings(ctx, t)
			if err == nil && e != nil {
				o.store.SetEarnings(t, e)
			}
			return err
		},
	}
}

// refreshTechnicals rebuilds the daily and 5-minute snapshots for one ticker.
// Daily candles come from the flow vendor, intraday bars from the tick vendor.
func (o *Orchestrator) refreshTechnicals(ctx context.Context, ticker string) error {
	daily, err := o.uw.OHLC(ctx, ticker, "1d")
	if err == nil && len(daily) > 0 {
		if snap, aerr := technicals.Analyze(ticker, "1d", daily); aerr == nil {
			o.store.SetTechnicals(ticker, "1d", snap)
		}
	}

	if o.tick != nil {
		now := o.now().UTC()
		bars, terr := o.tick.Aggregates(ctx, ticker, 5, "minute", now.AddDate(0, 0, -3), now)
		if terr == nil && len(bars) > 0 {
			if snap, aerr := technicals.Analyze(ticker, "5m", bars); aerr == nil {
				o.store.SetTechnicals(ticker, "5m", snap)
			}
		}
	}
	return err
}

// refreshEarnings walks the watchlist and rebuilds the earnings cache,
// honoring the persisted TTL so a restart inside the window costs nothing
func (o *Orchestrator) refreshEarnings(ctx context.Context) error {
	if cached := o.persist.LoadEarnings(); cached != nil {
		for ticker, e := range cached {
			o.store.SetEarnings(ticker, e)
		}
		return nil
	}

	entries := make(map[string]*market.EarningsInfo)
	for _, ticker := range o.cfg.Watchlist {
		e, err := o.uw.Earnings(ctx, ticker)
		if err != nil || e == nil {
			continue
		}
		o.store.SetEarnings(ticker, e)
		entries[ticker] = e
	}
	if len(entries) > 0 {
		if err := o.persist.SaveEarnings(entries); err != nil {
			o.logger.Warn("earnings cache save failed", "error", err.Error())
		}
	}
	return nil
}

// refreshMovers pulls both gainer and loser boards from the tick vendor.
// These calls ride outside the flow vendor's daily budget.
func (o *Orchestrator) refreshMovers(ctx context.Context) {
	if o.tick == nil {
		return
	}
	var all []market.Mover
	for _, dir := range []string{"gainers", "losers"} {
		movers, err := o.tick.Movers(ctx, dir)
		if err != nil {
			continue
		}
		all = append(all, movers...)
	}
	if len(all) > 0 {
		o.store.SetMovers(all)
	}
}

func (o *Orchestrator) storeInsiderByTicker(txs []market.InsiderTransaction) {
	byTicker := map[string][]market.InsiderTransaction{}
	for _, tx := range txs {
		if tx.Ticker != "" {
			byTicker[tx.Ticker] = append(byTicker[tx.Ticker], tx)
		}
	}
	for ticker, items := range byTicker {
		o.store.SetInsider(ticker, items)
	}
}

// sentimentFromVolume reads the market mood off the total options tape
func sentimentFromVolume(v *market.OptionVolume) string {
	if v.PutVolume <= 0 || v.CallVolume <= 0 {
		return "NEUTRAL"
	}
	pcr := v.PutVolume / v.CallVolume
	switch {
	case pcr > 1.1:
		return "BEARISH"
	case pcr < 0.8:
		return "BULLISH"
	}
	return "NEUTRAL"
}

func (o *Orchestrator) setVIX(v float64) {
	o.mu.Lock()
	o.vix = v
	o.mu.Unlock()
}

func (o *Orchestrator) getVIX() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.vix
}
