package scheduler

// Endpoint names a fetch the orchestrator knows how to run. The tier tag
// decides at which cycle depth it joins the call plan.
type Endpoint struct {
	Name string
	Tier Tier
}

// Per-ticker endpoints, one call per watchlist symbol per cycle
var perTickerEndpoints = []Endpoint{
	{"quote", TierHot},
	{"flow_recent", TierHot},
	{"darkpool", TierHot},
	{"gex", TierHot},
	{"ohlc", TierHot},
	{"option_volume", TierHot},

	{"iv_rank", TierWarm},
	{"max_pain", TierWarm},
	{"oi_change", TierWarm},
	{"greeks", TierWarm},

	{"short_interest", TierCold},
	{"stock_state", TierCold},
	{"insider", TierCold},
	{"earnings", TierCold},
}

// Market-wide endpoints, one call per cycle
var marketEndpoints = []Endpoint{
	{"market_tide", TierHot},
	{"flow_alerts", TierHot},
	{"darkpool_recent", TierHot},
	{"news", TierHot},
	{"spike", TierHot},
	{"top_net_impact", TierHot},

	{"total_options_volume", TierWarm},
	{"market_oi_change", TierWarm},
	{"insider_buy_sells", TierWarm},

	{"congress_recent", TierCold},
	{"insider_transactions", TierCold},
	{"economic_calendar", TierCold},
	{"earnings_calendar", TierCold},
}

// PerTickerEndpoints returns the cumulative per-ticker call set for a tier
func PerTickerEndpoints(tier Tier) []Endpoint {
	return filterByTier(perTickerEndpoints, tier)
}

// MarketEndpoints returns the cumulative market-wide call set for a tier
func MarketEndpoints(tier Tier) []Endpoint {
	return filterByTier(marketEndpoints, tier)
}

func filterByTier(all []Endpoint, tier Tier) []Endpoint {
	out := make([]Endpoint, 0, len(all))
	for _, ep := range all {
		if tier.Includes(ep.Tier) {
			out = append(out, ep)
		}
	}
	return out
}
