// Package trigger decides whether a watch entry's condition has just been
// crossed. Evaluation is pure: no side effects, no mutation of the entry.
package trigger

import (
	"tokenwatch-telegram-bot/internal/types"
)

// Reason tells the notifier which condition fired.
type Reason string

const (
	ReasonPrice       Reason = "price"
	ReasonPctIncrease Reason = "pct_increase"
	ReasonPctDecrease Reason = "pct_decrease"
	ReasonMarketCap   Reason = "market_cap"
)

// Alert describes a single fired crossing.
type Alert struct {
	Reason    Reason
	Entry     types.WatchEntry
	Price     float64
	MarketCap float64
	// Pct is the percentage move from the initial price, set for the
	// percentage reasons only.
	Pct float64
}

// Evaluate compares the entry's previous observation with the current one
// and reports whether the configured threshold has just been crossed.
// Fires are edge-triggered: an entry already past its threshold does not
// fire again.
func Evaluate(e types.WatchEntry, price, marketCap float64) (Alert, bool) {
	switch e.Kind {
	case types.KindPrice:
		v := e.Value
		if (e.LastPrice < v && price >= v) || (e.LastPrice > v && price <= v) {
			return Alert{Reason: ReasonPrice, Entry: e, Price: price, MarketCap: marketCap}, true
		}

	case types.KindPctIncrease:
		if e.InitialPrice <= 0 {
			break
		}
		pct := (price - e.InitialPrice) / e.InitialPrice * 100
		lastPct := (e.LastPrice - e.InitialPrice) / e.InitialPrice * 100
		if lastPct < e.Value && pct >= e.Value {
			return Alert{Reason: ReasonPctIncrease, Entry: e, Price: price, MarketCap: marketCap, Pct: pct}, true
		}

	case types.KindPctDecrease:
		if e.InitialPrice <= 0 {
			break
		}
		pct := (price - e.InitialPrice) / e.InitialPrice * 100
		lastPct := (e.LastPrice - e.InitialPrice) / e.InitialPrice * 100
		if lastPct > -e.Value && pct <= -e.Value {
			return Alert{Reason: ReasonPctDecrease, Entry: e, Price: price, MarketCap: marketCap, Pct: pct}, true
		}

	case types.KindMarketCap:
		// Upward crossings only. The missing downward case mirrors the
		// price-alert behavior users already rely on.
		if e.LastMarketCap < e.Value && marketCap >= e.Value {
			return Alert{Reason: ReasonMarketCap, Entry: e, Price: price, MarketCap: marketCap}, true
		}
	}

	return Alert{}, false
}
