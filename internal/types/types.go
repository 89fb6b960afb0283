package types

import (
	"time"

	"github.com/pkg/errors"
)

// ConditionKind selects which crossing a watch entry fires on. The wire
// values match the watchlist blobs the bot has always stored.
type ConditionKind string

const (
	KindPrice       ConditionKind = "price"
	KindPctIncrease ConditionKind = "increase"
	KindPctDecrease ConditionKind = "decrease"
	KindMarketCap   ConditionKind = "market_cap"
)

// Valid reports whether k is one of the supported condition kinds.
func (k ConditionKind) Valid() bool {
	switch k {
	case KindPrice, KindPctIncrease, KindPctDecrease, KindMarketCap:
		return true
	}
	return false
}

// WatchEntry is one user's monitoring rule for one token. InitialPrice is
// fixed at creation; LastPrice and LastMarketCap are overwritten on every
// successful resolution.
type WatchEntry struct {
	Address       string        `json:"full_address"`
	Chain         string        `json:"chain"`
	Kind          ConditionKind `json:"type"`
	Value         float64       `json:"value"`
	Symbol        string        `json:"symbol"`
	InitialPrice  float64       `json:"initial_price"`
	MarketCap     float64       `json:"market_cap"`
	LastPrice     float64       `json:"last_price"`
	LastMarketCap float64       `json:"last_market_cap"`
}

// SameRule reports whether two entries describe the same monitoring rule.
// The scheduler uses this to drop fired entries without relying on indexes
// that may have shifted under a concurrent UI edit.
func (e WatchEntry) SameRule(o WatchEntry) bool {
	return e.Address == o.Address && e.Chain == o.Chain && e.Kind == o.Kind && e.Value == o.Value
}

// NewWatchEntry builds a fully populated entry. It is the only constructor
// the UI collaborator may use, so partially filled entries never reach the
// store.
func NewWatchEntry(address, chain string, kind ConditionKind, value float64, symbol string, price, marketCap float64) (WatchEntry, error) {
	if address == "" {
		return WatchEntry{}, errors.New("watch entry: empty address")
	}
	if chain == "" {
		return WatchEntry{}, errors.New("watch entry: empty chain")
	}
	if !kind.Valid() {
		return WatchEntry{}, errors.Errorf("watch entry: unknown condition kind %q", kind)
	}
	if value <= 0 {
		return WatchEntry{}, errors.Errorf("watch entry: condition value must be positive, got %v", value)
	}
	if symbol == "" {
		return WatchEntry{}, errors.New("watch entry: empty symbol")
	}
	return WatchEntry{
		Address:       address,
		Chain:         chain,
		Kind:          kind,
		Value:         value,
		Symbol:        symbol,
		InitialPrice:  price,
		MarketCap:     marketCap,
		LastPrice:     price,
		LastMarketCap: marketCap,
	}, nil
}

// Ad is an operator-posted promo message rotated into outgoing reports and
// alerts until it expires or runs out of views.
type Ad struct {
	ID           int64     `json:"id"`
	Message      string    `json:"message"`
	DurationDays int       `json:"duration_days"`
	MaxViews     int       `json:"max_views"`
	CurrentViews int       `json:"current_views"`
	CreatedAt    time.Time `json:"created_at"`
	Active       bool      `json:"active"`
}

// ExpiresAt is the moment the ad stops being served regardless of views.
func (a Ad) ExpiresAt() time.Time {
	return a.CreatedAt.Add(time.Duration(a.DurationDays) * 24 * time.Hour)
}

// Exhausted reports whether the ad may no longer be served at the given time.
func (a Ad) Exhausted(now time.Time) bool {
	return now.After(a.ExpiresAt()) || a.CurrentViews >= a.MaxViews
}
