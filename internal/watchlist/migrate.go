package watchlist

import (
	"encoding/json"

	"github.com/pkg/errors"

	"tokenwatch-telegram-bot/internal/types"
)

// storedEntry is the superset of every watchlist blob shape the bot has
// ever written, including the pre-rename "address" field and blobs missing
// the newer fields.
type storedEntry struct {
	Address       string   `json:"address,omitempty"`
	FullAddress   string   `json:"full_address,omitempty"`
	Chain         string   `json:"chain,omitempty"`
	Kind          string   `json:"type,omitempty"`
	Value         *float64 `json:"value,omitempty"`
	Symbol        string   `json:"symbol,omitempty"`
	InitialPrice  float64  `json:"initial_price,omitempty"`
	MarketCap     *float64 `json:"market_cap,omitempty"`
	LastPrice     *float64 `json:"last_price,omitempty"`
	LastMarketCap *float64 `json:"last_market_cap,omitempty"`
}

// upgradeEntry normalizes a stored entry to the current schema, filling
// documented defaults for missing fields. changed reports whether the
// stored form differed from the normalized one, so callers know to persist.
func upgradeEntry(raw storedEntry) (e types.WatchEntry, changed bool) {
	e.Address = raw.FullAddress
	if e.Address == "" && raw.Address != "" {
		e.Address = raw.Address
		changed = true
	}

	e.Chain = raw.Chain
	if e.Chain == "" {
		e.Chain = "unknown"
		changed = true
	}

	e.Kind = types.ConditionKind(raw.Kind)
	if !e.Kind.Valid() {
		e.Kind = types.KindPrice
		changed = true
	}

	if raw.Value != nil {
		e.Value = *raw.Value
	} else {
		changed = true
	}

	e.Symbol = raw.Symbol
	if e.Symbol == "" {
		suffix := e.Address
		if len(suffix) > 6 {
			suffix = suffix[len(suffix)-6:]
		}
		e.Symbol = "Unknown_" + suffix
		changed = true
	}

	e.InitialPrice = raw.InitialPrice

	if raw.MarketCap != nil {
		e.MarketCap = *raw.MarketCap
	} else {
		changed = true
	}
	if raw.LastPrice != nil {
		e.LastPrice = *raw.LastPrice
	} else {
		e.LastPrice = e.InitialPrice
		changed = true
	}
	if raw.LastMarketCap != nil {
		e.LastMarketCap = *raw.LastMarketCap
	} else {
		e.LastMarketCap = e.MarketCap
		changed = true
	}

	return e, changed
}

// decodeWatchlist parses a raw watchlist blob and upgrades every entry.
func decodeWatchlist(raw string) (entries []types.WatchEntry, changed bool, err error) {
	var stored []storedEntry
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, false, errors.Wrap(err, "decode watchlist")
	}

	entries = make([]types.WatchEntry, 0, len(stored))
	for _, s := range stored {
		e, c := upgradeEntry(s)
		entries = append(entries, e)
		changed = changed || c
	}
	return entries, changed, nil
}

func encodeWatchlist(entries []types.WatchEntry) (string, error) {
	if entries == nil {
		entries = []types.WatchEntry{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return "", errors.Wrap(err, "encode watchlist")
	}
	return string(b), nil
}
