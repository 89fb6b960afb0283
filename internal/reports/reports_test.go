package reports

import (
	"context"
	"testing"
	"time"

	"tokenwatch-telegram-bot/internal/resolver"
	"tokenwatch-telegram-bot/internal/types"
)

type fakeLists map[int64][]types.WatchEntry

func (f fakeLists) All() (map[int64][]types.WatchEntry, error) { return f, nil }

type fakeQuotes struct {
	quotes map[string]resolver.Quote
	calls  int
}

func (f *fakeQuotes) Resolve(_ context.Context, chain, address string) (resolver.Quote, error) {
	f.calls++
	q, ok := f.quotes[chain+":"+address]
	if !ok {
		return resolver.Quote{}, resolver.ErrPriceUnavailable
	}
	return q, nil
}

func entry(chain, address, symbol string) types.WatchEntry {
	return types.WatchEntry{
		Address: address, Chain: chain, Kind: types.KindPrice, Value: 1,
		Symbol: symbol, InitialPrice: 1, LastPrice: 1,
	}
}

func fixture() (fakeLists, *fakeQuotes) {
	lists := fakeLists{
		1: {entry("ethereum", "0xaaa", "AAA"), entry("solana", "soladdr", "SOL1")},
		2: {entry("ethereum", "0xaaa", "AAA")},
		3: {entry("ethereum", "0xaaa", "AAA"), entry("ethereum", "0xbbb", "BBB")},
	}
	quotes := &fakeQuotes{quotes: map[string]resolver.Quote{
		"ethereum:0xaaa": {Price: 2, Symbol: "AAA", MarketCap: 1000, Change24h: 12.5},
		"ethereum:0xbbb": {Price: 3, Symbol: "BBB", MarketCap: 2000, Change24h: -8.0},
		"solana:soladdr": {Price: 4, Symbol: "SOL1", MarketCap: 3000, Change24h: 1.0},
	}}
	return lists, quotes
}

func TestTopMonitoredCountsAndSorts(t *testing.T) {
	lists, quotes := fixture()
	r := New(quotes, lists)

	rows, err := r.TopMonitored(context.Background(), 2)
	if err != nil {
		t.Fatalf("TopMonitored: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Symbol != "AAA" || rows[0].Watchers != 3 {
		t.Fatalf("top row = %+v, want AAA with 3 watchers", rows[0])
	}
	if rows[0].MarketCap != 1000 {
		t.Fatalf("market cap not refreshed: %+v", rows[0])
	}
}

func TestTopMonitoredServedFromCache(t *testing.T) {
	lists, quotes := fixture()
	r := New(quotes, lists)

	if _, err := r.TopMonitored(context.Background(), 5); err != nil {
		t.Fatalf("TopMonitored: %v", err)
	}
	before := quotes.calls
	if _, err := r.TopMonitored(context.Background(), 5); err != nil {
		t.Fatalf("TopMonitored: %v", err)
	}
	if quotes.calls != before {
		t.Fatalf("second call hit the quote source (%d -> %d calls)", before, quotes.calls)
	}
}

func TestInvalidateDropsCache(t *testing.T) {
	lists, quotes := fixture()
	r := New(quotes, lists)

	if _, err := r.TopMonitored(context.Background(), 5); err != nil {
		t.Fatalf("TopMonitored: %v", err)
	}
	r.Invalidate()
	before := quotes.calls
	if _, err := r.TopMonitored(context.Background(), 5); err != nil {
		t.Fatalf("TopMonitored: %v", err)
	}
	if quotes.calls == before {
		t.Fatal("invalidated cache still served the stale report")
	}
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	lists, quotes := fixture()
	r := New(quotes, lists)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	if _, err := r.TopMonitored(context.Background(), 5); err != nil {
		t.Fatalf("TopMonitored: %v", err)
	}
	now = now.Add(CacheTTL + time.Second)
	before := quotes.calls
	if _, err := r.TopMonitored(context.Background(), 5); err != nil {
		t.Fatalf("TopMonitored: %v", err)
	}
	if quotes.calls == before {
		t.Fatal("expired cache still served the stale report")
	}
}

func TestTopLeaderboard(t *testing.T) {
	lists, quotes := fixture()
	r := New(quotes, lists)

	board, err := r.TopLeaderboard(context.Background(), 2)
	if err != nil {
		t.Fatalf("TopLeaderboard: %v", err)
	}
	if len(board.Gainers) != 2 || board.Gainers[0].Symbol != "AAA" {
		t.Fatalf("gainers = %+v, want AAA first", board.Gainers)
	}
	if len(board.Losers) != 2 || board.Losers[0].Symbol != "BBB" {
		t.Fatalf("losers = %+v, want BBB first", board.Losers)
	}
}

func TestLeaderboardSkipsUnresolvable(t *testing.T) {
	lists, quotes := fixture()
	delete(quotes.quotes, "solana:soladdr")
	r := New(quotes, lists)

	board, err := r.TopLeaderboard(context.Background(), 10)
	if err != nil {
		t.Fatalf("TopLeaderboard: %v", err)
	}
	for _, m := range append(board.Gainers, board.Losers...) {
		if m.Chain == "solana" {
			t.Fatalf("unresolvable token included: %+v", m)
		}
	}
}
