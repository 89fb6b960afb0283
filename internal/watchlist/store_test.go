package watchlist

import (
	"path/filepath"
	"sync"
	"testing"

	"tokenwatch-telegram-bot/internal/database"
	"tokenwatch-telegram-bot/internal/types"
)

func initTestDB(t *testing.T) {
	t.Helper()
	if err := database.InitDB(filepath.Join(t.TempDir(), "test.db")); err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { database.CloseDB() })
}

func testEntry(symbol string, value float64) types.WatchEntry {
	e, err := types.NewWatchEntry(
		"0x1111111111111111111111111111111111111111",
		"ethereum", types.KindPrice, value, symbol, 1.0, 100000,
	)
	if err != nil {
		panic(err)
	}
	return e
}

func TestGetCreatesEmptyWatchlist(t *testing.T) {
	initTestDB(t)
	s := NewStore()

	entries, err := s.Get(42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("new user watchlist = %v, want empty", entries)
	}

	exists, err := database.UserExists(42)
	if err != nil || !exists {
		t.Fatalf("user row not persisted on first access (exists=%v, err=%v)", exists, err)
	}
}

func TestAddRemovePreservesOrder(t *testing.T) {
	initTestDB(t)
	s := NewStore()

	for _, sym := range []string{"AAA", "BBB", "CCC"} {
		if err := s.Add(7, testEntry(sym, 2)); err != nil {
			t.Fatalf("Add %s: %v", sym, err)
		}
	}

	removed, err := s.RemoveAt(7, 1)
	if err != nil {
		t.Fatalf("RemoveAt: %v", err)
	}
	if removed.Symbol != "BBB" {
		t.Fatalf("removed %s, want BBB", removed.Symbol)
	}

	entries, err := s.Get(7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(entries) != 2 || entries[0].Symbol != "AAA" || entries[1].Symbol != "CCC" {
		t.Fatalf("remaining order wrong: %+v", entries)
	}

	if _, err := s.RemoveAt(7, 5); err == nil {
		t.Fatal("RemoveAt with stale index must fail")
	}
}

func TestReplaceRejectsStaleVersion(t *testing.T) {
	initTestDB(t)
	s := NewStore()

	if err := s.Add(9, testEntry("AAA", 2)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	_, version, err := database.GetWatchlist(9)
	if err != nil {
		t.Fatalf("GetWatchlist: %v", err)
	}

	// A write lands in between.
	if err := s.Add(9, testEntry("BBB", 3)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	err = database.ReplaceWatchlist(9, "[]", version)
	if err != database.ErrVersionConflict {
		t.Fatalf("ReplaceWatchlist with stale version = %v, want ErrVersionConflict", err)
	}
}

func TestConcurrentUpdatesLoseNothing(t *testing.T) {
	initTestDB(t)
	s := NewStore()

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			e := testEntry("TKN", float64(n+1))
			errs <- s.Add(11, e)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Add: %v", err)
		}
	}

	entries, err := s.Get(11)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(entries) != writers {
		t.Fatalf("got %d entries, want %d (lost update)", len(entries), writers)
	}
}

func TestLegacyEntriesUpgradedOnRead(t *testing.T) {
	initTestDB(t)
	s := NewStore()

	// Seed a pre-rename blob missing the newer fields.
	legacy := `[{"address":"0x2222222222222222222222222222222222222222","initial_price":0.5}]`
	_, version, err := database.GetWatchlist(13)
	if err != nil {
		t.Fatalf("GetWatchlist: %v", err)
	}
	if err := database.ReplaceWatchlist(13, legacy, version); err != nil {
		t.Fatalf("seed legacy blob: %v", err)
	}

	entries, err := s.Get(13)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %+v, want 1", entries)
	}
	e := entries[0]
	if e.Address != "0x2222222222222222222222222222222222222222" {
		t.Fatalf("address not migrated: %q", e.Address)
	}
	if e.Chain != "unknown" || e.Kind != types.KindPrice || e.Symbol != "Unknown_222222" {
		t.Fatalf("defaults not applied: %+v", e)
	}
	if e.LastPrice != 0.5 {
		t.Fatalf("last price should default to initial: %v", e.LastPrice)
	}

	// The normalized form must have been persisted: a raw read now contains
	// the new field names.
	raw, _, err := database.GetWatchlist(13)
	if err != nil {
		t.Fatalf("GetWatchlist: %v", err)
	}
	if raw == legacy {
		t.Fatal("normalized watchlist was not written back")
	}

	// Idempotent: a second read changes nothing.
	again, err := s.Get(13)
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if len(again) != 1 || again[0] != e {
		t.Fatalf("upgrade not idempotent: %+v vs %+v", again[0], e)
	}
}

func TestWatchlistRoundTrip(t *testing.T) {
	initTestDB(t)
	s := NewStore()

	want := types.WatchEntry{
		Address:       "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R",
		Chain:         "solana",
		Kind:          types.KindPctDecrease,
		Value:         7.5,
		Symbol:        "SOLTKN",
		InitialPrice:  0.000123,
		MarketCap:     456789.12,
		LastPrice:     0.000119,
		LastMarketCap: 450000,
	}
	if err := s.Add(21, want); err != nil {
		t.Fatalf("Add: %v", err)
	}

	entries, err := s.Get(21)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(entries) != 1 || entries[0] != want {
		t.Fatalf("round trip lost data: %+v", entries)
	}
}

func TestOnWriteHookFires(t *testing.T) {
	initTestDB(t)
	s := NewStore()

	var fired int
	s.OnWrite(func() { fired++ })

	if err := s.Add(30, testEntry("AAA", 2)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Clear(30); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if fired != 2 {
		t.Fatalf("write hook fired %d times, want 2", fired)
	}
}
