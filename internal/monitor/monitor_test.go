package monitor

import (
	"context"
	"sync"
	"testing"

	"tokenwatch-telegram-bot/internal/resolver"
	"tokenwatch-telegram-bot/internal/trigger"
	"tokenwatch-telegram-bot/internal/types"
)

type fakeStore struct {
	mu    sync.Mutex
	lists map[int64][]types.WatchEntry
}

func (f *fakeStore) All() (map[int64][]types.WatchEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64][]types.WatchEntry, len(f.lists))
	for id, entries := range f.lists {
		out[id] = append([]types.WatchEntry(nil), entries...)
	}
	return out, nil
}

func (f *fakeStore) Update(userID int64, fn func([]types.WatchEntry) ([]types.WatchEntry, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next, err := fn(append([]types.WatchEntry(nil), f.lists[userID]...))
	if err != nil {
		return err
	}
	f.lists[userID] = next
	return nil
}

type fakeQuotes struct {
	quotes      map[string]resolver.Quote
	quarantined map[string]bool
	calls       int
}

func (f *fakeQuotes) Resolve(_ context.Context, chain, address string) (resolver.Quote, error) {
	f.calls++
	q, ok := f.quotes[chain+":"+address]
	if !ok {
		return resolver.Quote{}, resolver.ErrPriceUnavailable
	}
	return q, nil
}

func (f *fakeQuotes) Quarantined(chain, address string) bool {
	return f.quarantined[chain+":"+address]
}

type fakeAds struct {
	ad    *types.Ad
	views []int64
}

func (f *fakeAds) SelectActive() (*types.Ad, error) { return f.ad, nil }
func (f *fakeAds) AccountView(adID int64) error {
	f.views = append(f.views, adID)
	return nil
}

type fakeNotifier struct {
	alerts   []trigger.Alert
	alertTo  []int64
	ads      []string
	operator []string
}

func (f *fakeNotifier) SendAlert(userID int64, alert trigger.Alert) error {
	f.alertTo = append(f.alertTo, userID)
	f.alerts = append(f.alerts, alert)
	return nil
}

func (f *fakeNotifier) SendAd(_ int64, message string) error {
	f.ads = append(f.ads, message)
	return nil
}

func (f *fakeNotifier) NotifyOperator(text string) {
	f.operator = append(f.operator, text)
}

func watchPrice(address string, value, last float64) types.WatchEntry {
	return types.WatchEntry{
		Address: address, Chain: "ethereum", Kind: types.KindPrice, Value: value,
		Symbol: "TKN", InitialPrice: last, LastPrice: last,
	}
}

func newTestScheduler(store *fakeStore, quotes *fakeQuotes, ads *fakeAds, notifier *fakeNotifier) *Scheduler {
	return NewScheduler(store, quotes, ads, notifier, DefaultInterval)
}

func TestCycleFiresAndRemovesEntry(t *testing.T) {
	store := &fakeStore{lists: map[int64][]types.WatchEntry{
		7: {watchPrice("0xaaa", 1.0, 0.9)},
	}}
	quotes := &fakeQuotes{quotes: map[string]resolver.Quote{
		"ethereum:0xaaa": {Price: 1.1, Symbol: "TKN"},
	}}
	ads := &fakeAds{}
	notifier := &fakeNotifier{}
	s := newTestScheduler(store, quotes, ads, notifier)

	s.RunCycle(context.Background())

	if len(notifier.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(notifier.alerts))
	}
	if notifier.alertTo[0] != 7 || notifier.alerts[0].Reason != trigger.ReasonPrice {
		t.Fatalf("alert = %+v to %d", notifier.alerts[0], notifier.alertTo[0])
	}
	if len(store.lists[7]) != 0 {
		t.Fatalf("fired entry still present: %+v", store.lists[7])
	}

	// Replaying the same quotes must not fire again: the rule is gone.
	s.RunCycle(context.Background())
	if len(notifier.alerts) != 1 {
		t.Fatalf("alerts after replay = %d, want 1", len(notifier.alerts))
	}
}

func TestCyclePersistsLastValuesWithoutFiring(t *testing.T) {
	store := &fakeStore{lists: map[int64][]types.WatchEntry{
		7: {watchPrice("0xaaa", 2.0, 0.9)},
	}}
	quotes := &fakeQuotes{quotes: map[string]resolver.Quote{
		"ethereum:0xaaa": {Price: 1.1, MarketCap: 5000},
	}}
	notifier := &fakeNotifier{}
	s := newTestScheduler(store, quotes, &fakeAds{}, notifier)

	s.RunCycle(context.Background())

	if len(notifier.alerts) != 0 {
		t.Fatalf("unexpected alerts: %+v", notifier.alerts)
	}
	got := store.lists[7][0]
	if got.LastPrice != 1.1 || got.LastMarketCap != 5000 {
		t.Fatalf("last values not persisted: %+v", got)
	}
}

func TestCycleSkipsQuarantinedKeys(t *testing.T) {
	store := &fakeStore{lists: map[int64][]types.WatchEntry{
		7: {watchPrice("0xbad", 1.0, 0.9)},
	}}
	quotes := &fakeQuotes{
		quotes:      map[string]resolver.Quote{"ethereum:0xbad": {Price: 1.1}},
		quarantined: map[string]bool{"ethereum:0xbad": true},
	}
	s := newTestScheduler(store, quotes, &fakeAds{}, &fakeNotifier{})

	s.RunCycle(context.Background())

	if quotes.calls != 0 {
		t.Fatalf("quarantined key was resolved %d times", quotes.calls)
	}
}

func TestCycleIsolatesResolutionFailures(t *testing.T) {
	store := &fakeStore{lists: map[int64][]types.WatchEntry{
		7: {watchPrice("0xdead", 1.0, 0.9), watchPrice("0xaaa", 1.0, 0.9)},
	}}
	quotes := &fakeQuotes{quotes: map[string]resolver.Quote{
		"ethereum:0xaaa": {Price: 1.1},
	}}
	notifier := &fakeNotifier{}
	s := newTestScheduler(store, quotes, &fakeAds{}, notifier)

	s.RunCycle(context.Background())

	if len(notifier.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1 despite the failing neighbor", len(notifier.alerts))
	}
	// The unresolvable entry must survive untouched for the next cycle.
	if len(store.lists[7]) != 1 || store.lists[7][0].Address != "0xdead" {
		t.Fatalf("remaining list = %+v", store.lists[7])
	}
}

func TestDispatchAttachesAdAndAccountsView(t *testing.T) {
	store := &fakeStore{lists: map[int64][]types.WatchEntry{
		7: {watchPrice("0xaaa", 1.0, 0.9)},
	}}
	quotes := &fakeQuotes{quotes: map[string]resolver.Quote{
		"ethereum:0xaaa": {Price: 1.1},
	}}
	ads := &fakeAds{ad: &types.Ad{ID: 3, Message: "promo", Active: true}}
	notifier := &fakeNotifier{}
	s := newTestScheduler(store, quotes, ads, notifier)

	s.RunCycle(context.Background())

	if len(notifier.ads) != 1 || notifier.ads[0] != "promo" {
		t.Fatalf("ads sent = %+v, want [promo]", notifier.ads)
	}
	if len(ads.views) != 1 || ads.views[0] != 3 {
		t.Fatalf("views accounted = %+v, want [3]", ads.views)
	}
}

func TestCycleRecoversFromPanic(t *testing.T) {
	notifier := &fakeNotifier{}
	s := newTestScheduler(nil, nil, nil, notifier)

	// A nil store makes the snapshot panic; the cycle must swallow it.
	s.RunCycle(context.Background())

	if len(notifier.operator) == 0 {
		t.Fatal("operator was not told about the panic")
	}
}
