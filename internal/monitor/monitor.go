// Package monitor drives the periodic watch cycle: resolve every watched
// token, evaluate crossings, remove fired entries and hand alerts to the
// notification collaborator. The loop runs for the process lifetime; a bad
// token, a provider outage or a panic never stops it.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"tokenwatch-telegram-bot/internal/resolver"
	"tokenwatch-telegram-bot/internal/trigger"
	"tokenwatch-telegram-bot/internal/types"
)

const (
	// DefaultInterval is the steady-state cycle period.
	DefaultInterval = 35 * time.Second
	// initialDelay gives the bot time to come up before the first cycle.
	initialDelay = 10 * time.Second
	// resolveTimeout bounds each provider call so a stuck provider cannot
	// stall the whole cycle.
	resolveTimeout = 15 * time.Second
)

var (
	cyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tokenwatch",
		Subsystem: "monitor",
		Name:      "cycles_total",
		Help:      "The total number of completed monitor cycles",
	})
	alertsFired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tokenwatch",
		Subsystem: "monitor",
		Name:      "alerts_fired_total",
		Help:      "The total number of fired alerts",
	})
	resolveErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tokenwatch",
		Subsystem: "monitor",
		Name:      "resolve_errors_total",
		Help:      "The total number of failed resolutions during cycles",
	})
	skippedQuarantined = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tokenwatch",
		Subsystem: "monitor",
		Name:      "skipped_quarantined_total",
		Help:      "The total number of entries skipped because their key was quarantined",
	})
)

// QuoteSource resolves tokens and answers quarantine checks. Satisfied by
// *resolver.Resolver.
type QuoteSource interface {
	Resolve(ctx context.Context, chain, address string) (resolver.Quote, error)
	Quarantined(chain, address string) bool
}

// Watchlists is the mutating view of the store the scheduler needs.
type Watchlists interface {
	All() (map[int64][]types.WatchEntry, error)
	Update(userID int64, fn func([]types.WatchEntry) ([]types.WatchEntry, error)) error
}

// AdSource hands out the ad to attach to an outgoing alert.
type AdSource interface {
	SelectActive() (*types.Ad, error)
	AccountView(adID int64) error
}

// Notifier delivers alerts to users and notices to operators. Delivery is
// fire-and-forget: failures are logged by the caller and never retried.
type Notifier interface {
	SendAlert(userID int64, alert trigger.Alert) error
	SendAd(userID int64, message string) error
	NotifyOperator(text string)
}

type Scheduler struct {
	store    Watchlists
	quotes   QuoteSource
	ads      AdSource
	notifier Notifier
	interval time.Duration
}

func NewScheduler(store Watchlists, quotes QuoteSource, ads AdSource, notifier Notifier, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		store:    store,
		quotes:   quotes,
		ads:      ads,
		notifier: notifier,
		interval: interval,
	}
}

// Run drives cycles until ctx is cancelled. Cycles never overlap: each runs
// to completion before the next is scheduled.
func (s *Scheduler) Run(ctx context.Context) {
	log.Info("monitor scheduler started")
	timer := time.NewTimer(initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("monitor scheduler stopped")
			return
		case <-timer.C:
		}
		s.RunCycle(ctx)
		timer.Reset(s.interval)
	}
}

type notification struct {
	userID int64
	alert  trigger.Alert
}

// RunCycle executes one full pass over every user's watchlist. Any panic or
// snapshot failure is reported to the operator; the scheduler reschedules
// regardless.
func (s *Scheduler) RunCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic recovered in monitor cycle: %v", r)
			s.notifier.NotifyOperator(fmt.Sprintf("Monitor cycle panic: %v", r))
		}
	}()

	start := time.Now()
	lists, err := s.store.All()
	if err != nil {
		log.Errorf("failed to snapshot watchlists: %v", err)
		s.notifier.NotifyOperator(fmt.Sprintf("Monitor cycle error: %v", err))
		return
	}

	var notifications []notification
	for userID, entries := range lists {
		notifications = append(notifications, s.processUser(ctx, userID, entries)...)
	}

	s.dispatch(notifications)
	cyclesTotal.Inc()

	if elapsed := time.Since(start); elapsed > 10*time.Second {
		log.Warnf("monitor cycle took %.2fs", elapsed.Seconds())
	}
}

// processUser resolves and evaluates one user's entries and lands the
// result in a single atomic write. Per-entry faults are logged and skipped;
// they never abort the rest of the user's list.
func (s *Scheduler) processUser(ctx context.Context, userID int64, entries []types.WatchEntry) []notification {
	var notifications []notification
	var fired []types.WatchEntry
	var updated []types.WatchEntry

	for _, e := range entries {
		if s.quotes.Quarantined(e.Chain, e.Address) {
			skippedQuarantined.Inc()
			continue
		}

		cctx, cancel := context.WithTimeout(ctx, resolveTimeout)
		q, err := s.quotes.Resolve(cctx, e.Chain, e.Address)
		cancel()
		if err != nil {
			resolveErrors.Inc()
			log.Debugf("resolution failed for %s:%s (user %d): %v", e.Chain, e.Address, userID, err)
			continue
		}

		if alert, ok := trigger.Evaluate(e, q.Price, q.MarketCap); ok {
			notifications = append(notifications, notification{userID: userID, alert: alert})
			fired = append(fired, e)
			continue
		}

		e.LastPrice = q.Price
		e.LastMarketCap = q.MarketCap
		e.MarketCap = q.MarketCap
		updated = append(updated, e)
	}

	if len(fired) == 0 && len(updated) == 0 {
		return notifications
	}

	// Fired entries are matched by rule, not index: a concurrent UI edit may
	// have reordered the list since the snapshot.
	err := s.store.Update(userID, func(current []types.WatchEntry) ([]types.WatchEntry, error) {
		remaining := fired
		next := current[:0:0]
		for _, c := range current {
			if i := indexOfRule(remaining, c); i >= 0 {
				remaining = append(remaining[:i:i], remaining[i+1:]...)
				continue
			}
			if i := indexOfRule(updated, c); i >= 0 {
				c = updated[i]
			}
			next = append(next, c)
		}
		return next, nil
	})
	if err != nil {
		log.Errorf("failed to persist watchlist for user %d: %v", userID, err)
		s.notifier.NotifyOperator(fmt.Sprintf("Error for user %d: %v", userID, err))
	}

	return notifications
}

func indexOfRule(entries []types.WatchEntry, e types.WatchEntry) int {
	for i, x := range entries {
		if x.SameRule(e) {
			return i
		}
	}
	return -1
}

// dispatch sends queued notifications, attaching the active ad to each and
// accounting its view. Delivery failures are logged, never retried.
func (s *Scheduler) dispatch(notifications []notification) {
	for _, n := range notifications {
		if err := s.notifier.SendAlert(n.userID, n.alert); err != nil {
			log.Warnf("failed to send alert to user %d: %v", n.userID, err)
			continue
		}
		alertsFired.Inc()

		ad, err := s.ads.SelectActive()
		if err != nil {
			log.Errorf("ad selection failed: %v", err)
			continue
		}
		if ad == nil {
			continue
		}
		if err := s.notifier.SendAd(n.userID, ad.Message); err != nil {
			log.Warnf("failed to send ad to user %d: %v", n.userID, err)
			continue
		}
		if err := s.ads.AccountView(ad.ID); err != nil {
			log.Errorf("failed to account view for ad %d: %v", ad.ID, err)
		}
	}
}
