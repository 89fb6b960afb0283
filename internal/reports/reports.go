// Package reports builds read-only aggregates over all users' watchlists:
// the most-watched tokens and a 24h gainers/losers leaderboard. Both are
// cached briefly and invalidated whenever any watchlist is written.
package reports

import (
	"context"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"tokenwatch-telegram-bot/internal/resolver"
	"tokenwatch-telegram-bot/internal/types"
)

// CacheTTL bounds how stale a served report may be.
const CacheTTL = 300 * time.Second

// QuoteSource is the on-demand lookup the reports share with the scheduler,
// including its cache and quarantine.
type QuoteSource interface {
	Resolve(ctx context.Context, chain, address string) (resolver.Quote, error)
}

// Watchlists is the snapshot view of the store.
type Watchlists interface {
	All() (map[int64][]types.WatchEntry, error)
}

// MonitoredToken is one row of the top-monitored report.
type MonitoredToken struct {
	Chain     string
	Address   string
	Symbol    string
	Watchers  int
	MarketCap float64
}

// Mover is one row of the leaderboard.
type Mover struct {
	Chain     string
	Address   string
	Symbol    string
	Change24h float64
}

// Leaderboard pairs the top gainers and losers over 24 hours.
type Leaderboard struct {
	Gainers []Mover
	Losers  []Mover
}

type cached[T any] struct {
	value T
	at    time.Time
	set   bool
}

type Reports struct {
	quotes QuoteSource
	lists  Watchlists
	now    func() time.Time

	mu    sync.Mutex
	top   cached[[]MonitoredToken]
	board cached[Leaderboard]
}

func New(quotes QuoteSource, lists Watchlists) *Reports {
	return &Reports{quotes: quotes, lists: lists, now: time.Now}
}

// Invalidate drops both report caches. Wired as a watchlist write hook.
func (r *Reports) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.top = cached[[]MonitoredToken]{}
	r.board = cached[Leaderboard]{}
}

type tokenKey struct {
	chain   string
	address string
}

// collect walks every watchlist once, counting watchers and remembering a
// display symbol per distinct token.
func (r *Reports) collect() (map[tokenKey]*MonitoredToken, error) {
	lists, err := r.lists.All()
	if err != nil {
		return nil, err
	}

	tokens := make(map[tokenKey]*MonitoredToken)
	for _, entries := range lists {
		for _, e := range entries {
			k := tokenKey{chain: e.Chain, address: e.Address}
			t, ok := tokens[k]
			if !ok {
				t = &MonitoredToken{Chain: e.Chain, Address: e.Address, Symbol: e.Symbol, MarketCap: e.MarketCap}
				tokens[k] = t
			}
			t.Watchers++
		}
	}
	return tokens, nil
}

// TopMonitored returns the n tokens watched by the most users. Market caps
// are refreshed through the shared quote source; a failed refresh falls
// back to the stored values.
func (r *Reports) TopMonitored(ctx context.Context, n int) ([]MonitoredToken, error) {
	r.mu.Lock()
	if r.top.set && r.now().Sub(r.top.at) < CacheTTL {
		out := r.top.value
		r.mu.Unlock()
		return out, nil
	}
	r.mu.Unlock()

	tokens, err := r.collect()
	if err != nil {
		return nil, err
	}

	rows := make([]MonitoredToken, 0, len(tokens))
	for _, t := range tokens {
		rows = append(rows, *t)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Watchers != rows[j].Watchers {
			return rows[i].Watchers > rows[j].Watchers
		}
		return rows[i].Symbol < rows[j].Symbol
	})
	if len(rows) > n {
		rows = rows[:n]
	}

	for i := range rows {
		q, err := r.quotes.Resolve(ctx, rows[i].Chain, rows[i].Address)
		if err != nil {
			log.Debugf("top monitored: keeping stored data for %s:%s: %v", rows[i].Chain, rows[i].Address, err)
			continue
		}
		rows[i].Symbol = q.Symbol
		rows[i].MarketCap = q.MarketCap
	}

	r.mu.Lock()
	r.top = cached[[]MonitoredToken]{value: rows, at: r.now(), set: true}
	r.mu.Unlock()
	return rows, nil
}

// TopLeaderboard returns the n biggest 24h gainers and losers among all
// watched tokens. Tokens that fail to resolve are skipped.
func (r *Reports) TopLeaderboard(ctx context.Context, n int) (Leaderboard, error) {
	r.mu.Lock()
	if r.board.set && r.now().Sub(r.board.at) < CacheTTL {
		out := r.board.value
		r.mu.Unlock()
		return out, nil
	}
	r.mu.Unlock()

	tokens, err := r.collect()
	if err != nil {
		return Leaderboard{}, err
	}

	movers := make([]Mover, 0, len(tokens))
	for _, t := range tokens {
		q, err := r.quotes.Resolve(ctx, t.Chain, t.Address)
		if err != nil {
			log.Debugf("leaderboard: skipping %s:%s: %v", t.Chain, t.Address, err)
			continue
		}
		movers = append(movers, Mover{Chain: t.Chain, Address: t.Address, Symbol: q.Symbol, Change24h: q.Change24h})
	}

	gainers := make([]Mover, len(movers))
	copy(gainers, movers)
	sort.Slice(gainers, func(i, j int) bool { return gainers[i].Change24h > gainers[j].Change24h })
	losers := make([]Mover, len(movers))
	copy(losers, movers)
	sort.Slice(losers, func(i, j int) bool { return losers[i].Change24h < losers[j].Change24h })

	if len(gainers) > n {
		gainers = gainers[:n]
	}
	if len(losers) > n {
		losers = losers[:n]
	}

	board := Leaderboard{Gainers: gainers, Losers: losers}
	r.mu.Lock()
	r.board = cached[Leaderboard]{value: board, at: r.now(), set: true}
	r.mu.Unlock()
	return board, nil
}
