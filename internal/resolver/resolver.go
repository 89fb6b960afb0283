// Package resolver turns a (chain, address) pair into a price, symbol and
// market cap through the provider designated for the chain, with a
// time-boxed quote cache and failure quarantine shared by the scheduler and
// on-demand lookups.
package resolver

import (
	"context"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Supported chains.
const (
	ChainSolana   = "solana"
	ChainEthereum = "ethereum"
	ChainBase     = "base"
	ChainBSC      = "bsc"
	ChainPolygon  = "polygon"
	ChainTON      = "ton"
)

// Chains lists the supported chains in menu order.
var Chains = []string{ChainSolana, ChainEthereum, ChainBase, ChainBSC, ChainPolygon, ChainTON}

// dexScreenerChainIDs maps our chain names to DexScreener chain
// identifiers. They happen to coincide today; the indirection keeps the
// mapping explicit.
var dexScreenerChainIDs = map[string]string{
	ChainSolana:   "solana",
	ChainEthereum: "ethereum",
	ChainBase:     "base",
	ChainBSC:      "bsc",
	ChainPolygon:  "polygon",
	ChainTON:      "ton",
}

func chainID(chain string) string {
	if id, ok := dexScreenerChainIDs[chain]; ok {
		return id
	}
	return chain
}

// KnownChain reports whether the resolver has a provider for chain.
func KnownChain(chain string) bool {
	_, ok := dexScreenerChainIDs[chain]
	return ok
}

// Resolution error taxonomy. InvalidAddress and UnsupportedChain are never
// retried and never counted toward quarantine.
var (
	ErrInvalidAddress      = errors.New("invalid token address")
	ErrUnsupportedChain    = errors.New("unsupported chain")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrPriceUnavailable    = errors.New("price unavailable")
)

const (
	// CacheTTL is the freshness window of a cached quote.
	CacheTTL = 300 * time.Second
	// QuarantineThreshold is the consecutive failure count at which a key
	// stops being polled.
	QuarantineThreshold = 5
	// HistoryWindow bounds the rolling price history.
	HistoryWindow = 25 * time.Hour

	cacheSize      = 4096
	requestTimeout = 10 * time.Second
)

// Quote is one resolved observation of a token.
type Quote struct {
	Price      float64
	Symbol     string
	MarketCap  float64
	Change24h  float64
	ObservedAt time.Time
}

// Config carries the provider endpoints. Zero values fall back to the
// public hosts; tests point them at local servers.
type Config struct {
	DexScreenerURL string
	CoinGeckoURL   string
	// RPCEndpoints maps EVM chains to JSON-RPC endpoints used only for
	// symbol backfill.
	RPCEndpoints map[string]string
}

// OperatorNotify delivers quarantine notices to the operator channel.
type OperatorNotify func(text string)

// Resolver owns the quote cache, failure tracker and rolling history. It is
// constructed once at startup and injected wherever resolution is needed,
// so tests can build isolated instances.
type Resolver struct {
	cfg        Config
	httpClient *http.Client
	quotes     *expirable.LRU[string, Quote]
	failures   *FailureTracker
	history    *History
	notify     OperatorNotify
	rpc        *rpcPool
	now        func() time.Time
}

// New builds a Resolver. notify may be nil when no operator channel exists
// (tests).
func New(cfg Config, notify OperatorNotify) *Resolver {
	if cfg.DexScreenerURL == "" {
		cfg.DexScreenerURL = DefaultDexScreenerURL
	}
	if cfg.CoinGeckoURL == "" {
		cfg.CoinGeckoURL = DefaultCoinGeckoURL
	}
	if notify == nil {
		notify = func(string) {}
	}
	return &Resolver{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: requestTimeout},
		quotes:     expirable.NewLRU[string, Quote](cacheSize, nil, CacheTTL),
		failures:   NewFailureTracker(QuarantineThreshold),
		history:    NewHistory(HistoryWindow),
		notify:     notify,
		rpc:        &rpcPool{clients: make(map[string]*ethclient.Client)},
		now:        time.Now,
	}
}

func cacheKey(chain, address string) string {
	return chain + ":" + address
}

// Resolve returns the current quote for a token. A fresh cached quote is
// returned verbatim without touching the network. Failures are counted per
// key; the operator is notified once when a key crosses the quarantine
// threshold.
func (r *Resolver) Resolve(ctx context.Context, chain, address string) (Quote, error) {
	key := cacheKey(chain, address)

	if q, ok := r.quotes.Get(key); ok && r.now().Sub(q.ObservedAt) < CacheTTL {
		log.Debugf("cache hit for %s: price=%v symbol=%s", key, q.Price, q.Symbol)
		return q, nil
	}

	if !KnownChain(chain) {
		return Quote{}, errors.Wrapf(ErrUnsupportedChain, "%q", chain)
	}
	if !ValidAddress(chain, address) {
		return Quote{}, errors.Wrapf(ErrInvalidAddress, "%q on %s", address, chain)
	}

	q, err := r.fetch(ctx, chain, address)
	if err != nil {
		// Malformed input never counts toward quarantine.
		if !errors.Is(err, ErrInvalidAddress) && !errors.Is(err, ErrUnsupportedChain) {
			r.recordFailure(chain, address)
		}
		return Quote{}, err
	}

	q.ObservedAt = r.now()
	r.failures.Reset(key)
	r.quotes.Add(key, q)
	r.history.Append(key, q.Price, q.ObservedAt)
	log.Debugf("resolved %s: price=%v symbol=%s market_cap=%v", key, q.Price, q.Symbol, q.MarketCap)
	return q, nil
}

// fetch consults the designated provider for the chain, then the symbol
// backfill when the primary yields no price. A recovered symbol without a
// price is still a failed resolution.
func (r *Resolver) fetch(ctx context.Context, chain, address string) (Quote, error) {
	var q Quote
	var err error
	if chain == ChainTON {
		q, err = r.fetchCoinGecko(ctx, chain, address)
	} else {
		q, err = r.fetchDexScreener(ctx, chain, address)
	}
	if err == nil {
		return q, nil
	}

	if errors.Is(err, ErrPriceUnavailable) {
		if symbol, serr := r.backfillSymbol(ctx, chain, address); serr == nil {
			return Quote{}, errors.Wrapf(ErrPriceUnavailable, "symbol %q recovered but no price for %s on %s", symbol, address, chain)
		}
	}
	return Quote{}, err
}

func (r *Resolver) recordFailure(chain, address string) {
	key := cacheKey(chain, address)
	count := r.failures.Increment(key)
	log.Warnf("resolution failed for %s (%d consecutive)", key, count)
	if count == QuarantineThreshold {
		r.notify("Token " + address + " on " + chain + " failed 5 times. Skipping.")
	}
}

// Quarantined reports whether the scheduler should skip this key.
func (r *Resolver) Quarantined(chain, address string) bool {
	return r.failures.Quarantined(cacheKey(chain, address))
}

// History returns a copy of the rolling price history for a token.
func (r *Resolver) History(chain, address string) []PricePoint {
	return r.history.Snapshot(cacheKey(chain, address))
}
