package resolver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultDexScreenerURL is the public DexScreener API host.
const DefaultDexScreenerURL = "https://api.dexscreener.com"

// dexPair mirrors the fields of a DexScreener trading pair the resolver
// cares about. priceUsd is a string-encoded number on the wire.
type dexPair struct {
	ChainID   string `json:"chainId"`
	PriceUSD  string `json:"priceUsd"`
	MarketCap float64 `json:"marketCap"`
	BaseToken struct {
		Symbol string `json:"symbol"`
	} `json:"baseToken"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	PriceChange struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
}

type dexTokenResponse struct {
	Pairs []dexPair `json:"pairs"`
}

// fetchDexScreener resolves a token through the DexScreener token endpoint.
// Among multi-pool results the pool on the requested chain wins; with no
// exact chain match the deepest pool by USD liquidity is used.
func (r *Resolver) fetchDexScreener(ctx context.Context, chain, address string) (Quote, error) {
	url := r.cfg.DexScreenerURL + "/latest/dex/tokens/" + address

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Quote{}, errors.Wrap(ErrProviderUnavailable, err.Error())
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Quote{}, errors.Wrapf(ErrProviderUnavailable, "dexscreener request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Quote{}, errors.Wrapf(ErrProviderUnavailable, "dexscreener status %d", resp.StatusCode)
	}

	var body dexTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Quote{}, errors.Wrapf(ErrProviderUnavailable, "dexscreener decode: %v", err)
	}
	if len(body.Pairs) == 0 {
		return Quote{}, errors.Wrapf(ErrPriceUnavailable, "no pairs for %s", address)
	}

	if log.IsLevelEnabled(log.DebugLevel) {
		log.Debugf("dexscreener pairs for %s:%s: %s", chain, address, spew.Sdump(body.Pairs))
	}

	pair := selectPair(body.Pairs, chainID(chain))
	price, err := strconv.ParseFloat(strings.TrimSpace(pair.PriceUSD), 64)
	if err != nil || price <= 0 {
		return Quote{}, errors.Wrapf(ErrPriceUnavailable, "unusable priceUsd %q", pair.PriceUSD)
	}

	symbol := strings.ToUpper(pair.BaseToken.Symbol)
	return Quote{
		Price:     price,
		Symbol:    symbol,
		MarketCap: pair.MarketCap,
		Change24h: pair.PriceChange.H24,
	}, nil
}

// selectPair picks the pair whose chain identifier matches exactly, falling
// back to the pair with the highest USD liquidity.
func selectPair(pairs []dexPair, chainID string) dexPair {
	best := pairs[0]
	for _, p := range pairs {
		if p.ChainID == chainID {
			return p
		}
		if p.Liquidity.USD > best.Liquidity.USD {
			best = p
		}
	}
	return best
}
