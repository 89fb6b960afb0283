package resolver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// DefaultCoinGeckoURL is the public CoinGecko API host.
const DefaultCoinGeckoURL = "https://api.coingecko.com"

// coinGeckoPlatforms maps chains without DEX liquidity coverage to their
// CoinGecko asset platform ids.
var coinGeckoPlatforms = map[string]string{
	ChainTON: "the-open-network",
}

type coinGeckoResponse struct {
	Error      string `json:"error"`
	Symbol     string `json:"symbol"`
	MarketData struct {
		CurrentPrice struct {
			USD float64 `json:"usd"`
		} `json:"current_price"`
		MarketCap struct {
			USD float64 `json:"usd"`
		} `json:"market_cap"`
		PriceChange24h float64 `json:"price_change_percentage_24h"`
	} `json:"market_data"`
}

// fetchCoinGecko resolves a token through the contract-address market data
// endpoint, used for chains DexScreener does not index.
func (r *Resolver) fetchCoinGecko(ctx context.Context, chain, address string) (Quote, error) {
	platform, ok := coinGeckoPlatforms[chain]
	if !ok {
		return Quote{}, errors.Wrapf(ErrUnsupportedChain, "no coingecko platform for %s", chain)
	}
	url := r.cfg.CoinGeckoURL + "/api/v3/coins/" + platform + "/contract/" + address

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Quote{}, errors.Wrap(ErrProviderUnavailable, err.Error())
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Quote{}, errors.Wrapf(ErrProviderUnavailable, "coingecko request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Quote{}, errors.Wrapf(ErrProviderUnavailable, "coingecko status %d", resp.StatusCode)
	}

	var body coinGeckoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Quote{}, errors.Wrapf(ErrProviderUnavailable, "coingecko decode: %v", err)
	}
	if body.Error != "" {
		return Quote{}, errors.Wrapf(ErrPriceUnavailable, "coingecko: %s", body.Error)
	}
	if body.MarketData.CurrentPrice.USD <= 0 {
		return Quote{}, errors.Wrapf(ErrPriceUnavailable, "no usd price for %s", address)
	}

	return Quote{
		Price:     body.MarketData.CurrentPrice.USD,
		Symbol:    strings.ToUpper(body.Symbol),
		MarketCap: body.MarketData.MarketCap.USD,
		Change24h: body.MarketData.PriceChange24h,
	}, nil
}
