package resolver

import (
	"context"
	"encoding/binary"
	"strings"
	"sync"
	"unicode"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// erc20NameSelector is the 4-byte selector of the name() view function.
var erc20NameSelector = []byte{0x06, 0xfd, 0xde, 0x03}

type rpcPool struct {
	mu      sync.Mutex
	clients map[string]*ethclient.Client
}

// client dials the endpoint for chain on first use and reuses it afterwards.
func (p *rpcPool) client(chain, endpoint string) (*ethclient.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[chain]; ok {
		return c, nil
	}
	c, err := ethclient.Dial(endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "dial rpc for %s", chain)
	}
	p.clients[chain] = c
	return c, nil
}

// backfillSymbol reads the token name from the chain via a read-only
// contract call. It is consulted only when the primary provider yields no
// price and never supplies a price itself.
func (r *Resolver) backfillSymbol(ctx context.Context, chain, address string) (string, error) {
	endpoint, ok := r.cfg.RPCEndpoints[chain]
	if !ok || endpoint == "" {
		return "", errors.Errorf("no rpc endpoint configured for %s", chain)
	}
	client, err := r.rpc.client(chain, endpoint)
	if err != nil {
		return "", err
	}

	to := common.HexToAddress(address)
	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: erc20NameSelector}, nil)
	if err != nil {
		return "", errors.Wrapf(err, "name() call for %s on %s", address, chain)
	}

	name, err := decodeABIString(out)
	if err != nil {
		return "", err
	}
	log.Debugf("backfilled symbol %q for %s:%s", name, chain, address)
	return name, nil
}

// decodeABIString unpacks a single ABI-encoded string return value
// (32-byte offset word, 32-byte length word, data).
func decodeABIString(out []byte) (string, error) {
	if len(out) < 64 {
		return "", errors.New("short name() return data")
	}
	length := int(binary.BigEndian.Uint64(out[56:64]))
	if length <= 0 || 64+length > len(out) {
		return "", errors.New("malformed name() return data")
	}
	s := strings.TrimFunc(string(out[64:64+length]), func(r rune) bool {
		return !unicode.IsPrint(r)
	})
	if s == "" {
		return "", errors.New("empty name() return data")
	}
	return s, nil
}
