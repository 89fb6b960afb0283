package resolver

import "regexp"

// Address grammars per chain. TON addresses come in a raw "0:<hex64>" form
// and a 48 character base64url friendly form.
var (
	evmAddressRe    = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	solanaAddressRe = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
	tonRawAddressRe = regexp.MustCompile(`^0:[a-fA-F0-9]{64}$`)
	tonB64AddressRe = regexp.MustCompile(`^[A-Za-z0-9_-]{48}$`)
)

// ValidAddress reports whether address matches the grammar of the given
// chain. Unknown chains never validate.
func ValidAddress(chain, address string) bool {
	switch chain {
	case ChainEthereum, ChainBase, ChainBSC, ChainPolygon:
		return evmAddressRe.MatchString(address)
	case ChainSolana:
		return solanaAddressRe.MatchString(address)
	case ChainTON:
		return tonRawAddressRe.MatchString(address) || tonB64AddressRe.MatchString(address)
	}
	return false
}
