package resolver

import "testing"

func TestValidAddress(t *testing.T) {
	tests := []struct {
		chain   string
		address string
		want    bool
	}{
		{ChainEthereum, "0x1111111111111111111111111111111111111111", true},
		{ChainBSC, "0xAbCdEf0123456789aBcDeF0123456789abcdef01", true},
		{ChainEthereum, "0x123", false},
		{ChainEthereum, "1111111111111111111111111111111111111111", false},
		{ChainSolana, "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R", true},
		{ChainSolana, "0x1111111111111111111111111111111111111111", false},
		// base58 excludes 0, O, I and l
		{ChainSolana, "0OIl000000000000000000000000000000000000", false},
		{ChainTON, "0:" + repeat("a", 64), true},
		{ChainTON, "EQAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", true},
		{ChainTON, "0:" + repeat("a", 63), false},
		{ChainTON, "short", false},
		{"dogechain", "0x1111111111111111111111111111111111111111", false},
	}

	for _, tt := range tests {
		if got := ValidAddress(tt.chain, tt.address); got != tt.want {
			t.Errorf("ValidAddress(%q, %q) = %v, want %v", tt.chain, tt.address, got, tt.want)
		}
	}
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}

func TestDecodeABIString(t *testing.T) {
	word := func(last byte) []byte {
		w := make([]byte, 32)
		w[31] = last
		return w
	}

	data := append(word(0x20), word(5)...)
	data = append(data, []byte("Token")...)
	data = append(data, make([]byte, 27)...) // pad to a full word

	got, err := decodeABIString(data)
	if err != nil {
		t.Fatalf("decodeABIString: %v", err)
	}
	if got != "Token" {
		t.Fatalf("decodeABIString = %q, want %q", got, "Token")
	}

	if _, err := decodeABIString([]byte{0x01}); err == nil {
		t.Fatal("short data must error")
	}
	if _, err := decodeABIString(append(word(0x20), word(200)...)); err == nil {
		t.Fatal("length past buffer must error")
	}
}
