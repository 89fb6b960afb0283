package helpers

import "testing"

func TestEscapeMarkdownV2(t *testing.T) {
	got := EscapeMarkdownV2("price is 1.5 (up!)")
	want := "price is 1\\.5 \\(up\\!\\)"
	if got != want {
		t.Fatalf("EscapeMarkdownV2 = %q, want %q", got, want)
	}
}

func TestFormatPriceUS(t *testing.T) {
	cases := []struct {
		price  float64
		escape bool
		want   string
	}{
		{1234.6, false, "1,235"},
		{2.5, false, "2.50"},
		{0.123456, false, "0.123456"},
		{0.000001234, false, "0.00000123"},
		{2.5, true, "2\\.50"},
	}
	for _, c := range cases {
		if got := FormatPriceUS(c.price, c.escape); got != c.want {
			t.Errorf("FormatPriceUS(%v, %v) = %q, want %q", c.price, c.escape, got, c.want)
		}
	}
}

func TestFormatMarketCapUS(t *testing.T) {
	if got := FormatMarketCapUS(1234567); got != "\\$1,234,567" {
		t.Fatalf("FormatMarketCapUS = %q", got)
	}
}

func TestShortAddress(t *testing.T) {
	long := "0x1234567890abcdef1234567890abcdef12345678"
	if got := ShortAddress(long); got != "0x1234…5678" {
		t.Fatalf("ShortAddress = %q", got)
	}
	if got := ShortAddress("0xshort"); got != "0xshort" {
		t.Fatalf("ShortAddress = %q, want unchanged", got)
	}
}
