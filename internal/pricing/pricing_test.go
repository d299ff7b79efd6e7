package pricing

import "testing"

func TestPriceAbsentZeroNegative(t *testing.T) {
	prices := PriceMap{
		CurrencyAED: 24900,
		CurrencyINR: 0,
	}
	if v, ok := prices.Price(CurrencyAED); !ok || v != 24900 {
		t.Fatalf("expected AED price 24900, got %d ok=%v", v, ok)
	}
	if _, ok := prices.Price(CurrencyINR); ok {
		t.Fatal("zero stored price must not be offered")
	}
	prices[CurrencyINR] = -100
	if _, ok := prices.Price(CurrencyINR); ok {
		t.Fatal("negative stored price must not be offered")
	}
	delete(prices, CurrencyINR)
	if _, ok := prices.Price(CurrencyINR); ok {
		t.Fatal("absent price must not be offered")
	}
}

func TestParseCurrency(t *testing.T) {
	if c, ok := ParseCurrency(" aed "); !ok || c != CurrencyAED {
		t.Fatalf("expected AED, got %q ok=%v", c, ok)
	}
	if _, ok := ParseCurrency("usd"); ok {
		t.Fatal("unsupported currency must not parse")
	}
}
