package pricing

import "strings"

// Money represents a monetary value stored in minor units.
type Money = int64

// Currency identifies a supported settlement currency.
type Currency string

const (
	CurrencyAED Currency = "AED"
	CurrencyINR Currency = "INR"
)

// ParseCurrency normalises a currency code. It reports whether the code is supported.
func ParseCurrency(value string) (Currency, bool) {
	switch Currency(strings.ToUpper(strings.TrimSpace(value))) {
	case CurrencyAED:
		return CurrencyAED, true
	case CurrencyINR:
		return CurrencyINR, true
	}
	return "", false
}

// PriceMap holds per-currency prices for a catalog item. A missing entry means
// the item is not offered in that currency.
type PriceMap map[Currency]Money

// Price returns the price for the given currency. Zero and negative stored
// values are treated the same as an absent entry: the item is not offered in
// that currency.
func (p PriceMap) Price(currency Currency) (Money, bool) {
	value, ok := p[currency]
	if !ok || value <= 0 {
		return 0, false
	}
	return value, true
}

// Offered reports whether the item carries a usable price in the currency.
func (p PriceMap) Offered(currency Currency) bool {
	_, ok := p.Price(currency)
	return ok
}
