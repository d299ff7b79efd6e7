package cart

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bazaar-dev/backend-bazaar/internal/pricing"
)

func testLines() []Line {
	return []Line{
		{ID: uuid.New(), Name: "oud perfume", Qty: 1, Prices: pricing.PriceMap{pricing.CurrencyAED: 5000, pricing.CurrencyINR: 110000}},
		{ID: uuid.New(), Name: "dates box", Qty: 2, Prices: pricing.PriceMap{pricing.CurrencyAED: 2500}},
		{ID: uuid.New(), Name: "saffron tin", Qty: 1, Prices: pricing.PriceMap{pricing.CurrencyAED: 4000, pricing.CurrencyINR: 88000}},
	}
}

func TestPartitionExhaustiveAndStable(t *testing.T) {
	lines := testLines()
	split := Partition(lines, pricing.CurrencyINR)
	require.Len(t, split.Priced, 2)
	require.Len(t, split.Unpriced, 1)
	require.Equal(t, "oud perfume", split.Priced[0].Name)
	require.Equal(t, "saffron tin", split.Priced[1].Name)
	require.Equal(t, "dates box", split.Unpriced[0].Name)

	// every line lands in exactly one bucket
	require.Equal(t, len(lines), len(split.Priced)+len(split.Unpriced))
}

func TestSubtotalPricedOnly(t *testing.T) {
	lines := testLines()
	require.Equal(t, pricing.Money(14000), Subtotal(lines, pricing.CurrencyAED))
	// dates box has no INR price and contributes nothing
	require.Equal(t, pricing.Money(198000), Subtotal(lines, pricing.CurrencyINR))
	require.Equal(t, pricing.Money(0), Subtotal(nil, pricing.CurrencyAED))
}

func TestSubtotalMonotonicInCartSize(t *testing.T) {
	lines := testLines()
	base := Subtotal(lines, pricing.CurrencyAED)
	grown := append(append([]Line{}, lines...), Line{Qty: 3, Prices: pricing.PriceMap{pricing.CurrencyAED: 100}})
	require.GreaterOrEqual(t, Subtotal(grown, pricing.CurrencyAED), base)
}

func TestPurgeUnpricedIdempotent(t *testing.T) {
	lines := testLines()
	once := PurgeUnpriced(lines, pricing.CurrencyINR)
	require.Len(t, once, 2)
	twice := PurgeUnpriced(once, pricing.CurrencyINR)
	require.Equal(t, once, twice)
}

func TestCurrencySwitchScenario(t *testing.T) {
	// AED cart of 3 items where 1 lacks an INR price
	lines := testLines()
	split := Partition(lines, pricing.CurrencyINR)
	require.Len(t, split.Priced, 2)
	require.Len(t, split.Unpriced, 1)
	require.Equal(t, Subtotal(split.Priced, pricing.CurrencyINR), Subtotal(lines, pricing.CurrencyINR))
}
