package cart

import (
	"github.com/google/uuid"

	"github.com/bazaar-dev/backend-bazaar/internal/pricing"
)

// Line is a cart line item joined with the catalog data needed for pricing.
type Line struct {
	ID         uuid.UUID         `json:"id"`
	ProductID  uuid.UUID         `json:"productId"`
	Name       string            `json:"name"`
	CategoryID uuid.UUID         `json:"categoryId"`
	Qty        int               `json:"qty"`
	Note       string            `json:"note,omitempty"`
	Prices     pricing.PriceMap  `json:"prices"`
}

// UnitPrice returns the line's unit price in the given currency.
func (l Line) UnitPrice(currency pricing.Currency) (pricing.Money, bool) {
	return l.Prices.Price(currency)
}

// Split partitions cart lines by whether they carry a price in the active
// currency. Ordering within each slice follows the original cart order.
type Split struct {
	Priced   []Line `json:"priced"`
	Unpriced []Line `json:"unpriced"`
}

// Partition places every line in exactly one of the priced or unpriced
// buckets for the given currency. The input is never mutated.
func Partition(lines []Line, currency pricing.Currency) Split {
	split := Split{
		Priced:   make([]Line, 0, len(lines)),
		Unpriced: make([]Line, 0),
	}
	for _, line := range lines {
		if line.Prices.Offered(currency) {
			split.Priced = append(split.Priced, line)
		} else {
			split.Unpriced = append(split.Unpriced, line)
		}
	}
	return split
}

// Subtotal sums unit price times quantity over the lines that are priced in
// the currency. Unpriced lines and non-positive quantities contribute zero.
func Subtotal(lines []Line, currency pricing.Currency) pricing.Money {
	var total pricing.Money
	for _, line := range lines {
		if line.Qty <= 0 {
			continue
		}
		unit, ok := line.UnitPrice(currency)
		if !ok {
			continue
		}
		total += pricing.Money(line.Qty) * unit
	}
	return total
}

// PurgeUnpriced drops every line without a usable price in the currency.
// Applying it twice yields the same result as applying it once.
func PurgeUnpriced(lines []Line, currency pricing.Currency) []Line {
	kept := make([]Line, 0, len(lines))
	for _, line := range lines {
		if line.Prices.Offered(currency) {
			kept = append(kept, line)
		}
	}
	return kept
}
