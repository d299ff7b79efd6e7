package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazaar-dev/backend-bazaar/internal/pricing"
)

// Shop identifies which storefront a product is sold on.
type Shop string

const (
	ShopA    Shop = "shop_a"
	ShopB    Shop = "shop_b"
	ShopBoth Shop = "both"
)

// Product is a sellable catalog item with per-currency prices.
type Product struct {
	ID         uuid.UUID        `json:"id"`
	Name       string           `json:"name"`
	Slug       string           `json:"slug"`
	CategoryID uuid.UUID        `json:"categoryId"`
	Shop       Shop             `json:"shop"`
	Available  bool             `json:"available"`
	Stock      int32            `json:"stock"`
	Prices     pricing.PriceMap `json:"prices"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// SoldOn reports whether the product is sold on the given storefront.
func (p Product) SoldOn(shop Shop) bool {
	return p.Shop == ShopBoth || p.Shop == shop
}

// Category groups products for navigation and offer scoping.
type Category struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}
