package promo

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bazaar-dev/backend-bazaar/internal/pricing"
)

// ErrInvalidOffer is returned when an offer definition fails creation-time validation.
var ErrInvalidOffer = errors.New("invalid offer")

// Kind discriminates between the supported discount strategies.
type Kind string

const (
	// KindPercent applies a percentage of the order subtotal.
	KindPercent Kind = "percent"
	// KindFlat subtracts a fixed amount denominated per currency.
	KindFlat Kind = "flat"
)

// Shop identifies the storefront an offer is restricted to.
type Shop string

const (
	ShopA    Shop = "shop_a"
	ShopB    Shop = "shop_b"
	ShopBoth Shop = "both"
)

// UserType restricts an offer to a segment of customers. The empty value
// means the offer applies to everyone.
type UserType string

const (
	UserTypeNew       UserType = "new"
	UserTypeReturning UserType = "returning"
)

// ParseKind validates a raw discount kind string.
func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case KindPercent, KindFlat:
		return Kind(raw), nil
	}
	return "", fmt.Errorf("unknown kind %q: %w", raw, ErrInvalidOffer)
}

// ParseShop validates a raw shop identifier.
func ParseShop(raw string) (Shop, error) {
	switch Shop(raw) {
	case ShopA, ShopB, ShopBoth:
		return Shop(raw), nil
	}
	return "", fmt.Errorf("unknown shop %q: %w", raw, ErrInvalidOffer)
}

// ParseUserType validates a raw user segment. The empty string is accepted
// and means unrestricted.
func ParseUserType(raw string) (UserType, error) {
	switch UserType(raw) {
	case "", UserTypeNew, UserTypeReturning:
		return UserType(raw), nil
	}
	return "", fmt.Errorf("unknown user type %q: %w", raw, ErrInvalidOffer)
}

// RejectionReason explains why an offer could not be applied. Rejections are
// a normal result variant, not errors.
type RejectionReason string

const (
	ReasonNotYetStarted      RejectionReason = "NOT_YET_STARTED"
	ReasonExpired            RejectionReason = "EXPIRED"
	ReasonUsageLimitExceeded RejectionReason = "USAGE_LIMIT_EXCEEDED"
	ReasonShopRestricted     RejectionReason = "SHOP_RESTRICTED"
	ReasonUserTypeRestricted RejectionReason = "USER_TYPE_RESTRICTED"
	ReasonCategoryRestricted RejectionReason = "CATEGORY_RESTRICTED"
	ReasonBelowMinimum       RejectionReason = "BELOW_MINIMUM"
	ReasonAboveMaximum       RejectionReason = "ABOVE_MAXIMUM"
	ReasonCurrencyMismatch   RejectionReason = "CURRENCY_MISMATCH"
)

// AmountMap holds per-currency monetary values attached to an offer.
type AmountMap map[pricing.Currency]pricing.Money

// Offer captures the runtime constraints of a coupon or promotional offer.
type Offer struct {
	ID                    uuid.UUID   `json:"id"`
	Code                  string      `json:"code"`
	Kind                  Kind        `json:"kind"`
	Percent               int32       `json:"percent,omitempty"`
	AmountByCurrency      AmountMap   `json:"amountByCurrency,omitempty"`
	MaxDiscountByCurrency AmountMap   `json:"maxDiscountByCurrency,omitempty"`
	MinOrderByCurrency    AmountMap   `json:"minOrderByCurrency,omitempty"`
	MaxOrderByCurrency    AmountMap   `json:"maxOrderByCurrency,omitempty"`
	ValidFrom             time.Time   `json:"validFrom"`
	ValidTo               time.Time   `json:"validTo"`
	PerUserLimit          *int32      `json:"perUserLimit,omitempty"`
	TotalLimit            *int32      `json:"totalLimit,omitempty"`
	UsedCount             int32       `json:"usedCount"`
	Shop                  Shop        `json:"shop"`
	UserType              UserType    `json:"userType,omitempty"`
	CategoryIDs           []uuid.UUID `json:"categoryIds,omitempty"`
	Priority              *int32      `json:"priority,omitempty"`
	Active                bool        `json:"active"`
	CreatedAt             time.Time   `json:"createdAt"`
}

// Context carries the order state an offer is evaluated against.
type Context struct {
	Now         time.Time
	Currency    pricing.Currency
	Shop        Shop
	UserType    UserType
	Subtotal    pricing.Money
	CategoryIDs []uuid.UUID
	PerUserUsed int32
}

// Result is the outcome of evaluating a single offer.
type Result struct {
	Applicable bool            `json:"applicable"`
	Amount     pricing.Money   `json:"amount"`
	Reason     RejectionReason `json:"reason,omitempty"`
}

func rejected(reason RejectionReason) Result {
	return Result{Reason: reason}
}

// Evaluate checks the offer against the order context and computes the
// discount. Checks run in a fixed order and short-circuit on the first
// failure so callers always observe the same rejection reason for the same
// inputs.
func Evaluate(offer Offer, ctx Context) Result {
	if !offer.ValidFrom.IsZero() && ctx.Now.Before(offer.ValidFrom) {
		return rejected(ReasonNotYetStarted)
	}
	if !offer.ValidTo.IsZero() && ctx.Now.After(offer.ValidTo) {
		return rejected(ReasonExpired)
	}
	if offer.PerUserLimit != nil && *offer.PerUserLimit > 0 && ctx.PerUserUsed >= *offer.PerUserLimit {
		return rejected(ReasonUsageLimitExceeded)
	}
	if offer.TotalLimit != nil && *offer.TotalLimit > 0 && offer.UsedCount >= *offer.TotalLimit {
		return rejected(ReasonUsageLimitExceeded)
	}
	if offer.Shop != "" && offer.Shop != ShopBoth && offer.Shop != ctx.Shop {
		return rejected(ReasonShopRestricted)
	}
	if offer.UserType != "" && offer.UserType != ctx.UserType {
		return rejected(ReasonUserTypeRestricted)
	}
	if len(offer.CategoryIDs) > 0 && !categoriesIntersect(offer.CategoryIDs, ctx.CategoryIDs) {
		return rejected(ReasonCategoryRestricted)
	}
	if floor, ok := offer.MinOrderByCurrency[ctx.Currency]; ok && floor > 0 && ctx.Subtotal < floor {
		return rejected(ReasonBelowMinimum)
	}
	if ceiling, ok := offer.MaxOrderByCurrency[ctx.Currency]; ok && ceiling > 0 && ctx.Subtotal > ceiling {
		return rejected(ReasonAboveMaximum)
	}
	if offer.Kind == KindFlat {
		if amount, ok := offer.AmountByCurrency[ctx.Currency]; !ok || amount <= 0 {
			return rejected(ReasonCurrencyMismatch)
		}
	}
	return Result{Applicable: true, Amount: computeDiscount(offer, ctx)}
}

func computeDiscount(offer Offer, ctx Context) pricing.Money {
	var amount pricing.Money
	switch offer.Kind {
	case KindPercent:
		amount = ctx.Subtotal * pricing.Money(offer.Percent) / 100
		if limit, ok := offer.MaxDiscountByCurrency[ctx.Currency]; ok && limit > 0 && amount > limit {
			amount = limit
		}
	case KindFlat:
		amount = offer.AmountByCurrency[ctx.Currency]
	}
	if amount > ctx.Subtotal {
		amount = ctx.Subtotal
	}
	if amount < 0 {
		amount = 0
	}
	return amount
}

// categoriesIntersect reports whether at least one cart category is allowed.
// Whole-order gating: a single matching line makes the full subtotal eligible.
func categoriesIntersect(allowed, present []uuid.UUID) bool {
	for _, a := range allowed {
		for _, p := range present {
			if a == p {
				return true
			}
		}
	}
	return false
}

// Validate enforces the creation-time contract for an offer definition.
// Evaluation never raises these: a malformed offer is rejected before it is
// ever stored.
func Validate(offer Offer) error {
	switch offer.Kind {
	case KindPercent:
		if offer.Percent < 1 || offer.Percent > 100 {
			return fmt.Errorf("percent must be within [1,100]: %w", ErrInvalidOffer)
		}
	case KindFlat:
		if len(offer.AmountByCurrency) == 0 {
			return fmt.Errorf("flat offer requires at least one amount: %w", ErrInvalidOffer)
		}
		for currency, amount := range offer.AmountByCurrency {
			if amount <= 0 {
				return fmt.Errorf("flat amount for %s must be positive: %w", currency, ErrInvalidOffer)
			}
		}
	default:
		return fmt.Errorf("unknown kind %q: %w", offer.Kind, ErrInvalidOffer)
	}
	if offer.ValidFrom.IsZero() || offer.ValidTo.IsZero() {
		return fmt.Errorf("validity window is required: %w", ErrInvalidOffer)
	}
	if !offer.ValidFrom.Before(offer.ValidTo) {
		return fmt.Errorf("validFrom must precede validTo: %w", ErrInvalidOffer)
	}
	return nil
}

// IsHighRiskFullDiscount reports whether the offer gives the entire order
// away with no order-value ceiling. The engine does not block such offers;
// admin surfaces use this to warn before saving one.
func IsHighRiskFullDiscount(offer Offer) bool {
	if offer.Kind != KindPercent || offer.Percent != 100 {
		return false
	}
	for _, max := range offer.MaxOrderByCurrency {
		if max > 0 {
			return false
		}
	}
	return true
}
