package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bazaar-dev/backend-bazaar/internal/cart"
	"github.com/bazaar-dev/backend-bazaar/internal/order"
	"github.com/bazaar-dev/backend-bazaar/internal/pricing"
	"github.com/bazaar-dev/backend-bazaar/internal/promo"
)

var (
	// ErrEmptyCart is returned when no priced lines remain after the
	// unpriced purge.
	ErrEmptyCart = errors.New("checkout: cart has no priced items")
	// ErrCouponNotApplicable is returned when the applied coupon no longer
	// passes evaluation at checkout time.
	ErrCouponNotApplicable = errors.New("checkout: coupon not applicable")
)

// Carts is the slice of the cart service checkout needs.
type Carts interface {
	PurgeUnpriced(ctx context.Context, cartID uuid.UUID) (cart.View, error)
	Clear(ctx context.Context, cartID uuid.UUID) error
}

// Coupons resolves explicit codes and automatic offers.
type Coupons interface {
	EvaluateCode(ctx context.Context, code, userKey string, evalCtx promo.Context) (promo.Result, promo.Offer, error)
	BestAutomaticOffer(ctx context.Context, userKey string, evalCtx promo.Context) (*promo.Offer, promo.Result, error)
}

// Orders persists the checkout snapshot.
type Orders interface {
	CreateOrder(ctx context.Context, o order.Order, items []order.Item) (order.Order, error)
}

// Service turns a reconciled cart into an immutable order snapshot.
type Service struct {
	Carts   Carts
	Coupons Coupons
	Orders  Orders
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Input carries the buyer context for a checkout.
type Input struct {
	CartID   uuid.UUID
	Shop     promo.Shop
	UserType promo.UserType
}

// Outcome is the committed order plus the discount provenance.
type Outcome struct {
	Order      order.Order   `json:"order"`
	Items      []order.Item  `json:"items"`
	CouponCode string        `json:"couponCode,omitempty"`
	Automatic  bool          `json:"automatic,omitempty"`
	Rejection  *promo.Result `json:"rejection,omitempty"`
}

// Checkout purges unpriced lines, resolves the discount, snapshots the order
// and clears the cart. An applied coupon that fails re-evaluation aborts the
// checkout with ErrCouponNotApplicable and the rejection in the outcome;
// automatic offers never block, they simply do not apply.
func (s *Service) Checkout(ctx context.Context, in Input) (Outcome, error) {
	if s == nil || s.Carts == nil || s.Orders == nil {
		return Outcome{}, errors.New("checkout service not configured")
	}
	view, err := s.Carts.PurgeUnpriced(ctx, in.CartID)
	if err != nil {
		return Outcome{}, err
	}
	if len(view.Priced) == 0 {
		return Outcome{}, ErrEmptyCart
	}

	currency := view.Cart.Currency
	evalCtx := promo.Context{
		Now:         s.now(),
		Currency:    currency,
		Shop:        in.Shop,
		UserType:    in.UserType,
		Subtotal:    view.Subtotal,
		CategoryIDs: lineCategories(view.Priced),
	}

	var (
		discount   pricing.Money
		couponCode string
		automatic  bool
	)
	switch {
	case view.Cart.AppliedCoupon != "" && s.Coupons != nil:
		result, offer, err := s.Coupons.EvaluateCode(ctx, view.Cart.AppliedCoupon, view.Cart.SessionToken, evalCtx)
		if err != nil {
			return Outcome{}, err
		}
		if !result.Applicable {
			return Outcome{Rejection: &result, CouponCode: offer.Code}, ErrCouponNotApplicable
		}
		discount = result.Amount
		couponCode = offer.Code
	case s.Coupons != nil:
		best, result, err := s.Coupons.BestAutomaticOffer(ctx, view.Cart.SessionToken, evalCtx)
		if err != nil {
			return Outcome{}, err
		}
		if best != nil {
			discount = result.Amount
			couponCode = best.Code
			automatic = true
		}
	}

	total := view.Subtotal - discount
	if total < 0 {
		total = 0
	}

	items := make([]order.Item, 0, len(view.Priced))
	for _, line := range view.Priced {
		unit, _ := line.UnitPrice(currency)
		items = append(items, order.Item{
			ProductID: line.ProductID,
			Name:      line.Name,
			UnitPrice: unit,
			Qty:       int32(line.Qty),
			LineTotal: unit * pricing.Money(line.Qty),
		})
	}

	created, err := s.Orders.CreateOrder(ctx, order.Order{
		Number:       orderNumber(s.now()),
		SessionToken: view.Cart.SessionToken,
		Currency:     currency,
		Status:       order.StatusPending,
		Shop:         string(in.Shop),
		Subtotal:     view.Subtotal,
		Discount:     discount,
		Total:        total,
		CouponCode:   couponCode,
	}, items)
	if err != nil {
		return Outcome{}, err
	}
	if err := s.Carts.Clear(ctx, in.CartID); err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Order:      created,
		Items:      items,
		CouponCode: couponCode,
		Automatic:  automatic,
	}, nil
}

// orderNumber builds a human-readable order reference. Uniqueness comes from
// the uuid suffix; the date prefix is for support staff.
func orderNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:8])
	return fmt.Sprintf("BZ-%s-%s", now.Format("20060102"), suffix)
}

func lineCategories(lines []cart.Line) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	out := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if line.CategoryID == uuid.Nil {
			continue
		}
		if _, ok := seen[line.CategoryID]; ok {
			continue
		}
		seen[line.CategoryID] = struct{}{}
		out = append(out, line.CategoryID)
	}
	return out
}
