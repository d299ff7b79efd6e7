package checkout_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bazaar-dev/backend-bazaar/internal/cart"
	"github.com/bazaar-dev/backend-bazaar/internal/checkout"
	"github.com/bazaar-dev/backend-bazaar/internal/order"
	"github.com/bazaar-dev/backend-bazaar/internal/pricing"
	"github.com/bazaar-dev/backend-bazaar/internal/promo"
)

type fakeCarts struct {
	view    cart.View
	purged  int
	cleared int
}

func (f *fakeCarts) PurgeUnpriced(context.Context, uuid.UUID) (cart.View, error) {
	f.purged++
	return f.view, nil
}

func (f *fakeCarts) Clear(context.Context, uuid.UUID) error {
	f.cleared++
	return nil
}

type fakeCoupons struct {
	codeResult promo.Result
	codeOffer  promo.Offer
	codeErr    error
	best       *promo.Offer
	bestResult promo.Result
}

func (f *fakeCoupons) EvaluateCode(_ context.Context, _, _ string, _ promo.Context) (promo.Result, promo.Offer, error) {
	return f.codeResult, f.codeOffer, f.codeErr
}

func (f *fakeCoupons) BestAutomaticOffer(context.Context, string, promo.Context) (*promo.Offer, promo.Result, error) {
	return f.best, f.bestResult, nil
}

type fakeOrders struct {
	created []order.Order
	items   [][]order.Item
}

func (f *fakeOrders) CreateOrder(_ context.Context, o order.Order, items []order.Item) (order.Order, error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	f.created = append(f.created, o)
	f.items = append(f.items, items)
	return o, nil
}

func pricedView(subtotal pricing.Money) cart.View {
	return cart.View{
		Cart: cart.Cart{
			ID:           uuid.New(),
			SessionToken: "sess",
			Currency:     pricing.CurrencyAED,
		},
		Priced: []cart.Line{{
			ID:        uuid.New(),
			ProductID: uuid.New(),
			Name:      "tea",
			Qty:       2,
			Prices:    pricing.PriceMap{pricing.CurrencyAED: subtotal / 2},
		}},
		Subtotal: subtotal,
	}
}

func newCheckout(carts *fakeCarts, coupons *fakeCoupons, orders *fakeOrders) *checkout.Service {
	return &checkout.Service{
		Carts:   carts,
		Coupons: coupons,
		Orders:  orders,
		Now:     func() time.Time { return time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC) },
	}
}

func TestCheckoutSnapshotsAndClearsCart(t *testing.T) {
	carts := &fakeCarts{view: pricedView(10000)}
	orders := &fakeOrders{}
	svc := newCheckout(carts, &fakeCoupons{}, orders)

	outcome, err := svc.Checkout(context.Background(), checkout.Input{
		CartID: carts.view.Cart.ID, Shop: promo.ShopA, UserType: promo.UserTypeNew,
	})
	require.NoError(t, err)
	require.Equal(t, 1, carts.purged)
	require.Equal(t, 1, carts.cleared)
	require.Len(t, orders.created, 1)
	require.Equal(t, pricing.Money(10000), outcome.Order.Subtotal)
	require.Equal(t, pricing.Money(0), outcome.Order.Discount)
	require.Equal(t, pricing.Money(10000), outcome.Order.Total)
	require.Equal(t, order.StatusPending, outcome.Order.Status)
	require.Len(t, outcome.Items, 1)
	require.Equal(t, pricing.Money(10000), outcome.Items[0].LineTotal)
	require.NotEmpty(t, outcome.Order.Number)
}

func TestCheckoutEmptyCart(t *testing.T) {
	view := pricedView(10000)
	view.Priced = nil
	carts := &fakeCarts{view: view}
	svc := newCheckout(carts, &fakeCoupons{}, &fakeOrders{})

	_, err := svc.Checkout(context.Background(), checkout.Input{CartID: view.Cart.ID, Shop: promo.ShopA})
	require.ErrorIs(t, err, checkout.ErrEmptyCart)
	require.Equal(t, 0, carts.cleared)
}

func TestCheckoutAppliesExplicitCoupon(t *testing.T) {
	view := pricedView(10000)
	view.Cart.AppliedCoupon = "SAVE15"
	carts := &fakeCarts{view: view}
	coupons := &fakeCoupons{
		codeResult: promo.Result{Applicable: true, Amount: 1500},
		codeOffer:  promo.Offer{Code: "SAVE15"},
	}
	orders := &fakeOrders{}
	svc := newCheckout(carts, coupons, orders)

	outcome, err := svc.Checkout(context.Background(), checkout.Input{CartID: view.Cart.ID, Shop: promo.ShopA})
	require.NoError(t, err)
	require.Equal(t, pricing.Money(1500), outcome.Order.Discount)
	require.Equal(t, pricing.Money(8500), outcome.Order.Total)
	require.Equal(t, "SAVE15", outcome.Order.CouponCode)
	require.False(t, outcome.Automatic)
}

func TestCheckoutAbortsWhenCouponNoLongerApplies(t *testing.T) {
	view := pricedView(10000)
	view.Cart.AppliedCoupon = "EXPIRED"
	carts := &fakeCarts{view: view}
	coupons := &fakeCoupons{
		codeResult: promo.Result{Reason: promo.ReasonExpired},
		codeOffer:  promo.Offer{Code: "EXPIRED"},
	}
	orders := &fakeOrders{}
	svc := newCheckout(carts, coupons, orders)

	outcome, err := svc.Checkout(context.Background(), checkout.Input{CartID: view.Cart.ID, Shop: promo.ShopA})
	require.ErrorIs(t, err, checkout.ErrCouponNotApplicable)
	require.NotNil(t, outcome.Rejection)
	require.Equal(t, promo.ReasonExpired, outcome.Rejection.Reason)
	require.Empty(t, orders.created)
	require.Equal(t, 0, carts.cleared)
}

func TestCheckoutFallsBackToAutomaticOffer(t *testing.T) {
	view := pricedView(10000)
	carts := &fakeCarts{view: view}
	coupons := &fakeCoupons{
		best:       &promo.Offer{Code: "AUTO10"},
		bestResult: promo.Result{Applicable: true, Amount: 1000},
	}
	svc := newCheckout(carts, coupons, &fakeOrders{})

	outcome, err := svc.Checkout(context.Background(), checkout.Input{CartID: view.Cart.ID, Shop: promo.ShopA})
	require.NoError(t, err)
	require.Equal(t, pricing.Money(1000), outcome.Order.Discount)
	require.Equal(t, "AUTO10", outcome.Order.CouponCode)
	require.True(t, outcome.Automatic)
}

func TestCheckoutTotalNeverNegative(t *testing.T) {
	view := pricedView(1000)
	view.Cart.AppliedCoupon = "HUGE"
	carts := &fakeCarts{view: view}
	coupons := &fakeCoupons{
		codeResult: promo.Result{Applicable: true, Amount: 1000},
		codeOffer:  promo.Offer{Code: "HUGE"},
	}
	svc := newCheckout(carts, coupons, &fakeOrders{})

	outcome, err := svc.Checkout(context.Background(), checkout.Input{CartID: view.Cart.ID, Shop: promo.ShopA})
	require.NoError(t, err)
	require.Equal(t, pricing.Money(0), outcome.Order.Total)
}
