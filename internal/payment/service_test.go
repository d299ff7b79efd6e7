package payment_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/bazaar-dev/backend-bazaar/internal/order"
	"github.com/bazaar-dev/backend-bazaar/internal/payment"
	"github.com/bazaar-dev/backend-bazaar/internal/pricing"
)

type fakeOrders struct {
	orders      map[uuid.UUID]order.Order
	transitions []order.Status
}

func (f *fakeOrders) GetOrder(_ context.Context, id uuid.UUID) (order.Order, error) {
	if o, ok := f.orders[id]; ok {
		return o, nil
	}
	return order.Order{}, order.ErrNotFound
}

func (f *fakeOrders) Transition(_ context.Context, id uuid.UUID, next order.Status, _ string) (order.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	if !o.Status.CanTransition(next) {
		return order.Order{}, order.ErrInvalidTransition
	}
	o.Status = next
	f.orders[id] = o
	f.transitions = append(f.transitions, next)
	return o, nil
}

type fakeCoupons struct {
	settled []string
}

func (f *fakeCoupons) Settle(_ context.Context, code, _ string) error {
	f.settled = append(f.settled, code)
	return nil
}

func newPaymentFixture(t *testing.T, o order.Order) (*payment.Service, *payment.Sandbox, *fakeOrders, *fakeCoupons) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	provider := &payment.Sandbox{
		Secret: "test-secret",
		Now:    func() time.Time { return time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC) },
	}
	orders := &fakeOrders{orders: map[uuid.UUID]order.Order{o.ID: o}}
	coupons := &fakeCoupons{}
	svc := &payment.Service{
		Provider: provider,
		Store:    payment.RedisStore{Client: client, TTL: time.Minute},
		Orders:   orders,
		Coupons:  coupons,
	}
	return svc, provider, orders, coupons
}

func pendingOrder() order.Order {
	return order.Order{
		ID:           uuid.New(),
		Number:       "BZ-1",
		SessionToken: "sess",
		Currency:     pricing.CurrencyAED,
		Status:       order.StatusPending,
		Total:        8500,
		CouponCode:   "SAVE15",
	}
}

func signedWebhook(t *testing.T, provider *payment.Sandbox, event payment.WebhookEvent) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return payload, provider.Sign(payload)
}

func TestCreateIntentForPendingOrder(t *testing.T) {
	o := pendingOrder()
	svc, _, _, _ := newPaymentFixture(t, o)

	intent, err := svc.CreateIntent(context.Background(), o.ID)
	require.NoError(t, err)
	require.Equal(t, o.ID, intent.OrderID)
	require.Equal(t, pricing.Money(8500), intent.Amount)
	require.Equal(t, payment.IntentPending, intent.Status)
	require.NotEmpty(t, intent.ClientSecret)
}

func TestCreateIntentRejectsConfirmedOrder(t *testing.T) {
	o := pendingOrder()
	o.Status = order.StatusConfirmed
	svc, _, _, _ := newPaymentFixture(t, o)

	_, err := svc.CreateIntent(context.Background(), o.ID)
	require.ErrorIs(t, err, payment.ErrOrderNotPayable)
}

func TestWebhookSuccessConfirmsOrderAndSettlesCoupon(t *testing.T) {
	o := pendingOrder()
	svc, provider, orders, coupons := newPaymentFixture(t, o)

	intent, err := svc.CreateIntent(context.Background(), o.ID)
	require.NoError(t, err)

	payload, sig := signedWebhook(t, provider, payment.WebhookEvent{
		IntentID: intent.ID, OrderID: o.ID, Status: payment.IntentSucceeded,
	})
	require.NoError(t, svc.HandleWebhook(context.Background(), payload, sig))

	require.Equal(t, []order.Status{order.StatusConfirmed}, orders.transitions)
	require.Equal(t, []string{"SAVE15"}, coupons.settled)
}

func TestWebhookDuplicateDeliveryIsIdempotent(t *testing.T) {
	o := pendingOrder()
	svc, provider, orders, coupons := newPaymentFixture(t, o)

	intent, err := svc.CreateIntent(context.Background(), o.ID)
	require.NoError(t, err)

	payload, sig := signedWebhook(t, provider, payment.WebhookEvent{
		IntentID: intent.ID, OrderID: o.ID, Status: payment.IntentSucceeded,
	})
	require.NoError(t, svc.HandleWebhook(context.Background(), payload, sig))
	require.NoError(t, svc.HandleWebhook(context.Background(), payload, sig))

	require.Len(t, orders.transitions, 1)
	require.Len(t, coupons.settled, 1)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	o := pendingOrder()
	svc, provider, _, _ := newPaymentFixture(t, o)

	intent, err := svc.CreateIntent(context.Background(), o.ID)
	require.NoError(t, err)

	payload, _ := signedWebhook(t, provider, payment.WebhookEvent{
		IntentID: intent.ID, OrderID: o.ID, Status: payment.IntentSucceeded,
	})
	err = svc.HandleWebhook(context.Background(), payload, "deadbeef")
	require.ErrorIs(t, err, payment.ErrBadSignature)
}

func TestWebhookFailureLeavesOrderPending(t *testing.T) {
	o := pendingOrder()
	svc, provider, orders, coupons := newPaymentFixture(t, o)

	intent, err := svc.CreateIntent(context.Background(), o.ID)
	require.NoError(t, err)

	payload, sig := signedWebhook(t, provider, payment.WebhookEvent{
		IntentID: intent.ID, OrderID: o.ID, Status: payment.IntentFailed,
	})
	require.NoError(t, svc.HandleWebhook(context.Background(), payload, sig))

	require.Empty(t, orders.transitions)
	require.Empty(t, coupons.settled)
	require.Equal(t, order.StatusPending, orders.orders[o.ID].Status)
}
