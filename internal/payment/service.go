package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bazaar-dev/backend-bazaar/internal/order"
)

// ErrOrderNotPayable is returned when an intent is requested for an order
// that already left the pending state.
var ErrOrderNotPayable = errors.New("payment: order is not payable")

// Orders is the slice of the order layer the payment flow needs.
type Orders interface {
	GetOrder(ctx context.Context, id uuid.UUID) (order.Order, error)
	Transition(ctx context.Context, id uuid.UUID, next order.Status, note string) (order.Order, error)
}

// Coupons settles coupon usage once payment lands.
type Coupons interface {
	Settle(ctx context.Context, code, userKey string) error
}

// Service drives the payment lifecycle: intent creation before payment,
// webhook settlement after.
type Service struct {
	Provider Provider
	Store    Store
	Orders   Orders
	Coupons  Coupons
}

// CreateIntent opens a payment intent for a pending order.
func (s *Service) CreateIntent(ctx context.Context, orderID uuid.UUID) (Intent, error) {
	if s == nil || s.Provider == nil || s.Store == nil || s.Orders == nil {
		return Intent{}, errors.New("payment service not configured")
	}
	o, err := s.Orders.GetOrder(ctx, orderID)
	if err != nil {
		return Intent{}, err
	}
	if o.Status != order.StatusPending {
		return Intent{}, fmt.Errorf("order is %s: %w", o.Status, ErrOrderNotPayable)
	}
	intent, err := s.Provider.CreateIntent(ctx, o.ID, o.Total, o.Currency)
	if err != nil {
		return Intent{}, err
	}
	if err := s.Store.SaveIntent(ctx, intent); err != nil {
		return Intent{}, err
	}
	return intent, nil
}

// HandleWebhook verifies and settles a provider notification. A succeeded
// intent confirms the order and settles the coupon redemption; usage counters
// only move here, never at evaluation time.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s == nil || s.Provider == nil || s.Store == nil || s.Orders == nil {
		return errors.New("payment service not configured")
	}
	event, err := s.Provider.VerifyWebhook(payload, signature)
	if err != nil {
		return err
	}
	intent, err := s.Store.GetIntent(ctx, event.IntentID)
	if err != nil {
		return err
	}
	if intent.OrderID != event.OrderID {
		return fmt.Errorf("intent %s does not belong to order %s: %w", event.IntentID, event.OrderID, ErrIntentNotFound)
	}
	if intent.Status != IntentPending {
		// Duplicate delivery; the first one already settled.
		return nil
	}

	switch event.Status {
	case IntentSucceeded:
		o, err := s.Orders.Transition(ctx, intent.OrderID, order.StatusConfirmed, "payment received")
		if err != nil {
			return err
		}
		if s.Coupons != nil && o.CouponCode != "" {
			if err := s.Coupons.Settle(ctx, o.CouponCode, o.SessionToken); err != nil {
				return err
			}
		}
		return s.Store.UpdateStatus(ctx, intent.ID, IntentSucceeded)
	case IntentFailed:
		return s.Store.UpdateStatus(ctx, intent.ID, IntentFailed)
	default:
		return fmt.Errorf("unexpected intent status %q", event.Status)
	}
}
