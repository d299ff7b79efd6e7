package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bazaar-dev/backend-bazaar/internal/pricing"
)

var (
	// ErrIntentNotFound indicates no live intent exists for the id.
	ErrIntentNotFound = errors.New("payment: intent not found")
	// ErrBadSignature indicates the webhook payload failed verification.
	ErrBadSignature = errors.New("payment: bad webhook signature")
)

// IntentStatus is the provider-side state of a payment intent.
type IntentStatus string

const (
	IntentPending   IntentStatus = "pending"
	IntentSucceeded IntentStatus = "succeeded"
	IntentFailed    IntentStatus = "failed"
)

// Intent is a provider payment handle for one order.
type Intent struct {
	ID           string           `json:"id"`
	OrderID      uuid.UUID        `json:"orderId"`
	Amount       pricing.Money    `json:"amount"`
	Currency     pricing.Currency `json:"currency"`
	Status       IntentStatus     `json:"status"`
	ClientSecret string           `json:"clientSecret,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// WebhookEvent is a provider notification about an intent.
type WebhookEvent struct {
	IntentID string       `json:"intentId"`
	OrderID  uuid.UUID    `json:"orderId"`
	Status   IntentStatus `json:"status"`
}

// Provider abstracts the upstream payment gateway.
type Provider interface {
	CreateIntent(ctx context.Context, orderID uuid.UUID, amount pricing.Money, currency pricing.Currency) (Intent, error)
	VerifyWebhook(payload []byte, signature string) (WebhookEvent, error)
}
