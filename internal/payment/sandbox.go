package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/bazaar-dev/backend-bazaar/internal/pricing"
)

// Sandbox is an in-process gateway used outside production. Intents succeed
// when the caller posts back a correctly signed webhook, which exercises the
// same verification path a real provider integration would.
type Sandbox struct {
	Secret string
	Now    func() time.Time
}

func (s *Sandbox) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreateIntent mints a pending intent with a random client secret.
func (s *Sandbox) CreateIntent(_ context.Context, orderID uuid.UUID, amount pricing.Money, currency pricing.Currency) (Intent, error) {
	return Intent{
		ID:           "pi_" + uuid.NewString(),
		OrderID:      orderID,
		Amount:       amount,
		Currency:     currency,
		Status:       IntentPending,
		ClientSecret: "cs_" + uuid.NewString(),
		CreatedAt:    s.now(),
	}, nil
}

// Sign computes the signature the sandbox expects over a webhook payload.
// Tests and the sandbox checkout flow use it to post valid webhooks.
func (s *Sandbox) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(s.Secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhook checks the HMAC signature and decodes the event.
func (s *Sandbox) VerifyWebhook(payload []byte, signature string) (WebhookEvent, error) {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return WebhookEvent{}, ErrBadSignature
	}
	mac := hmac.New(sha256.New, []byte(s.Secret))
	mac.Write(payload)
	if !hmac.Equal(expected, mac.Sum(nil)) {
		return WebhookEvent{}, ErrBadSignature
	}
	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return WebhookEvent{}, err
	}
	return event, nil
}
