package payment

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps live intents until the provider settles them. Settled intents
// only matter for the duration of the checkout, so a TTL'd redis entry is
// enough; orders carry the durable payment outcome.
type Store interface {
	SaveIntent(ctx context.Context, intent Intent) error
	GetIntent(ctx context.Context, id string) (Intent, error)
	UpdateStatus(ctx context.Context, id string, status IntentStatus) error
}

// RedisStore implements Store on redis with a fixed TTL.
type RedisStore struct {
	Client *redis.Client
	TTL    time.Duration
}

func intentKey(id string) string {
	return "payment:intent:" + id
}

// SaveIntent writes the intent under its TTL.
func (s RedisStore) SaveIntent(ctx context.Context, intent Intent) error {
	payload, err := json.Marshal(intent)
	if err != nil {
		return err
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return s.Client.Set(ctx, intentKey(intent.ID), payload, ttl).Err()
}

// GetIntent loads a live intent.
func (s RedisStore) GetIntent(ctx context.Context, id string) (Intent, error) {
	raw, err := s.Client.Get(ctx, intentKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Intent{}, ErrIntentNotFound
		}
		return Intent{}, err
	}
	var intent Intent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return Intent{}, err
	}
	return intent, nil
}

// UpdateStatus rewrites the stored intent with the new status, keeping the
// remaining TTL.
func (s RedisStore) UpdateStatus(ctx context.Context, id string, status IntentStatus) error {
	intent, err := s.GetIntent(ctx, id)
	if err != nil {
		return err
	}
	intent.Status = status
	payload, err := json.Marshal(intent)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, intentKey(id), payload, redis.KeepTTL).Err()
}
