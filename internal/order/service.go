package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidTransition is returned for status moves the lifecycle forbids.
var ErrInvalidTransition = errors.New("order: invalid status transition")

// Service enforces the status lifecycle on top of the store.
type Service struct {
	Store Store
}

// Detail is an order with its snapshot lines and status timeline.
type Detail struct {
	Order  Order   `json:"order"`
	Items  []Item  `json:"items"`
	Events []Event `json:"events"`
}

// Get loads an order with its lines and timeline.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Detail, error) {
	if s == nil || s.Store == nil {
		return Detail{}, errors.New("order service not configured")
	}
	o, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	items, err := s.Store.ListItems(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	events, err := s.Store.ListEvents(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Order: o, Items: items, Events: events}, nil
}

// List returns the session's orders.
func (s *Service) List(ctx context.Context, sessionToken string, limit, offset int32) ([]Order, int64, error) {
	if s == nil || s.Store == nil {
		return nil, 0, errors.New("order service not configured")
	}
	return s.Store.ListOrdersBySession(ctx, sessionToken, limit, offset)
}

// Transition moves the order to the requested status after checking the
// lifecycle rules.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, next Status, note string) (Order, error) {
	if s == nil || s.Store == nil {
		return Order{}, errors.New("order service not configured")
	}
	o, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !o.Status.CanTransition(next) {
		return Order{}, fmt.Errorf("%s -> %s: %w", o.Status, next, ErrInvalidTransition)
	}
	if err := s.Store.SetStatus(ctx, id, next, note); err != nil {
		return Order{}, err
	}
	return s.Store.GetOrder(ctx, id)
}

// Cancel cancels the order if its current status allows it.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, note string) (Order, error) {
	return s.Transition(ctx, id, StatusCancelled, note)
}
