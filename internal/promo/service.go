package promo

import (
	"context"
	"errors"
	"time"
)

// Service layers usage tracking and automatic-offer selection on top of the
// pure evaluation engine.
type Service struct {
	Store Store
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// EvaluateCode resolves a coupon code and evaluates it against the order
// context, including the caller's settled usage. Inactive offers behave like
// missing ones so deactivation is indistinguishable from deletion.
func (s *Service) EvaluateCode(ctx context.Context, code, userKey string, evalCtx Context) (Result, Offer, error) {
	if s == nil || s.Store == nil {
		return Result{}, Offer{}, errors.New("promo service not configured")
	}
	offer, err := s.Store.GetOfferByCode(ctx, code)
	if err != nil {
		return Result{}, Offer{}, err
	}
	if !offer.Active {
		return Result{}, Offer{}, ErrOfferNotFound
	}
	if evalCtx.Now.IsZero() {
		evalCtx.Now = s.now()
	}
	if userKey != "" && offer.PerUserLimit != nil {
		used, err := s.Store.PerUserUsage(ctx, offer.ID, userKey)
		if err != nil {
			return Result{}, Offer{}, err
		}
		evalCtx.PerUserUsed = used
	}
	return Evaluate(offer, evalCtx), offer, nil
}

// BestAutomaticOffer evaluates every live offer against the order context and
// returns the winner among the applicable ones, or nil when none apply.
func (s *Service) BestAutomaticOffer(ctx context.Context, userKey string, evalCtx Context) (*Offer, Result, error) {
	if s == nil || s.Store == nil {
		return nil, Result{}, errors.New("promo service not configured")
	}
	if evalCtx.Now.IsZero() {
		evalCtx.Now = s.now()
	}
	offers, err := s.Store.ListActiveOffers(ctx, evalCtx.Now)
	if err != nil {
		return nil, Result{}, err
	}

	applicable := make([]Offer, 0, len(offers))
	results := make(map[string]Result, len(offers))
	for _, offer := range offers {
		oc := evalCtx
		if userKey != "" && offer.PerUserLimit != nil {
			used, err := s.Store.PerUserUsage(ctx, offer.ID, userKey)
			if err != nil {
				return nil, Result{}, err
			}
			oc.PerUserUsed = used
		}
		result := Evaluate(offer, oc)
		if result.Applicable {
			applicable = append(applicable, offer)
			results[offer.ID.String()] = result
		}
	}

	best := SelectBest(applicable)
	if best == nil {
		return nil, Result{}, nil
	}
	return best, results[best.ID.String()], nil
}

// Settle records a completed redemption against the offer and user.
func (s *Service) Settle(ctx context.Context, code, userKey string) error {
	if s == nil || s.Store == nil {
		return errors.New("promo service not configured")
	}
	offer, err := s.Store.GetOfferByCode(ctx, code)
	if err != nil {
		return err
	}
	return s.Store.RecordUsage(ctx, offer.ID, userKey)
}
