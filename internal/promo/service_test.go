package promo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bazaar-dev/backend-bazaar/internal/pricing"
	"github.com/bazaar-dev/backend-bazaar/internal/promo"
)

type fakeOfferStore struct {
	offers map[string]promo.Offer
	usage  map[string]int32 // offerID|userKey -> count
}

func newFakeOfferStore() *fakeOfferStore {
	return &fakeOfferStore{
		offers: make(map[string]promo.Offer),
		usage:  make(map[string]int32),
	}
}

func usageKey(offerID uuid.UUID, userKey string) string {
	return offerID.String() + "|" + userKey
}

func (f *fakeOfferStore) CreateOffer(_ context.Context, offer promo.Offer) (promo.Offer, error) {
	if offer.ID == uuid.Nil {
		offer.ID = uuid.New()
	}
	for _, existing := range f.offers {
		if existing.Code == offer.Code {
			return promo.Offer{}, promo.ErrDuplicateCode
		}
	}
	f.offers[offer.ID.String()] = offer
	return offer, nil
}

func (f *fakeOfferStore) UpdateOffer(_ context.Context, offer promo.Offer) (promo.Offer, error) {
	if _, ok := f.offers[offer.ID.String()]; !ok {
		return promo.Offer{}, promo.ErrOfferNotFound
	}
	f.offers[offer.ID.String()] = offer
	return offer, nil
}

func (f *fakeOfferStore) GetOffer(_ context.Context, id uuid.UUID) (promo.Offer, error) {
	if offer, ok := f.offers[id.String()]; ok {
		return offer, nil
	}
	return promo.Offer{}, promo.ErrOfferNotFound
}

func (f *fakeOfferStore) GetOfferByCode(_ context.Context, code string) (promo.Offer, error) {
	for _, offer := range f.offers {
		if offer.Code == code {
			return offer, nil
		}
	}
	return promo.Offer{}, promo.ErrOfferNotFound
}

func (f *fakeOfferStore) ListOffers(context.Context, promo.ListFilter) ([]promo.Offer, int64, error) {
	out := make([]promo.Offer, 0, len(f.offers))
	for _, offer := range f.offers {
		out = append(out, offer)
	}
	return out, int64(len(out)), nil
}

func (f *fakeOfferStore) ListActiveOffers(_ context.Context, now time.Time) ([]promo.Offer, error) {
	out := make([]promo.Offer, 0, len(f.offers))
	for _, offer := range f.offers {
		if offer.Active && !now.Before(offer.ValidFrom) && !now.After(offer.ValidTo) {
			out = append(out, offer)
		}
	}
	return out, nil
}

func (f *fakeOfferStore) DeactivateOffer(_ context.Context, id uuid.UUID) error {
	offer, ok := f.offers[id.String()]
	if !ok {
		return promo.ErrOfferNotFound
	}
	offer.Active = false
	f.offers[id.String()] = offer
	return nil
}

func (f *fakeOfferStore) PerUserUsage(_ context.Context, offerID uuid.UUID, userKey string) (int32, error) {
	return f.usage[usageKey(offerID, userKey)], nil
}

func (f *fakeOfferStore) RecordUsage(_ context.Context, offerID uuid.UUID, userKey string) error {
	offer, ok := f.offers[offerID.String()]
	if !ok {
		return promo.ErrOfferNotFound
	}
	offer.UsedCount++
	f.offers[offerID.String()] = offer
	f.usage[usageKey(offerID, userKey)]++
	return nil
}

var serviceNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func int32ptr(v int32) *int32 { return &v }

func liveOffer(code string, percent int32) promo.Offer {
	return promo.Offer{
		ID:        uuid.New(),
		Code:      code,
		Kind:      promo.KindPercent,
		Percent:   percent,
		ValidFrom: serviceNow.Add(-time.Hour),
		ValidTo:   serviceNow.Add(time.Hour),
		Shop:      promo.ShopBoth,
		Active:    true,
		CreatedAt: serviceNow.Add(-24 * time.Hour),
	}
}

func serviceContext(subtotal pricing.Money) promo.Context {
	return promo.Context{
		Currency: pricing.CurrencyAED,
		Shop:     promo.ShopA,
		Subtotal: subtotal,
	}
}

func TestEvaluateCodeAppliesLiveOffer(t *testing.T) {
	store := newFakeOfferStore()
	_, err := store.CreateOffer(context.Background(), liveOffer("SAVE10", 10))
	require.NoError(t, err)
	svc := &promo.Service{Store: store, Now: func() time.Time { return serviceNow }}

	result, offer, err := svc.EvaluateCode(context.Background(), "SAVE10", "user-1", serviceContext(10000))
	require.NoError(t, err)
	require.True(t, result.Applicable)
	require.Equal(t, pricing.Money(1000), result.Amount)
	require.Equal(t, "SAVE10", offer.Code)
}

func TestEvaluateCodeInactiveLooksMissing(t *testing.T) {
	store := newFakeOfferStore()
	offer := liveOffer("GONE", 10)
	offer.Active = false
	_, err := store.CreateOffer(context.Background(), offer)
	require.NoError(t, err)
	svc := &promo.Service{Store: store, Now: func() time.Time { return serviceNow }}

	_, _, err = svc.EvaluateCode(context.Background(), "GONE", "user-1", serviceContext(10000))
	require.ErrorIs(t, err, promo.ErrOfferNotFound)
}

func TestEvaluateCodeCountsSettledUsage(t *testing.T) {
	store := newFakeOfferStore()
	offer := liveOffer("ONCE", 10)
	offer.PerUserLimit = int32ptr(1)
	created, err := store.CreateOffer(context.Background(), offer)
	require.NoError(t, err)
	svc := &promo.Service{Store: store, Now: func() time.Time { return serviceNow }}

	result, _, err := svc.EvaluateCode(context.Background(), "ONCE", "user-1", serviceContext(10000))
	require.NoError(t, err)
	require.True(t, result.Applicable)

	require.NoError(t, store.RecordUsage(context.Background(), created.ID, "user-1"))

	result, _, err = svc.EvaluateCode(context.Background(), "ONCE", "user-1", serviceContext(10000))
	require.NoError(t, err)
	require.False(t, result.Applicable)
	require.Equal(t, promo.ReasonUsageLimitExceeded, result.Reason)

	// A different user is unaffected.
	result, _, err = svc.EvaluateCode(context.Background(), "ONCE", "user-2", serviceContext(10000))
	require.NoError(t, err)
	require.True(t, result.Applicable)
}

func TestBestAutomaticOfferPicksApplicableWinner(t *testing.T) {
	store := newFakeOfferStore()

	low := liveOffer("LOW", 5)
	low.Priority = int32ptr(1)
	_, err := store.CreateOffer(context.Background(), low)
	require.NoError(t, err)

	high := liveOffer("HIGH", 10)
	high.Priority = int32ptr(9)
	_, err = store.CreateOffer(context.Background(), high)
	require.NoError(t, err)

	// Highest priority of all, but its minimum keeps it out of this order.
	gated := liveOffer("GATED", 50)
	gated.Priority = int32ptr(99)
	gated.MinOrderByCurrency = promo.AmountMap{pricing.CurrencyAED: 1000000}
	_, err = store.CreateOffer(context.Background(), gated)
	require.NoError(t, err)

	svc := &promo.Service{Store: store, Now: func() time.Time { return serviceNow }}
	best, result, err := svc.BestAutomaticOffer(context.Background(), "user-1", serviceContext(10000))
	require.NoError(t, err)
	require.NotNil(t, best)
	require.Equal(t, "HIGH", best.Code)
	require.Equal(t, pricing.Money(1000), result.Amount)
}

func TestBestAutomaticOfferNoneApplicable(t *testing.T) {
	store := newFakeOfferStore()
	expired := liveOffer("OLD", 10)
	expired.ValidTo = serviceNow.Add(-time.Minute)
	_, err := store.CreateOffer(context.Background(), expired)
	require.NoError(t, err)

	svc := &promo.Service{Store: store, Now: func() time.Time { return serviceNow }}
	best, _, err := svc.BestAutomaticOffer(context.Background(), "user-1", serviceContext(10000))
	require.NoError(t, err)
	require.Nil(t, best)
}

func TestSettleBumpsCounters(t *testing.T) {
	store := newFakeOfferStore()
	created, err := store.CreateOffer(context.Background(), liveOffer("SETTLE", 10))
	require.NoError(t, err)
	svc := &promo.Service{Store: store, Now: func() time.Time { return serviceNow }}

	require.NoError(t, svc.Settle(context.Background(), "SETTLE", "user-1"))

	reloaded, err := store.GetOffer(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, int32(1), reloaded.UsedCount)

	used, err := store.PerUserUsage(context.Background(), created.ID, "user-1")
	require.NoError(t, err)
	require.Equal(t, int32(1), used)
}
