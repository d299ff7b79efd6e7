package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/bazaar-dev/backend-bazaar/internal/catalog"
	"github.com/bazaar-dev/backend-bazaar/internal/pricing"
)

type fakeStore struct {
	products   []catalog.Product
	categories []catalog.Category
	listCalls  int
}

func (f *fakeStore) ListProducts(_ context.Context, params catalog.ListParams) ([]catalog.Product, int64, error) {
	f.listCalls++
	matched := make([]catalog.Product, 0, len(f.products))
	for _, p := range f.products {
		if params.Shop != "" && params.Shop != catalog.ShopBoth && !p.SoldOn(params.Shop) {
			continue
		}
		matched = append(matched, p)
	}
	total := int64(len(matched))
	if int(params.Offset) >= len(matched) {
		return nil, total, nil
	}
	matched = matched[params.Offset:]
	if int(params.Limit) < len(matched) {
		matched = matched[:params.Limit]
	}
	return matched, total, nil
}

func (f *fakeStore) GetProductBySlug(_ context.Context, slug string) (catalog.Product, error) {
	for _, p := range f.products {
		if p.Slug == slug {
			return p, nil
		}
	}
	return catalog.Product{}, catalog.ErrNotFound
}

func (f *fakeStore) GetProductsByIDs(_ context.Context, ids []uuid.UUID) ([]catalog.Product, error) {
	out := make([]catalog.Product, 0, len(ids))
	for _, p := range f.products {
		for _, id := range ids {
			if p.ID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) ListCategories(context.Context) ([]catalog.Category, error) {
	return f.categories, nil
}

func seedStore() *fakeStore {
	return &fakeStore{
		products: []catalog.Product{
			{
				ID:        uuid.New(),
				Name:      "Oud Perfume",
				Slug:      "oud-perfume",
				Shop:      catalog.ShopA,
				Available: true,
				Stock:     10,
				Prices:    pricing.PriceMap{pricing.CurrencyAED: 25000, pricing.CurrencyINR: 560000},
			},
			{
				ID:        uuid.New(),
				Name:      "Dates Box",
				Slug:      "dates-box",
				Shop:      catalog.ShopBoth,
				Available: true,
				Stock:     50,
				Prices:    pricing.PriceMap{pricing.CurrencyAED: 4500},
			},
		},
		categories: []catalog.Category{{ID: uuid.New(), Name: "Gourmet", Slug: "gourmet"}},
	}
}

func newCachedService(t *testing.T, store catalog.Store) *catalog.Service {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc, err := catalog.NewService(catalog.ServiceConfig{
		Store:        store,
		Cache:        catalog.NewCache(client, time.Minute),
		DefaultLimit: 20,
		MaxLimit:     100,
	})
	require.NoError(t, err)
	return svc
}

func TestListProductsCaches(t *testing.T) {
	store := seedStore()
	svc := newCachedService(t, store)
	ctx := context.Background()

	first, err := svc.ListProducts(ctx, catalog.ShopA, nil, "", 1, 20)
	require.NoError(t, err)
	require.Len(t, first.Products, 2)

	second, err := svc.ListProducts(ctx, catalog.ShopA, nil, "", 1, 20)
	require.NoError(t, err)
	require.Equal(t, first.Total, second.Total)
	require.Equal(t, 1, store.listCalls, "second listing should come from cache")
}

func TestProductsHandler(t *testing.T) {
	svc := newCachedService(t, seedStore())
	handler := &catalog.Handler{Svc: svc}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?shop=shop_a&limit=1", nil)
	rec := httptest.NewRecorder()
	handler.Products(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "2", rec.Header().Get("X-Total-Count"))

	var resp struct {
		Data []catalog.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, "Oud Perfume", resp.Data[0].Name)
}

func TestProductsHandlerRejectsUnknownShop(t *testing.T) {
	svc := newCachedService(t, seedStore())
	handler := &catalog.Handler{Svc: svc}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?shop=mall", nil)
	rec := httptest.NewRecorder()
	handler.Products(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCategoriesCached(t *testing.T) {
	store := seedStore()
	svc := newCachedService(t, store)
	ctx := context.Background()

	first, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	store.categories = nil
	second, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, second, 1, "categories should be served from cache")
}
