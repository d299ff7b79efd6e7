package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ServiceConfig wires the catalog service dependencies.
type ServiceConfig struct {
	Store        Store
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
}

// Service serves catalog reads with an optional cache in front of the store.
type Service struct {
	store        Store
	cache        *Cache
	defaultLimit int
	maxLimit     int
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog store is required")
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	return &Service{
		store:        cfg.Store,
		cache:        cfg.Cache,
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
	}, nil
}

// ProductPage is a paginated product listing.
type ProductPage struct {
	Products []Product
	Total    int64
}

// ListProducts returns a filtered page of products.
func (s *Service) ListProducts(ctx context.Context, shop Shop, categoryID *uuid.UUID, search string, page, perPage int) (ProductPage, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = s.defaultLimit
	}
	if perPage > s.maxLimit {
		perPage = s.maxLimit
	}
	params := ListParams{
		Shop:       shop,
		CategoryID: categoryID,
		Search:     search,
		Limit:      int32(perPage),
		Offset:     int32((page - 1) * perPage),
	}

	key := listCacheKey(params)
	var cached ProductPage
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	products, total, err := s.store.ListProducts(ctx, params)
	if err != nil {
		return ProductPage{}, err
	}
	result := ProductPage{Products: products, Total: total}
	_ = s.cache.SetJSON(ctx, key, result)
	return result, nil
}

// GetProduct loads a product by slug, bypassing the cache.
func (s *Service) GetProduct(ctx context.Context, slug string) (Product, error) {
	return s.store.GetProductBySlug(ctx, slug)
}

// ListCategories returns all categories, cached.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	const key = "catalog:categories"
	var cached []Category
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.cache.SetJSON(ctx, key, categories)
	return categories, nil
}

func listCacheKey(params ListParams) string {
	category := ""
	if params.CategoryID != nil {
		category = params.CategoryID.String()
	}
	return fmt.Sprintf("catalog:products:%s:%s:%s:%d:%d", params.Shop, category, params.Search, params.Limit, params.Offset)
}
