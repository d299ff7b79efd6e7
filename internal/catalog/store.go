package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested catalog row does not exist.
var ErrNotFound = errors.New("catalog: not found")

// ListParams filters and paginates product listings.
type ListParams struct {
	Shop       Shop
	CategoryID *uuid.UUID
	Search     string
	Limit      int32
	Offset     int32
}

// Store provides read access to the catalog. The pgx implementation is
// PgStore; tests supply fakes.
type Store interface {
	ListProducts(ctx context.Context, params ListParams) ([]Product, int64, error)
	GetProductBySlug(ctx context.Context, slug string) (Product, error)
	GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// PgStore implements Store over a pgx connection pool.
type PgStore struct {
	Pool *pgxpool.Pool
}

const productColumns = `id, name, slug, category_id, shop, available, stock, prices, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p      Product
		prices []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.CategoryID, &p.Shop, &p.Available, &p.Stock, &prices, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Product{}, err
	}
	if len(prices) > 0 {
		if err := json.Unmarshal(prices, &p.Prices); err != nil {
			return Product{}, fmt.Errorf("decode prices: %w", err)
		}
	}
	return p, nil
}

// ListProducts returns a filtered page of products plus the total match count.
func (s PgStore) ListProducts(ctx context.Context, params ListParams) ([]Product, int64, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE available = TRUE`
	countQuery := `SELECT COUNT(*) FROM products WHERE available = TRUE`
	args := []any{}
	idx := 1
	if params.Shop != "" && params.Shop != ShopBoth {
		clause := fmt.Sprintf(" AND (shop = $%d OR shop = 'both')", idx)
		query += clause
		countQuery += clause
		args = append(args, params.Shop)
		idx++
	}
	if params.CategoryID != nil {
		clause := fmt.Sprintf(" AND category_id = $%d", idx)
		query += clause
		countQuery += clause
		args = append(args, *params.CategoryID)
		idx++
	}
	if params.Search != "" {
		clause := fmt.Sprintf(" AND name ILIKE '%%' || $%d || '%%'", idx)
		query += clause
		countQuery += clause
		args = append(args, params.Search)
		idx++
	}

	var total int64
	if err := s.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	products := make([]Product, 0, params.Limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

// GetProductBySlug loads a single product by its slug.
func (s PgStore) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE slug = $1`, slug)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

// GetProductsByIDs loads products for cart reconciliation.
func (s PgStore) GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]Product, 0, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ListCategories returns all categories ordered by name.
func (s PgStore) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, name, slug FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
