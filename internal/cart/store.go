package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazaar-dev/backend-bazaar/internal/pricing"
)

// ErrNotFound indicates the requested cart or item could not be located.
var ErrNotFound = errors.New("cart: not found")

// Cart is the persisted cart header.
type Cart struct {
	ID            uuid.UUID        `json:"id"`
	SessionToken  string           `json:"sessionToken"`
	Currency      pricing.Currency `json:"currency"`
	AppliedCoupon string           `json:"appliedCoupon,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// Item is a persisted cart line before catalog join.
type Item struct {
	ID        uuid.UUID `json:"id"`
	CartID    uuid.UUID `json:"cartId"`
	ProductID uuid.UUID `json:"productId"`
	Qty       int32     `json:"qty"`
	Note      string    `json:"note,omitempty"`
}

// Store persists carts and their items. The pgx implementation is PgStore;
// tests supply fakes.
type Store interface {
	CreateCart(ctx context.Context, sessionToken string, currency pricing.Currency) (Cart, error)
	GetCart(ctx context.Context, id uuid.UUID) (Cart, error)
	SetCurrency(ctx context.Context, id uuid.UUID, currency pricing.Currency) error
	SetCoupon(ctx context.Context, id uuid.UUID, code string) error
	DeleteCart(ctx context.Context, id uuid.UUID) error

	ListItems(ctx context.Context, cartID uuid.UUID) ([]Item, error)
	FindItemByProduct(ctx context.Context, cartID, productID uuid.UUID) (Item, error)
	InsertItem(ctx context.Context, item Item) (Item, error)
	UpdateItemQty(ctx context.Context, itemID uuid.UUID, qty int32) error
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error
	DeleteItems(ctx context.Context, cartID uuid.UUID, itemIDs []uuid.UUID) error
}

// PgStore implements Store over a pgx connection pool.
type PgStore struct {
	Pool *pgxpool.Pool
}

const cartColumns = `id, session_token, currency, COALESCE(applied_coupon, ''), created_at, updated_at`

func scanCart(row pgx.Row) (Cart, error) {
	var c Cart
	err := row.Scan(&c.ID, &c.SessionToken, &c.Currency, &c.AppliedCoupon, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// CreateCart inserts a new cart for the session.
func (s PgStore) CreateCart(ctx context.Context, sessionToken string, currency pricing.Currency) (Cart, error) {
	row := s.Pool.QueryRow(ctx,
		`INSERT INTO carts (id, session_token, currency, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())
		 RETURNING `+cartColumns,
		uuid.New(), sessionToken, currency)
	return scanCart(row)
}

// GetCart loads a cart by id.
func (s PgStore) GetCart(ctx context.Context, id uuid.UUID) (Cart, error) {
	c, err := scanCart(s.Pool.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, err
	}
	return c, nil
}

// SetCurrency switches the cart's active currency.
func (s PgStore) SetCurrency(ctx context.Context, id uuid.UUID, currency pricing.Currency) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE carts SET currency = $2, updated_at = now() WHERE id = $1`, id, currency)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCoupon attaches a coupon code to the cart; an empty code clears it.
func (s PgStore) SetCoupon(ctx context.Context, id uuid.UUID, code string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE carts SET applied_coupon = NULLIF($2, ''), updated_at = now() WHERE id = $1`, id, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCart removes a cart and its items.
func (s PgStore) DeleteCart(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, id); err != nil {
		return err
	}
	_, err := s.Pool.Exec(ctx, `DELETE FROM carts WHERE id = $1`, id)
	return err
}

// ListItems returns the cart's items in insertion order.
func (s PgStore) ListItems(ctx context.Context, cartID uuid.UUID) ([]Item, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, cart_id, product_id, qty, COALESCE(note, '') FROM cart_items WHERE cart_id = $1 ORDER BY created_at`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Qty, &it.Note); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// FindItemByProduct locates an existing line for the product.
func (s PgStore) FindItemByProduct(ctx context.Context, cartID, productID uuid.UUID) (Item, error) {
	var it Item
	err := s.Pool.QueryRow(ctx,
		`SELECT id, cart_id, product_id, qty, COALESCE(note, '') FROM cart_items WHERE cart_id = $1 AND product_id = $2`,
		cartID, productID).Scan(&it.ID, &it.CartID, &it.ProductID, &it.Qty, &it.Note)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	return it, nil
}

// InsertItem creates a new cart line.
func (s PgStore) InsertItem(ctx context.Context, item Item) (Item, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO cart_items (id, cart_id, product_id, qty, note, created_at) VALUES ($1, $2, $3, $4, NULLIF($5, ''), now())`,
		item.ID, item.CartID, item.ProductID, item.Qty, item.Note)
	return item, err
}

// UpdateItemQty sets the quantity for a line.
func (s PgStore) UpdateItemQty(ctx context.Context, itemID uuid.UUID, qty int32) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE cart_items SET qty = $2 WHERE id = $1`, itemID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteItem removes a single line scoped to its cart.
func (s PgStore) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
	return err
}

// DeleteItems removes a batch of lines scoped to their cart.
func (s PgStore) DeleteItems(ctx context.Context, cartID uuid.UUID, itemIDs []uuid.UUID) error {
	if len(itemIDs) == 0 {
		return nil
	}
	_, err := s.Pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1 AND id = ANY($2)`, cartID, itemIDs)
	return err
}
