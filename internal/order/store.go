package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazaar-dev/backend-bazaar/internal/pricing"
)

// ErrNotFound indicates the requested order could not be located.
var ErrNotFound = errors.New("order: not found")

// Order is an immutable pricing snapshot taken at checkout. Later catalog or
// offer edits never change these numbers.
type Order struct {
	ID           uuid.UUID        `json:"id"`
	Number       string           `json:"number"`
	SessionToken string           `json:"sessionToken"`
	Currency     pricing.Currency `json:"currency"`
	Status       Status           `json:"status"`
	Shop         string           `json:"shop"`
	Subtotal     pricing.Money    `json:"subtotal"`
	Discount     pricing.Money    `json:"discount"`
	Total        pricing.Money    `json:"total"`
	CouponCode   string           `json:"couponCode,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// Item is one snapshotted order line.
type Item struct {
	ID        uuid.UUID     `json:"id"`
	OrderID   uuid.UUID     `json:"orderId"`
	ProductID uuid.UUID     `json:"productId"`
	Name      string        `json:"name"`
	UnitPrice pricing.Money `json:"unitPrice"`
	Qty       int32         `json:"qty"`
	LineTotal pricing.Money `json:"lineTotal"`
}

// Event is one entry in an order's status timeline.
type Event struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"orderId"`
	Status    Status    `json:"status"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists orders, their lines, and their status timeline.
type Store interface {
	CreateOrder(ctx context.Context, o Order, items []Item) (Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (Order, error)
	ListOrdersBySession(ctx context.Context, sessionToken string, limit, offset int32) ([]Order, int64, error)
	ListItems(ctx context.Context, orderID uuid.UUID) ([]Item, error)
	SetStatus(ctx context.Context, orderID uuid.UUID, status Status, note string) error
	ListEvents(ctx context.Context, orderID uuid.UUID) ([]Event, error)
}

// PgStore implements Store over a pgx connection pool.
type PgStore struct {
	Pool *pgxpool.Pool
}

const orderColumns = `id, number, session_token, currency, status, shop,
	subtotal, discount, total, COALESCE(coupon_code, ''), created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Number, &o.SessionToken, &o.Currency, &o.Status, &o.Shop,
		&o.Subtotal, &o.Discount, &o.Total, &o.CouponCode, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// CreateOrder inserts the order header, its lines, and the initial timeline
// event in one transaction.
func (s PgStore) CreateOrder(ctx context.Context, o Order, items []Item) (Order, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	created, err := scanOrder(tx.QueryRow(ctx, `
		INSERT INTO orders (id, number, session_token, currency, status, shop,
			subtotal, discount, total, coupon_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), now(), now())
		RETURNING `+orderColumns,
		o.ID, o.Number, o.SessionToken, o.Currency, o.Status, o.Shop,
		o.Subtotal, o.Discount, o.Total, o.CouponCode))
	if err != nil {
		return Order{}, err
	}

	for _, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, name, unit_price, qty, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			item.ID, created.ID, item.ProductID, item.Name, item.UnitPrice, item.Qty, item.LineTotal); err != nil {
			return Order{}, err
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO order_events (id, order_id, status, note, created_at)
		VALUES ($1, $2, $3, NULL, now())`,
		uuid.New(), created.ID, created.Status); err != nil {
		return Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return created, nil
}

// GetOrder loads an order header by id.
func (s PgStore) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	o, err := scanOrder(s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	return o, nil
}

// ListOrdersBySession returns the session's orders, newest first.
func (s PgStore) ListOrdersBySession(ctx context.Context, sessionToken string, limit, offset int32) ([]Order, int64, error) {
	var total int64
	if err := s.Pool.QueryRow(ctx,
		`SELECT count(*) FROM orders WHERE session_token = $1`, sessionToken).Scan(&total); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE session_token = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		sessionToken, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}

// ListItems returns the order's snapshotted lines.
func (s PgStore) ListItems(ctx context.Context, orderID uuid.UUID) ([]Item, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, order_id, product_id, name, unit_price, qty, line_total FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.UnitPrice, &it.Qty, &it.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// SetStatus moves the order and appends a timeline event in one transaction.
func (s PgStore) SetStatus(ctx context.Context, orderID uuid.UUID, status Status, note string) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, orderID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO order_events (id, order_id, status, note, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), now())`,
		uuid.New(), orderID, status, note); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ListEvents returns the order's status timeline, oldest first.
func (s PgStore) ListEvents(ctx context.Context, orderID uuid.UUID) ([]Event, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, order_id, status, COALESCE(note, ''), created_at FROM order_events WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Status, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
