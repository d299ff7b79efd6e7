package promo

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrOfferNotFound indicates no offer exists for the given id or code.
var ErrOfferNotFound = errors.New("promo: offer not found")

// ErrDuplicateCode indicates another offer already owns the code.
var ErrDuplicateCode = errors.New("promo: duplicate code")

// ListFilter narrows admin offer listings.
type ListFilter struct {
	ActiveOnly bool
	Limit      int32
	Offset     int32
}

// Store persists offers and their usage counters.
type Store interface {
	CreateOffer(ctx context.Context, offer Offer) (Offer, error)
	UpdateOffer(ctx context.Context, offer Offer) (Offer, error)
	GetOffer(ctx context.Context, id uuid.UUID) (Offer, error)
	GetOfferByCode(ctx context.Context, code string) (Offer, error)
	ListOffers(ctx context.Context, filter ListFilter) ([]Offer, int64, error)
	ListActiveOffers(ctx context.Context, now time.Time) ([]Offer, error)
	DeactivateOffer(ctx context.Context, id uuid.UUID) error

	PerUserUsage(ctx context.Context, offerID uuid.UUID, userKey string) (int32, error)
	RecordUsage(ctx context.Context, offerID uuid.UUID, userKey string) error
}

// PgStore implements Store over a pgx connection pool.
type PgStore struct {
	Pool *pgxpool.Pool
}

const offerColumns = `id, code, kind, percent,
	amount_by_currency, max_discount_by_currency, min_order_by_currency, max_order_by_currency,
	valid_from, valid_to, per_user_limit, total_limit, used_count,
	shop, COALESCE(user_type, ''), category_ids, priority, active, created_at`

func scanOffer(row pgx.Row) (Offer, error) {
	var (
		o                                    Offer
		amounts, maxDisc, minOrder, maxOrder []byte
	)
	err := row.Scan(
		&o.ID, &o.Code, &o.Kind, &o.Percent,
		&amounts, &maxDisc, &minOrder, &maxOrder,
		&o.ValidFrom, &o.ValidTo, &o.PerUserLimit, &o.TotalLimit, &o.UsedCount,
		&o.Shop, &o.UserType, &o.CategoryIDs, &o.Priority, &o.Active, &o.CreatedAt,
	)
	if err != nil {
		return Offer{}, err
	}
	for _, pair := range []struct {
		raw []byte
		dst *AmountMap
	}{
		{amounts, &o.AmountByCurrency},
		{maxDisc, &o.MaxDiscountByCurrency},
		{minOrder, &o.MinOrderByCurrency},
		{maxOrder, &o.MaxOrderByCurrency},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return Offer{}, err
		}
	}
	return o, nil
}

func marshalAmounts(m AmountMap) ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreateOffer inserts a new offer. Codes are stored upper-cased so lookups
// are case-insensitive.
func (s PgStore) CreateOffer(ctx context.Context, offer Offer) (Offer, error) {
	if offer.ID == uuid.Nil {
		offer.ID = uuid.New()
	}
	offer.Code = strings.ToUpper(strings.TrimSpace(offer.Code))

	amounts, err := marshalAmounts(offer.AmountByCurrency)
	if err != nil {
		return Offer{}, err
	}
	maxDisc, err := marshalAmounts(offer.MaxDiscountByCurrency)
	if err != nil {
		return Offer{}, err
	}
	minOrder, err := marshalAmounts(offer.MinOrderByCurrency)
	if err != nil {
		return Offer{}, err
	}
	maxOrder, err := marshalAmounts(offer.MaxOrderByCurrency)
	if err != nil {
		return Offer{}, err
	}

	row := s.Pool.QueryRow(ctx, `
		INSERT INTO offers (
			id, code, kind, percent,
			amount_by_currency, max_discount_by_currency, min_order_by_currency, max_order_by_currency,
			valid_from, valid_to, per_user_limit, total_limit,
			shop, user_type, category_ids, priority, active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, NULLIF($14, ''), $15, $16, $17, now(), now()
		)
		RETURNING `+offerColumns,
		offer.ID, offer.Code, offer.Kind, offer.Percent,
		amounts, maxDisc, minOrder, maxOrder,
		offer.ValidFrom, offer.ValidTo, offer.PerUserLimit, offer.TotalLimit,
		offer.Shop, string(offer.UserType), offer.CategoryIDs, offer.Priority, offer.Active,
	)
	created, err := scanOffer(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Offer{}, ErrDuplicateCode
		}
		return Offer{}, err
	}
	return created, nil
}

// UpdateOffer replaces the mutable fields of an offer.
func (s PgStore) UpdateOffer(ctx context.Context, offer Offer) (Offer, error) {
	offer.Code = strings.ToUpper(strings.TrimSpace(offer.Code))

	amounts, err := marshalAmounts(offer.AmountByCurrency)
	if err != nil {
		return Offer{}, err
	}
	maxDisc, err := marshalAmounts(offer.MaxDiscountByCurrency)
	if err != nil {
		return Offer{}, err
	}
	minOrder, err := marshalAmounts(offer.MinOrderByCurrency)
	if err != nil {
		return Offer{}, err
	}
	maxOrder, err := marshalAmounts(offer.MaxOrderByCurrency)
	if err != nil {
		return Offer{}, err
	}

	row := s.Pool.QueryRow(ctx, `
		UPDATE offers SET
			code = $2, kind = $3, percent = $4,
			amount_by_currency = $5, max_discount_by_currency = $6,
			min_order_by_currency = $7, max_order_by_currency = $8,
			valid_from = $9, valid_to = $10, per_user_limit = $11, total_limit = $12,
			shop = $13, user_type = NULLIF($14, ''), category_ids = $15,
			priority = $16, active = $17, updated_at = now()
		WHERE id = $1
		RETURNING `+offerColumns,
		offer.ID, offer.Code, offer.Kind, offer.Percent,
		amounts, maxDisc, minOrder, maxOrder,
		offer.ValidFrom, offer.ValidTo, offer.PerUserLimit, offer.TotalLimit,
		offer.Shop, string(offer.UserType), offer.CategoryIDs, offer.Priority, offer.Active,
	)
	updated, err := scanOffer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Offer{}, ErrOfferNotFound
		}
		if isUniqueViolation(err) {
			return Offer{}, ErrDuplicateCode
		}
		return Offer{}, err
	}
	return updated, nil
}

// GetOffer loads an offer by id.
func (s PgStore) GetOffer(ctx context.Context, id uuid.UUID) (Offer, error) {
	o, err := scanOffer(s.Pool.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Offer{}, ErrOfferNotFound
		}
		return Offer{}, err
	}
	return o, nil
}

// GetOfferByCode loads an offer by its upper-cased code.
func (s PgStore) GetOfferByCode(ctx context.Context, code string) (Offer, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	o, err := scanOffer(s.Pool.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Offer{}, ErrOfferNotFound
		}
		return Offer{}, err
	}
	return o, nil
}

// ListOffers returns a page of offers, newest first.
func (s PgStore) ListOffers(ctx context.Context, filter ListFilter) ([]Offer, int64, error) {
	where := ""
	if filter.ActiveOnly {
		where = ` WHERE active`
	}
	var total int64
	if err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM offers`+where).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT `+offerColumns+` FROM offers`+where+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	offers := make([]Offer, 0)
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, 0, err
		}
		offers = append(offers, o)
	}
	return offers, total, rows.Err()
}

// ListActiveOffers returns every active offer whose window covers now.
// Automatic-offer selection runs over this set.
func (s PgStore) ListActiveOffers(ctx context.Context, now time.Time) ([]Offer, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+offerColumns+` FROM offers WHERE active AND valid_from <= $1 AND valid_to >= $1`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	offers := make([]Offer, 0)
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

// DeactivateOffer soft-deletes an offer. Historical orders keep referencing
// the row.
func (s PgStore) DeactivateOffer(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE offers SET active = false, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOfferNotFound
	}
	return nil
}

// PerUserUsage counts settled redemptions of the offer by one user key.
func (s PgStore) PerUserUsage(ctx context.Context, offerID uuid.UUID, userKey string) (int32, error) {
	var n int32
	err := s.Pool.QueryRow(ctx,
		`SELECT count(*) FROM offer_usages WHERE offer_id = $1 AND user_key = $2`, offerID, userKey).Scan(&n)
	return n, err
}

// RecordUsage settles one redemption: an append-only usage row plus the
// aggregate counter bump, in a single transaction.
func (s PgStore) RecordUsage(ctx context.Context, offerID uuid.UUID, userKey string) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO offer_usages (id, offer_id, user_key, used_at) VALUES ($1, $2, $3, now())`,
		uuid.New(), offerID, userKey); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE offers SET used_count = used_count + 1, updated_at = now() WHERE id = $1`, offerID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
