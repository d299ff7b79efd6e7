package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bazaar-dev/backend-bazaar/internal/catalog"
	"github.com/bazaar-dev/backend-bazaar/internal/pricing"
	"github.com/bazaar-dev/backend-bazaar/internal/promo"
)

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("cart: invalid input")

// ProductSource loads catalog rows for the products referenced by a cart.
type ProductSource interface {
	GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Product, error)
}

// CouponEvaluator resolves a coupon code against an order context.
type CouponEvaluator interface {
	EvaluateCode(ctx context.Context, code, userKey string, evalCtx promo.Context) (promo.Result, promo.Offer, error)
}

// Service encapsulates cart domain operations. All pricing views are computed
// fresh from the stored lines and the active currency; nothing is cached
// across currency switches.
type Service struct {
	Store    Store
	Products ProductSource
	Coupons  CouponEvaluator
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// View is the reconciled state of a cart in its active currency.
type View struct {
	Cart     Cart          `json:"cart"`
	Priced   []Line        `json:"priced"`
	Unpriced []Line        `json:"unpriced"`
	Subtotal pricing.Money `json:"subtotal"`
}

// Create opens a new cart for the session in the given currency.
func (s *Service) Create(ctx context.Context, sessionToken string, currency pricing.Currency) (Cart, error) {
	if s == nil || s.Store == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	if sessionToken == "" {
		sessionToken = uuid.NewString()
	}
	return s.Store.CreateCart(ctx, sessionToken, currency)
}

// View loads the cart and reconciles it against its active currency.
func (s *Service) View(ctx context.Context, cartID uuid.UUID) (View, error) {
	if s == nil || s.Store == nil {
		return View{}, errors.New("cart service not configured")
	}
	c, err := s.Store.GetCart(ctx, cartID)
	if err != nil {
		return View{}, err
	}
	return s.buildView(ctx, c)
}

func (s *Service) buildView(ctx context.Context, c Cart) (View, error) {
	lines, err := s.loadLines(ctx, c.ID)
	if err != nil {
		return View{}, err
	}
	split := Partition(lines, c.Currency)
	return View{
		Cart:     c,
		Priced:   split.Priced,
		Unpriced: split.Unpriced,
		Subtotal: Subtotal(split.Priced, c.Currency),
	}, nil
}

// loadLines joins stored items with their catalog rows. Items whose product
// vanished from the catalog surface as unpriced lines.
func (s *Service) loadLines(ctx context.Context, cartID uuid.UUID) ([]Line, error) {
	items, err := s.Store.ListItems(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.Products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	lines := make([]Line, 0, len(items))
	for _, it := range items {
		line := Line{
			ID:        it.ID,
			ProductID: it.ProductID,
			Qty:       int(it.Qty),
			Note:      it.Note,
		}
		if p, ok := byID[it.ProductID]; ok {
			line.Name = p.Name
			line.CategoryID = p.CategoryID
			line.Prices = p.Prices
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// AddItem inserts or increments a cart line.
func (s *Service) AddItem(ctx context.Context, cartID, productID uuid.UUID, qty int, note string) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	if qty <= 0 {
		return fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	if _, err := s.Store.GetCart(ctx, cartID); err != nil {
		return err
	}
	products, err := s.Products.GetProductsByIDs(ctx, []uuid.UUID{productID})
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return fmt.Errorf("product not found: %w", ErrInvalidInput)
	}
	product := products[0]
	if !product.Available || product.Stock <= 0 {
		return fmt.Errorf("product unavailable: %w", ErrInvalidInput)
	}

	existing, err := s.Store.FindItemByProduct(ctx, cartID, productID)
	if err == nil {
		return s.Store.UpdateItemQty(ctx, existing.ID, existing.Qty+int32(qty))
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	_, err = s.Store.InsertItem(ctx, Item{
		CartID:    cartID,
		ProductID: productID,
		Qty:       int32(qty),
		Note:      note,
	})
	return err
}

// UpdateQty sets a line's quantity. A quantity of zero removes the line.
func (s *Service) UpdateQty(ctx context.Context, cartID, itemID uuid.UUID, qty int) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	if qty < 0 {
		return fmt.Errorf("qty must not be negative: %w", ErrInvalidInput)
	}
	if qty == 0 {
		return s.Store.DeleteItem(ctx, cartID, itemID)
	}
	return s.Store.UpdateItemQty(ctx, itemID, int32(qty))
}

// RemoveItem deletes a cart line.
func (s *Service) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	return s.Store.DeleteItem(ctx, cartID, itemID)
}

// SwitchCurrency changes the active currency and returns the freshly
// reconciled view. The recomputation is total: partitions and subtotal are
// rebuilt from scratch so no stale pricing survives the switch.
func (s *Service) SwitchCurrency(ctx context.Context, cartID uuid.UUID, currency pricing.Currency) (View, error) {
	if s == nil || s.Store == nil {
		return View{}, errors.New("cart service not configured")
	}
	if err := s.Store.SetCurrency(ctx, cartID, currency); err != nil {
		return View{}, err
	}
	c, err := s.Store.GetCart(ctx, cartID)
	if err != nil {
		return View{}, err
	}
	return s.buildView(ctx, c)
}

// PurgeUnpriced removes every line without a price in the active currency and
// returns the resulting view. Calling it again is a no-op.
func (s *Service) PurgeUnpriced(ctx context.Context, cartID uuid.UUID) (View, error) {
	if s == nil || s.Store == nil {
		return View{}, errors.New("cart service not configured")
	}
	c, err := s.Store.GetCart(ctx, cartID)
	if err != nil {
		return View{}, err
	}
	lines, err := s.loadLines(ctx, c.ID)
	if err != nil {
		return View{}, err
	}
	split := Partition(lines, c.Currency)
	if len(split.Unpriced) > 0 {
		ids := make([]uuid.UUID, 0, len(split.Unpriced))
		for _, line := range split.Unpriced {
			ids = append(ids, line.ID)
		}
		if err := s.Store.DeleteItems(ctx, c.ID, ids); err != nil {
			return View{}, err
		}
	}
	return View{
		Cart:     c,
		Priced:   split.Priced,
		Unpriced: nil,
		Subtotal: Subtotal(split.Priced, c.Currency),
	}, nil
}

// CouponOutcome reports the evaluation result for a coupon application.
type CouponOutcome struct {
	Result promo.Result  `json:"result"`
	Code   string        `json:"code"`
	Total  pricing.Money `json:"total"`
}

// ApplyCoupon evaluates a coupon against the current cart state and, when
// applicable, attaches it. Rejections are returned as data, not errors.
func (s *Service) ApplyCoupon(ctx context.Context, cartID uuid.UUID, code string, shop promo.Shop, userType promo.UserType) (CouponOutcome, error) {
	if s == nil || s.Store == nil || s.Coupons == nil {
		return CouponOutcome{}, errors.New("cart service not configured")
	}
	if code == "" {
		return CouponOutcome{}, fmt.Errorf("coupon code required: %w", ErrInvalidInput)
	}
	c, err := s.Store.GetCart(ctx, cartID)
	if err != nil {
		return CouponOutcome{}, err
	}
	view, err := s.buildView(ctx, c)
	if err != nil {
		return CouponOutcome{}, err
	}
	evalCtx := promo.Context{
		Now:         s.now(),
		Currency:    c.Currency,
		Shop:        shop,
		UserType:    userType,
		Subtotal:    view.Subtotal,
		CategoryIDs: categoriesOf(view.Priced),
	}
	result, offer, err := s.Coupons.EvaluateCode(ctx, code, c.SessionToken, evalCtx)
	if err != nil {
		return CouponOutcome{}, err
	}
	outcome := CouponOutcome{Result: result, Code: offer.Code}
	outcome.Total = view.Subtotal - result.Amount
	if outcome.Total < 0 {
		outcome.Total = 0
	}
	if !result.Applicable {
		return outcome, nil
	}
	if err := s.Store.SetCoupon(ctx, c.ID, offer.Code); err != nil {
		return CouponOutcome{}, err
	}
	return outcome, nil
}

// Clear drops the cart and all of its lines. Checkout calls this once the
// order snapshot is committed.
func (s *Service) Clear(ctx context.Context, cartID uuid.UUID) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	return s.Store.DeleteCart(ctx, cartID)
}

// RemoveCoupon clears an applied coupon.
func (s *Service) RemoveCoupon(ctx context.Context, cartID uuid.UUID) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	return s.Store.SetCoupon(ctx, cartID, "")
}

func categoriesOf(lines []Line) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	out := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if line.CategoryID == uuid.Nil {
			continue
		}
		if _, ok := seen[line.CategoryID]; ok {
			continue
		}
		seen[line.CategoryID] = struct{}{}
		out = append(out, line.CategoryID)
	}
	return out
}
