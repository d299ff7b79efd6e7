package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/bazaar-dev/backend-bazaar/internal/common"
	"github.com/bazaar-dev/backend-bazaar/internal/pricing"
	"github.com/bazaar-dev/backend-bazaar/internal/promo"
)

// Handler exposes cart endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

func (h *Handler) validate(v any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(v)
}

func cartIDFromRequest(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "cartId"))
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart operation failed", nil)
	}
}

type createCartRequest struct {
	SessionToken string `json:"sessionToken"`
	Currency     string `json:"currency" validate:"required"`
}

// CreateCart opens a new cart.
func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	var req createCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if err := h.validate(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	currency, ok := pricing.ParseCurrency(req.Currency)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unsupported currency", nil)
		return
	}
	c, err := h.Svc.Create(r.Context(), req.SessionToken, currency)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, c)
}

// GetCart returns the reconciled cart view.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	cartID, err := cartIDFromRequest(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	view, err := h.Svc.View(r.Context(), cartID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

type addItemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid4"`
	Qty       int    `json:"qty" validate:"required,min=1"`
	Note      string `json:"note" validate:"max=500"`
}

// AddItem adds a product to the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	cartID, err := cartIDFromRequest(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if err := h.validate(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	if err := h.Svc.AddItem(r.Context(), cartID, productID, req.Qty, req.Note); err != nil {
		writeServiceError(w, err)
		return
	}
	view, err := h.Svc.View(r.Context(), cartID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

type updateQtyRequest struct {
	Qty int `json:"qty" validate:"min=0"`
}

// UpdateItem changes a line's quantity; zero removes the line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	cartID, err := cartIDFromRequest(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	var req updateQtyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if err := h.validate(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if err := h.Svc.UpdateQty(r.Context(), cartID, itemID, req.Qty); err != nil {
		writeServiceError(w, err)
		return
	}
	view, err := h.Svc.View(r.Context(), cartID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

// RemoveItem deletes a line from the cart.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cartID, err := cartIDFromRequest(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	if err := h.Svc.RemoveItem(r.Context(), cartID, itemID); err != nil {
		writeServiceError(w, err)
		return
	}
	view, err := h.Svc.View(r.Context(), cartID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

type switchCurrencyRequest struct {
	Currency string `json:"currency" validate:"required"`
}

// SwitchCurrency changes the cart's active currency and returns the
// recomputed view, including the items now lacking a price.
func (h *Handler) SwitchCurrency(w http.ResponseWriter, r *http.Request) {
	cartID, err := cartIDFromRequest(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	var req switchCurrencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	currency, ok := pricing.ParseCurrency(req.Currency)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unsupported currency", nil)
		return
	}
	view, err := h.Svc.SwitchCurrency(r.Context(), cartID, currency)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

// PurgeUnpriced removes items without a price in the active currency.
func (h *Handler) PurgeUnpriced(w http.ResponseWriter, r *http.Request) {
	cartID, err := cartIDFromRequest(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	view, err := h.Svc.PurgeUnpriced(r.Context(), cartID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

type applyCouponRequest struct {
	Code     string `json:"code" validate:"required,min=1,max=64"`
	Shop     string `json:"shop" validate:"required"`
	UserType string `json:"userType" validate:"required"`
}

// ApplyCoupon evaluates and attaches a coupon. An inapplicable coupon is a
// 200 with the rejection reason in the body, not an error status.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	cartID, err := cartIDFromRequest(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	var req applyCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if err := h.validate(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	shop, err := promo.ParseShop(req.Shop)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown shop", nil)
		return
	}
	userType, err := promo.ParseUserType(req.UserType)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown user type", nil)
		return
	}
	outcome, err := h.Svc.ApplyCoupon(r.Context(), cartID, strings.TrimSpace(req.Code), shop, userType)
	if err != nil {
		if errors.Is(err, promo.ErrOfferNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "coupon not found", nil)
			return
		}
		writeServiceError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, outcome)
}

// RemoveCoupon detaches the applied coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	cartID, err := cartIDFromRequest(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	if err := h.Svc.RemoveCoupon(r.Context(), cartID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
