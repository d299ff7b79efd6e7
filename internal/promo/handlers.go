package promo

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/bazaar-dev/backend-bazaar/internal/common"
	"github.com/bazaar-dev/backend-bazaar/internal/pricing"
)

// AdminHandler exposes the offer management endpoints.
type AdminHandler struct {
	Store    Store
	Validate *validator.Validate
}

type offerPayload struct {
	Code                  string           `json:"code" validate:"required,min=1,max=64"`
	Kind                  string           `json:"kind" validate:"required"`
	Percent               int32            `json:"percent"`
	AmountByCurrency      map[string]int64 `json:"amountByCurrency"`
	MaxDiscountByCurrency map[string]int64 `json:"maxDiscountByCurrency"`
	MinOrderByCurrency    map[string]int64 `json:"minOrderByCurrency"`
	MaxOrderByCurrency    map[string]int64 `json:"maxOrderByCurrency"`
	ValidFrom             time.Time        `json:"validFrom" validate:"required"`
	ValidTo               time.Time        `json:"validTo" validate:"required"`
	PerUserLimit          *int32           `json:"perUserLimit" validate:"omitempty,min=1"`
	TotalLimit            *int32           `json:"totalLimit" validate:"omitempty,min=1"`
	Shop                  string           `json:"shop" validate:"required"`
	UserType              string           `json:"userType"`
	CategoryIDs           []string         `json:"categoryIds" validate:"dive,uuid4"`
	Priority              *int32           `json:"priority"`
	Active                bool             `json:"active"`
}

// offerView is the admin-facing representation of an offer, with the
// high-risk warning surfaced alongside the row.
type offerView struct {
	Offer    Offer    `json:"offer"`
	Warnings []string `json:"warnings,omitempty"`
}

func newOfferView(offer Offer) offerView {
	view := offerView{Offer: offer}
	if IsHighRiskFullDiscount(offer) {
		view.Warnings = append(view.Warnings, "100% discount with no order-value ceiling")
	}
	return view
}

func amountMapOf(raw map[string]int64) (AmountMap, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(AmountMap, len(raw))
	for code, amount := range raw {
		currency, ok := pricing.ParseCurrency(code)
		if !ok {
			return nil, fmt.Errorf("unsupported currency %q: %w", code, ErrInvalidOffer)
		}
		out[currency] = amount
	}
	return out, nil
}

func (p offerPayload) toOffer() (Offer, error) {
	kind, err := ParseKind(p.Kind)
	if err != nil {
		return Offer{}, err
	}
	shop, err := ParseShop(p.Shop)
	if err != nil {
		return Offer{}, err
	}
	userType, err := ParseUserType(p.UserType)
	if err != nil {
		return Offer{}, err
	}
	offer := Offer{
		Code:         strings.ToUpper(strings.TrimSpace(p.Code)),
		Kind:         kind,
		Percent:      p.Percent,
		ValidFrom:    p.ValidFrom,
		ValidTo:      p.ValidTo,
		PerUserLimit: p.PerUserLimit,
		TotalLimit:   p.TotalLimit,
		Shop:         shop,
		UserType:     userType,
		Priority:     p.Priority,
		Active:       p.Active,
	}
	if offer.AmountByCurrency, err = amountMapOf(p.AmountByCurrency); err != nil {
		return Offer{}, err
	}
	if offer.MaxDiscountByCurrency, err = amountMapOf(p.MaxDiscountByCurrency); err != nil {
		return Offer{}, err
	}
	if offer.MinOrderByCurrency, err = amountMapOf(p.MinOrderByCurrency); err != nil {
		return Offer{}, err
	}
	if offer.MaxOrderByCurrency, err = amountMapOf(p.MaxOrderByCurrency); err != nil {
		return Offer{}, err
	}
	for _, raw := range p.CategoryIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return Offer{}, err
		}
		offer.CategoryIDs = append(offer.CategoryIDs, id)
	}
	return offer, nil
}

func (h *AdminHandler) decodeOffer(w http.ResponseWriter, r *http.Request) (Offer, bool) {
	var payload offerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return Offer{}, false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return Offer{}, false
		}
	}
	offer, err := payload.toOffer()
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return Offer{}, false
	}
	if err := Validate(offer); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_OFFER", err.Error(), nil)
		return Offer{}, false
	}
	return offer, true
}

// CreateOffer persists a new offer definition.
func (h *AdminHandler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	offer, ok := h.decodeOffer(w, r)
	if !ok {
		return
	}
	created, err := h.Store.CreateOffer(r.Context(), offer)
	if err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			common.JSONError(w, http.StatusConflict, "DUPLICATE_CODE", "an offer with this code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create offer", nil)
		return
	}
	common.JSONData(w, http.StatusCreated, newOfferView(created))
}

// UpdateOffer replaces an existing offer definition.
func (h *AdminHandler) UpdateOffer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "offerId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid offer id", nil)
		return
	}
	offer, ok := h.decodeOffer(w, r)
	if !ok {
		return
	}
	offer.ID = id
	updated, err := h.Store.UpdateOffer(r.Context(), offer)
	if err != nil {
		switch {
		case errors.Is(err, ErrOfferNotFound):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "offer not found", nil)
		case errors.Is(err, ErrDuplicateCode):
			common.JSONError(w, http.StatusConflict, "DUPLICATE_CODE", "an offer with this code already exists", nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update offer", nil)
		}
		return
	}
	common.JSONData(w, http.StatusOK, newOfferView(updated))
}

// GetOffer returns a single offer.
func (h *AdminHandler) GetOffer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "offerId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid offer id", nil)
		return
	}
	offer, err := h.Store.GetOffer(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrOfferNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "offer not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load offer", nil)
		return
	}
	common.JSONData(w, http.StatusOK, newOfferView(offer))
}

// ListOffers returns a page of offers.
func (h *AdminHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20, 100)
	filter := ListFilter{
		ActiveOnly: r.URL.Query().Get("active") == "true",
		Limit:      int32(perPage),
		Offset:     int32((page - 1) * perPage),
	}
	offers, total, err := h.Store.ListOffers(r.Context(), filter)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list offers", nil)
		return
	}
	views := make([]offerView, 0, len(offers))
	for _, offer := range offers {
		views = append(views, newOfferView(offer))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": views,
		"pagination": common.Pagination{
			Page:       page,
			PerPage:    perPage,
			TotalItems: int(total),
		},
	})
}

// GetOfferByCode returns a single offer by its code.
func (h *AdminHandler) GetOfferByCode(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	offer, err := h.Store.GetOfferByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, ErrOfferNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "offer not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load offer", nil)
		return
	}
	common.JSONData(w, http.StatusOK, newOfferView(offer))
}

type previewContext struct {
	At          *time.Time `json:"at"`
	Currency    string     `json:"currency" validate:"required"`
	Shop        string     `json:"shop" validate:"required"`
	UserType    string     `json:"userType"`
	Subtotal    int64      `json:"subtotal" validate:"min=0"`
	CategoryIDs []string   `json:"categoryIds" validate:"dive,uuid4"`
	PerUserUsed int32      `json:"perUserUsed" validate:"min=0"`
}

type previewRequest struct {
	Offer   offerPayload   `json:"offer" validate:"required"`
	Context previewContext `json:"context" validate:"required"`
}

// Preview dry-runs an offer definition against a hypothetical order without
// touching storage. Admins use it to sanity-check an offer before saving.
func (h *AdminHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
	}
	offer, err := req.Offer.toOffer()
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	if err := Validate(offer); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_OFFER", err.Error(), nil)
		return
	}

	currency, ok := pricing.ParseCurrency(req.Context.Currency)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unsupported currency", nil)
		return
	}
	shop, err := ParseShop(req.Context.Shop)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown shop", nil)
		return
	}
	userType, err := ParseUserType(req.Context.UserType)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown user type", nil)
		return
	}
	evalCtx := Context{
		Now:         time.Now(),
		Currency:    currency,
		Shop:        shop,
		UserType:    userType,
		Subtotal:    req.Context.Subtotal,
		PerUserUsed: req.Context.PerUserUsed,
	}
	if req.Context.At != nil {
		evalCtx.Now = *req.Context.At
	}
	for _, raw := range req.Context.CategoryIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid category id", nil)
			return
		}
		evalCtx.CategoryIDs = append(evalCtx.CategoryIDs, id)
	}

	result := Evaluate(offer, evalCtx)
	common.JSONData(w, http.StatusOK, map[string]any{
		"result":   result,
		"warnings": newOfferView(offer).Warnings,
	})
}

// DeactivateOffer soft-deletes an offer.
func (h *AdminHandler) DeactivateOffer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "offerId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid offer id", nil)
		return
	}
	if err := h.Store.DeactivateOffer(r.Context(), id); err != nil {
		if errors.Is(err, ErrOfferNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "offer not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to deactivate offer", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
