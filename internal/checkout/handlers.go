package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/bazaar-dev/backend-bazaar/internal/cart"
	"github.com/bazaar-dev/backend-bazaar/internal/common"
	"github.com/bazaar-dev/backend-bazaar/internal/promo"
)

// Handler exposes the checkout endpoint.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type checkoutRequest struct {
	CartID   string `json:"cartId" validate:"required,uuid4"`
	Shop     string `json:"shop" validate:"required"`
	UserType string `json:"userType" validate:"required"`
}

// Checkout converts a cart into an order.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
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
	cartID, err := uuid.Parse(req.CartID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
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

	outcome, err := h.Svc.Checkout(r.Context(), Input{CartID: cartID, Shop: shop, UserType: userType})
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrNotFound):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
		case errors.Is(err, ErrEmptyCart):
			common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", "cart has no priced items", nil)
		case errors.Is(err, ErrCouponNotApplicable):
			common.JSON(w, http.StatusConflict, map[string]any{
				"error": map[string]any{
					"code":    "COUPON_NOT_APPLICABLE",
					"message": "the applied coupon no longer applies",
				},
				"rejection": outcome.Rejection,
			})
		case errors.Is(err, promo.ErrOfferNotFound):
			common.JSONError(w, http.StatusConflict, "COUPON_NOT_APPLICABLE", "the applied coupon no longer exists", nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout failed", nil)
		}
		return
	}
	common.JSONData(w, http.StatusCreated, outcome)
}
