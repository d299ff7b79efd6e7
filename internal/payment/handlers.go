package payment

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/bazaar-dev/backend-bazaar/internal/common"
	"github.com/bazaar-dev/backend-bazaar/internal/order"
)

// Handler exposes the payment endpoints.
type Handler struct {
	Svc *Service
}

const signatureHeader = "X-Payment-Signature"

type createIntentRequest struct {
	OrderID string `json:"orderId"`
}

// CreateIntent opens a payment intent for a pending order.
func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	intent, err := h.Svc.CreateIntent(r.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrNotFound):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		case errors.Is(err, ErrOrderNotPayable):
			common.JSONError(w, http.StatusConflict, "NOT_PAYABLE", err.Error(), nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create payment intent", nil)
		}
		return
	}
	common.JSONData(w, http.StatusCreated, intent)
}

// Webhook receives provider settlement notifications.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unreadable body", nil)
		return
	}
	if err := h.Svc.HandleWebhook(r.Context(), payload, r.Header.Get(signatureHeader)); err != nil {
		switch {
		case errors.Is(err, ErrBadSignature):
			common.JSONError(w, http.StatusUnauthorized, "BAD_SIGNATURE", "webhook signature verification failed", nil)
		case errors.Is(err, ErrIntentNotFound):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "payment intent not found", nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to process webhook", nil)
		}
		return
	}
	common.JSONData(w, http.StatusOK, map[string]string{"status": "ok"})
}
