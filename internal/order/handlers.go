package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bazaar-dev/backend-bazaar/internal/common"
)

// Handler exposes the customer-facing order endpoints. The session token
// header scopes listings; order ids are unguessable so detail reads only
// require the id.
type Handler struct {
	Svc *Service
}

const sessionHeader = "X-Session-Token"

func orderIDFromRequest(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "orderId"))
}

// List returns the session's orders, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	sessionToken := strings.TrimSpace(r.Header.Get(sessionHeader))
	if sessionToken == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "session token header is required", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20, 100)
	orders, total, err := h.Svc.List(r.Context(), sessionToken, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": orders,
		"pagination": common.Pagination{
			Page:       page,
			PerPage:    perPage,
			TotalItems: int(total),
		},
	})
}

// Get returns an order with its lines and status timeline.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDFromRequest(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	detail, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	common.JSONData(w, http.StatusOK, detail)
}

type cancelRequest struct {
	Note string `json:"note"`
}

// Cancel cancels the order when its lifecycle allows it.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDFromRequest(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var req cancelRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	o, err := h.Svc.Cancel(r.Context(), id, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		case errors.Is(err, ErrInvalidTransition):
			common.JSONError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to cancel order", nil)
		}
		return
	}
	common.JSONData(w, http.StatusOK, o)
}

// AdminHandler exposes the back-office status management endpoint.
type AdminHandler struct {
	Svc *Service
}

type patchStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

// PatchStatus moves an order along its lifecycle.
func (h *AdminHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDFromRequest(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var req patchStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	status, err := ParseStatus(req.Status)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	o, err := h.Svc.Transition(r.Context(), id, status, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		case errors.Is(err, ErrInvalidTransition):
			common.JSONError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update order", nil)
		}
		return
	}
	common.JSONData(w, http.StatusOK, o)
}
