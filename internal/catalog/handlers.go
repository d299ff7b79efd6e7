package catalog

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bazaar-dev/backend-bazaar/internal/common"
)

// Handler exposes catalog read endpoints.
type Handler struct {
	Svc *Service
}

// Products lists products with shop/category/search filters.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20, 100)
	query := r.URL.Query()

	shop := Shop(strings.TrimSpace(query.Get("shop")))
	switch shop {
	case "", ShopA, ShopB, ShopBoth:
	default:
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown shop", nil)
		return
	}

	var categoryID *uuid.UUID
	if raw := strings.TrimSpace(query.Get("categoryId")); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid category id", nil)
			return
		}
		categoryID = &parsed
	}

	result, err := h.Svc.ListProducts(r.Context(), shop, categoryID, strings.TrimSpace(query.Get("q")), page, perPage)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list products", nil)
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(result.Total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data": result.Products,
		"pagination": common.Pagination{
			Page:       page,
			PerPage:    perPage,
			TotalItems: int(result.Total),
		},
	})
}

// ProductDetail returns a single product by slug.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	if slug == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "slug is required", nil)
		return
	}
	product, err := h.Svc.GetProduct(r.Context(), slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load product", nil)
		return
	}
	common.JSONData(w, http.StatusOK, product)
}

// Categories lists all categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	categories, err := h.Svc.ListCategories(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list categories", nil)
		return
	}
	common.JSONData(w, http.StatusOK, categories)
}
