package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"palmshell-dispatch/internal/apperr"
	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/logx"
)

// CatalogHandler serves the product catalog.
type CatalogHandler struct {
	logger logx.Logger
	svc    catalogService
}

// NewCatalogHandler wires the catalog service into HTTP handlers.
func NewCatalogHandler(logger logx.Logger, svc catalogService) *CatalogHandler {
	return &CatalogHandler{logger: orNop(logger), svc: svc}
}

// List handles GET /products?search=&category=&in_stock=&limit=&offset=.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	f := domain.ProductFilter{
		Search:   r.URL.Query().Get("search"),
		Category: r.URL.Query().Get("category"),
	}
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	if f.Offset, err = queryInt(r, "offset"); err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	if v := r.URL.Query().Get("in_stock"); v != "" {
		if f.InStock, err = strconv.ParseBool(v); err != nil {
			writeError(h.logger, w, r, fmt.Errorf("%w: invalid in_stock", apperr.ErrInvalid))
			return
		}
	}

	list, err := h.svc.ListProducts(r.Context(), a, f)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, toProductDTOs(list))
}

// Get handles GET /products/{id}.
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, id, ok := actorAndID(h.logger, w, r, "id")
	if !ok {
		return
	}
	p, err := h.svc.GetProduct(r.Context(), a, id)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, toProductDTO(p))
}
