package handlers

import (
	"net/http"
	"strconv"

	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/logx"
)

// OrderHandler serves order endpoints for mitra and admin.
type OrderHandler struct {
	logger logx.Logger
	svc    orderService
}

// NewOrderHandler wires the order service into HTTP handlers.
func NewOrderHandler(logger logx.Logger, svc orderService) *OrderHandler {
	return &OrderHandler{logger: orNop(logger), svc: svc}
}

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	var req createOrderRequest
	if !decodeJSON(h.logger, w, r, &req, false) {
		return
	}

	o, err := h.svc.Create(r.Context(), a, req.toInput())
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	w.Header().Set("Location", "/orders/"+strconv.FormatInt(o.ID, 10))
	writeJSON(h.logger, w, r, http.StatusCreated, toOrderDTO(o))
}

// List handles GET /orders?status=&limit=&offset=.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}

	list, err := h.svc.List(r.Context(), a, domain.ListOrdersFilter{
		Status: domain.OrderStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, toOrderDTOs(list))
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	o, err := h.svc.Get(r.Context(), a, id)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, toOrderDTO(o))
}

// Approve handles POST /admin/orders/{id}/approve.
func (h *OrderHandler) Approve(w http.ResponseWriter, r *http.Request) {
	a, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	o, err := h.svc.Approve(r.Context(), a, id)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, toOrderDTO(o))
}

// Cancel handles POST /orders/{id}/cancel. The body is optional.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	a, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req cancelOrderRequest
	if !decodeJSON(h.logger, w, r, &req, true) {
		return
	}

	res, err := h.svc.Cancel(r.Context(), a, id, req.Reason)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, cancelDTO{
		Order:        toOrderDTO(res.Order),
		RefundStatus: res.RefundStatus,
		RefundError:  res.RefundError,
	})
}

func (h *OrderHandler) actorAndID(w http.ResponseWriter, r *http.Request) (domain.Actor, int64, bool) {
	return actorAndID(h.logger, w, r, "id")
}

func actorAndID(logger logx.Logger, w http.ResponseWriter, r *http.Request, param string) (domain.Actor, int64, bool) {
	a, err := actor(r)
	if err != nil {
		writeError(logger, w, r, err)
		return domain.Actor{}, 0, false
	}
	id, err := idFromURL(r, param)
	if err != nil {
		writeError(logger, w, r, err)
		return domain.Actor{}, 0, false
	}
	return a, id, true
}
