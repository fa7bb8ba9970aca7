package handlers

import (
	"net/http"
	"strconv"

	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/logx"
)

// DispatchHandler serves driver assignment, delivery progress and waybills.
type DispatchHandler struct {
	logger logx.Logger
	svc    dispatchService
}

// NewDispatchHandler wires the dispatch service into HTTP handlers.
func NewDispatchHandler(logger logx.Logger, svc dispatchService) *DispatchHandler {
	return &DispatchHandler{logger: orNop(logger), svc: svc}
}

// Assign handles POST /admin/orders/{id}/assign.
func (h *DispatchHandler) Assign(w http.ResponseWriter, r *http.Request) {
	a, id, ok := actorAndID(h.logger, w, r, "id")
	if !ok {
		return
	}
	var req assignDriverRequest
	if !decodeJSON(h.logger, w, r, &req, false) {
		return
	}

	res, err := h.svc.AssignDriver(r.Context(), a, domain.AssignDriverInput{OrderID: id, DriverID: req.DriverID})
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, assignDTO{
		Delivery: toDeliveryDTO(res.Delivery),
		Order:    toOrderDTO(res.Order),
		Waybill:  toWaybillDTO(res.Waybill),
	})
}

// UpdateStatus handles PUT /driver/deliveries/{id}/status.
func (h *DispatchHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	a, id, ok := actorAndID(h.logger, w, r, "id")
	if !ok {
		return
	}
	var req deliveryStatusRequest
	if !decodeJSON(h.logger, w, r, &req, false) {
		return
	}

	d, err := h.svc.UpdateDeliveryStatus(r.Context(), a, req.toInput(id))
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, toDeliveryDTO(d))
}

// Complete handles POST /driver/deliveries/{id}/complete.
func (h *DispatchHandler) Complete(w http.ResponseWriter, r *http.Request) {
	a, id, ok := actorAndID(h.logger, w, r, "id")
	if !ok {
		return
	}
	var req positionRequest
	if !decodeJSON(h.logger, w, r, &req, false) {
		return
	}

	res, err := h.svc.CompleteDelivery(r.Context(), a, domain.CompleteDeliveryInput{
		DeliveryID: id,
		Location:   domain.Location{Lat: *req.Lat, Lng: *req.Lng},
	})
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, toCompleteDTO(res))
}

// ListDrivers handles GET /admin/drivers?available=true.
func (h *DispatchHandler) ListDrivers(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	onlyAvailable := false
	if s := r.URL.Query().Get("available"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			writeInvalid(h.logger, w, r, "invalid available", nil)
			return
		}
		onlyAvailable = v
	}

	list, err := h.svc.ListDrivers(r.Context(), a, onlyAvailable)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, toDriverDTOs(list))
}

// SetAvailability handles PUT /driver/availability.
func (h *DispatchHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	var req availabilityRequest
	if !decodeJSON(h.logger, w, r, &req, false) {
		return
	}

	u, err := h.svc.SetAvailability(r.Context(), a, domain.Availability(req.Availability))
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, toDriverDTO(u))
}

// Assignments handles GET /driver/deliveries.
func (h *DispatchHandler) Assignments(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	list, err := h.svc.ListAssignments(r.Context(), a)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, toDeliveryDTOs(list))
}

// CreateWaybill handles POST /admin/orders/{id}/waybill.
func (h *DispatchHandler) CreateWaybill(w http.ResponseWriter, r *http.Request) {
	a, id, ok := actorAndID(h.logger, w, r, "id")
	if !ok {
		return
	}
	var req waybillRequest
	if !decodeJSON(h.logger, w, r, &req, true) {
		return
	}

	wb, err := h.svc.CreateWaybill(r.Context(), a, id, req.Notes)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, toWaybillDTO(wb))
}

// GetWaybill handles GET /orders/{id}/waybill.
func (h *DispatchHandler) GetWaybill(w http.ResponseWriter, r *http.Request) {
	a, id, ok := actorAndID(h.logger, w, r, "id")
	if !ok {
		return
	}
	wb, err := h.svc.GetWaybill(r.Context(), a, id)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, toWaybillDTO(wb))
}
