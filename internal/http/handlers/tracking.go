package handlers

import (
	"net/http"

	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/logx"
)

// TrackingHandler serves GPS pings and the tracking view.
type TrackingHandler struct {
	logger logx.Logger
	svc    trackingService
}

// NewTrackingHandler wires the tracking service into HTTP handlers.
func NewTrackingHandler(logger logx.Logger, svc trackingService) *TrackingHandler {
	return &TrackingHandler{logger: orNop(logger), svc: svc}
}

// RecordPosition handles POST /driver/deliveries/{id}/position.
func (h *TrackingHandler) RecordPosition(w http.ResponseWriter, r *http.Request) {
	a, id, ok := actorAndID(h.logger, w, r, "id")
	if !ok {
		return
	}
	var req positionRequest
	if !decodeJSON(h.logger, w, r, &req, false) {
		return
	}

	p, err := h.svc.RecordPosition(r.Context(), a, domain.RecordPositionInput{
		DeliveryID: id,
		Location:   domain.Location{Lat: *req.Lat, Lng: *req.Lng},
	})
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusCreated, toTrackPointDTO(p))
}

// Tracking handles GET /orders/{id}/tracking.
func (h *TrackingHandler) Tracking(w http.ResponseWriter, r *http.Request) {
	a, id, ok := actorAndID(h.logger, w, r, "id")
	if !ok {
		return
	}
	v, err := h.svc.Tracking(r.Context(), a, id)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, toTrackingDTO(v))
}

// History handles GET /deliveries/{id}/track?limit=.
func (h *TrackingHandler) History(w http.ResponseWriter, r *http.Request) {
	a, id, ok := actorAndID(h.logger, w, r, "id")
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	list, err := h.svc.History(r.Context(), a, id, limit)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, toTrackPointDTOs(list))
}
