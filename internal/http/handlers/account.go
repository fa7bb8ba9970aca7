package handlers

import (
	"net/http"

	"palmshell-dispatch/internal/logx"
)

// AccountHandler serves the caller's own account settings.
type AccountHandler struct {
	logger logx.Logger
	svc    accountService
}

// NewAccountHandler wires the account service into HTTP handlers.
func NewAccountHandler(logger logx.Logger, svc accountService) *AccountHandler {
	return &AccountHandler{logger: orNop(logger), svc: svc}
}

// SetPushToken handles POST /fcm-token.
func (h *AccountHandler) SetPushToken(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	var req pushTokenRequest
	if !decodeJSON(h.logger, w, r, &req, false) {
		return
	}
	if err := h.svc.SetPushToken(r.Context(), a, req.FCMToken); err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, map[string]string{"message": "FCM token updated successfully"})
}
