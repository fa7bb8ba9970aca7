package handlers

import (
	"net/http"

	"palmshell-dispatch/internal/logx"
)

// Handlers serves liveness checks and the router fallbacks.
type Handlers struct {
	Logger logx.Logger
}

// New creates a Handlers instance with the given logger.
func New(logger logx.Logger) *Handlers {
	return &Handlers{Logger: orNop(logger)}
}

// Ping answers {"message":"pong"}.
func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(h.Logger, w, r, http.StatusOK, map[string]string{"message": "pong"})
}

// HealthcheckHead answers 204 for load balancer health checks.
func (h *Handlers) HealthcheckHead(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// NotFound returns a JSON 404 error for unknown routes.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(h.Logger, w, r, http.StatusNotFound, errResponse{Error: "route not found", Kind: "not_found"})
}

// MethodNotAllowed answers a known path called with the wrong verb.
func (h *Handlers) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(h.Logger, w, r, http.StatusMethodNotAllowed, errResponse{
		Error: "method " + r.Method + " not allowed",
		Kind:  "method_not_allowed",
	})
}
