package handlers

import (
	"errors"
	"io"
	"net/http"

	"palmshell-dispatch/internal/apperr"
	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/logx"
)

// CallbackSignatureHeader carries the gateway HMAC of the raw callback body.
const CallbackSignatureHeader = "X-Callback-Signature"

// PaymentHandler serves checkout and the gateway callback.
type PaymentHandler struct {
	logger logx.Logger
	svc    paymentService
}

// NewPaymentHandler wires the payment service into HTTP handlers.
func NewPaymentHandler(logger logx.Logger, svc paymentService) *PaymentHandler {
	return &PaymentHandler{logger: orNop(logger), svc: svc}
}

// Checkout handles POST /orders/{id}/checkout.
func (h *PaymentHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	a, id, ok := actorAndID(h.logger, w, r, "id")
	if !ok {
		return
	}
	var req checkoutRequest
	if !decodeJSON(h.logger, w, r, &req, false) {
		return
	}

	p, err := h.svc.Checkout(r.Context(), a, domain.CheckoutInput{OrderID: id, Method: req.Method})
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, toPaymentDTO(p))
}

// Callback handles POST /payments/callback. The body is read raw because the
// signature covers the exact bytes sent by the gateway.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, bodyLimit))
	if err != nil {
		writeInvalid(h.logger, w, r, "unreadable body", nil)
		return
	}

	p, err := h.svc.HandleCallback(r.Context(), domain.CallbackInput{
		Signature: r.Header.Get(CallbackSignatureHeader),
		Body:      body,
	})
	if err != nil {
		if !errors.Is(err, apperr.ErrForbidden) {
			h.logger.Warn("payment callback rejected", logx.String("req_id", reqID(r.Context())), logx.Err(err))
		}
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, map[string]any{
		"success": true,
		"status":  string(p.Status),
	})
}
