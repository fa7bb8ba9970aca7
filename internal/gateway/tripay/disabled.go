package tripay

import (
	"context"
	"errors"

	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/service/payment"
)

// ErrNotConfigured is returned by Disabled for every provider call.
var ErrNotConfigured = errors.New("payment provider is not configured")

// Disabled stands in for the client when no merchant credentials are set.
// Checkout and refunds fail, callbacks never verify.
type Disabled struct{}

var _ payment.Gateway = Disabled{}

func (Disabled) CreateIntent(context.Context, payment.IntentRequest) (payment.Intent, error) {
	return payment.Intent{}, ErrNotConfigured
}

func (Disabled) VerifyCallback(string, []byte) bool { return false }

func (Disabled) RequestRefund(context.Context, domain.Payment) (payment.RefundResult, error) {
	return payment.RefundResult{}, ErrNotConfigured
}
