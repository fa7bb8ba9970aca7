//go:generate mockgen -source=contracts.go -destination=payment_mocks_test.go -package=payment_test

package payment

import (
	"context"
	"time"

	"palmshell-dispatch/internal/domain"
)

// IntentRequest is what the provider needs to open a payment.
type IntentRequest struct {
	MerchantRef  string
	Method       string
	Amount       int64
	OrderCode    string
	CustomerName string
	Items        []domain.OrderItem
	ExpiresAt    time.Time
}

// Intent is an opened payment at the provider.
type Intent struct {
	Reference   string
	CheckoutURL string
	ExpiresAt   time.Time
	Raw         []byte
}

// RefundResult is the provider's answer to a refund request.
type RefundResult struct {
	Success bool
	Raw     []byte
}

// Gateway is the payment provider. It never changes order state.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	VerifyCallback(signature string, body []byte) bool
	RequestRefund(ctx context.Context, p domain.Payment) (RefundResult, error)
}

// Deduper remembers processed callbacks. Claim reports true for the first caller of a key.
type Deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// Authorizer checks role capabilities.
type Authorizer interface {
	Require(actor domain.Actor, resource, action string) error
}
