//go:generate mockgen -source=contracts.go -destination=order_mocks_test.go -package=order_test

package order

import (
	"context"

	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/service/notify"
)

// Authorizer checks role capabilities.
type Authorizer interface {
	Require(actor domain.Actor, resource, action string) error
}

// Refunder asks the payment provider to refund an order's payment.
type Refunder interface {
	Refund(ctx context.Context, orderID int64) (domain.Payment, error)
}

// Notifications sends best-effort notifications.
type Notifications interface {
	User(ctx context.Context, userID int64, n notify.Notification)
	Admins(ctx context.Context, n notify.Notification)
}
