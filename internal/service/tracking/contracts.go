//go:generate mockgen -source=contracts.go -destination=tracking_mocks_test.go -package=tracking_test

package tracking

import (
	"context"

	"palmshell-dispatch/internal/domain"
)

// Authorizer checks role capabilities.
type Authorizer interface {
	Require(actor domain.Actor, resource, action string) error
}

// PositionCache holds the latest position per delivery.
type PositionCache interface {
	Put(ctx context.Context, p domain.TrackPoint) error
	Latest(ctx context.Context, deliveryID int64) (*domain.TrackPoint, error)
}
