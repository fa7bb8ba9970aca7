//go:generate mockgen -source=contracts.go -destination=dispatch_mocks_test.go -package=dispatch_test

package dispatch

import (
	"context"

	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/service/notify"
)

// Authorizer checks role capabilities.
type Authorizer interface {
	Require(actor domain.Actor, resource, action string) error
}

// DistanceEstimator estimates the road trip to a destination.
type DistanceEstimator interface {
	Estimate(ctx context.Context, dest domain.Location) (domain.Estimate, error)
}

// Notifications sends best-effort notifications.
type Notifications interface {
	User(ctx context.Context, userID int64, n notify.Notification)
	Admins(ctx context.Context, n notify.Notification)
}

// PositionCache receives the final track point of a completed delivery.
type PositionCache interface {
	Put(ctx context.Context, p domain.TrackPoint) error
}
