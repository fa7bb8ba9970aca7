//go:generate mockgen -source=contracts.go -destination=notify_mocks_test.go -package=notify_test

package notify

import (
	"context"
	"errors"
)

// Notifier delivers a notification to one user. Callers treat it as best-effort.
type Notifier interface {
	Notify(ctx context.Context, userID int64, n Notification) error
}

// EventProducer publishes one encoded event under a partition key.
type EventProducer interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// TokenLookup resolves the push token of a user; "" means the user has none.
type TokenLookup interface {
	PushToken(ctx context.Context, userID int64) (string, error)
}

// PushSender delivers a notification to a device token.
type PushSender interface {
	Send(ctx context.Context, token string, n Notification) error
}

// ErrPermanent marks a failure that will not go away on retry.
var ErrPermanent = errors.New("permanent notification failure")
