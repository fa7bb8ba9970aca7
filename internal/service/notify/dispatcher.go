package notify

import (
	"context"

	"palmshell-dispatch/internal/logx"
	"palmshell-dispatch/internal/ports/ordertx"
)

// Dispatcher sends notifications on behalf of the core services.
// Failures are logged and never returned.
type Dispatcher struct {
	notifier Notifier
	repo     ordertx.Runner
	logger   logx.Logger
}

// NewDispatcher returns a Dispatcher. repo is used to look up admin ids.
func NewDispatcher(n Notifier, repo ordertx.Runner, logger logx.Logger) *Dispatcher {
	return &Dispatcher{notifier: n, repo: repo, logger: logger}
}

// User notifies one user.
func (d *Dispatcher) User(ctx context.Context, userID int64, n Notification) {
	if d == nil || d.notifier == nil || userID <= 0 {
		return
	}
	if err := d.notifier.Notify(ctx, userID, n); err != nil {
		d.logger.Warn("notification failed",
			logx.String("event", "notify_failed"),
			logx.Int64("user_id", userID),
			logx.String("kind", n.Kind),
			logx.Err(err),
		)
	}
}

// Admins notifies every admin user.
func (d *Dispatcher) Admins(ctx context.Context, n Notification) {
	if d == nil || d.notifier == nil || d.repo == nil {
		return
	}
	var ids []int64
	err := d.repo.View(ctx, func(q ordertx.Repository) error {
		var err error
		ids, err = q.ListAdminIDs(ctx)
		return err
	})
	if err != nil {
		d.logger.Warn("admin lookup failed",
			logx.String("event", "notify_failed"),
			logx.String("kind", n.Kind),
			logx.Err(err),
		)
		return
	}
	for _, id := range ids {
		d.User(ctx, id, n)
	}
}
