package notify

import (
	"context"
	"errors"
	"fmt"

	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/logx"
	"palmshell-dispatch/internal/ports/ordertx"
)

// Processor handles notification events in the worker.
type Processor struct {
	tokens  TokenLookup
	push    PushSender
	logger  logx.Logger
	factory *actionFactory
}

// NewProcessor returns a Processor sending through push.
func NewProcessor(tokens TokenLookup, push PushSender, logger logx.Logger) *Processor {
	p := &Processor{tokens: tokens, push: push, logger: logger}
	p.factory = newActionFactory(p.onPush, p.onAudit)
	return p
}

// Handle processes one event. Unknown kinds are ignored. A returned error
// wrapping ErrPermanent must not be retried.
func (p *Processor) Handle(ctx context.Context, e Event) error {
	fn, ok := p.factory.get(e.Kind)
	if !ok {
		p.logger.Debug("notification kind ignored", logx.String("kind", e.Kind))
		return nil
	}
	return fn(ctx, e)
}

func (p *Processor) onPush(ctx context.Context, e Event) error {
	token, err := p.tokens.PushToken(ctx, e.UserID)
	if err != nil {
		return fmt.Errorf("lookup push token of user %d: %w", e.UserID, err)
	}
	if token == "" {
		p.logger.Debug("no push token, skipping",
			logx.Int64("user_id", e.UserID),
			logx.String("kind", e.Kind),
		)
		return nil
	}

	if err := p.push.Send(ctx, token, e.Notification()); err != nil {
		if errors.Is(err, ErrPermanent) {
			p.logger.Warn("push rejected",
				logx.String("event", "push_rejected"),
				logx.Int64("user_id", e.UserID),
				logx.Err(err),
			)
		}
		return err
	}

	p.logger.Info("push sent",
		logx.String("event", "push_sent"),
		logx.Int64("user_id", e.UserID),
		logx.String("kind", e.Kind),
	)
	return nil
}

func (p *Processor) onAudit(_ context.Context, e Event) error {
	p.logger.Warn(e.Title,
		logx.String("event", "notification_audit"),
		logx.Int64("user_id", e.UserID),
		logx.String("kind", e.Kind),
		logx.Any("data", e.Data),
	)
	return nil
}

// RepoTokens looks push tokens up in the user store.
type RepoTokens struct {
	Repo ordertx.Runner
}

// PushToken returns the stored token of the user, or "" if the user is unknown.
func (r RepoTokens) PushToken(ctx context.Context, userID int64) (string, error) {
	var u *domain.User
	err := r.Repo.View(ctx, func(q ordertx.Repository) error {
		var err error
		u, err = q.GetUser(ctx, userID)
		return err
	})
	if err != nil || u == nil {
		return "", err
	}
	return u.PushToken, nil
}
