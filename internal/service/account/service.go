// Package account manages the caller's own profile settings.
package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"palmshell-dispatch/internal/apperr"
	"palmshell-dispatch/internal/authz"
	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/logx"
	"palmshell-dispatch/internal/ports/ordertx"
)

// maxPushTokenLen bounds device tokens; FCM tokens are well under it.
const maxPushTokenLen = 4096

// Deps are the collaborators of the account Service.
type Deps struct {
	Repo    ordertx.Runner
	Policy  Authorizer
	Logger  logx.Logger
	Timeout time.Duration
}

// Service updates account settings of the authenticated user.
type Service struct {
	repo             ordertx.Runner
	policy           Authorizer
	logger           logx.Logger
	operationTimeout time.Duration
}

// NewService creates a new account Service.
func NewService(d Deps) *Service {
	if d.Timeout <= 0 {
		d.Timeout = 5 * time.Second
	}
	if d.Logger == nil {
		d.Logger = logx.Nop()
	}
	return &Service{
		repo:             d.Repo,
		policy:           d.Policy,
		logger:           d.Logger,
		operationTimeout: d.Timeout,
	}
}

// SetPushToken registers the device token notifications for actor are pushed to.
// A later call replaces the token.
func (s *Service) SetPushToken(ctx context.Context, actor domain.Actor, token string) error {
	if err := s.policy.Require(actor, authz.ResAccount, authz.ActUpdate); err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("push token is required: %w", apperr.ErrInvalid)
	}
	if len(token) > maxPushTokenLen {
		return fmt.Errorf("push token longer than %d bytes: %w", maxPushTokenLen, apperr.ErrInvalid)
	}

	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	err := s.repo.WithTx(ctx, func(tx ordertx.Repository) error {
		u, err := tx.GetUser(ctx, actor.ID)
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("user %d: %w", actor.ID, apperr.ErrNotFound)
		}
		return tx.UpdatePushToken(ctx, u.ID, token)
	})
	if err != nil {
		return err
	}

	s.logger.Info("push token updated",
		logx.String("event", "push_token_updated"),
		logx.Int64("user_id", actor.ID),
	)
	return nil
}
