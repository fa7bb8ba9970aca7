package dispatch

import (
	"context"
	"fmt"
	"strings"

	"palmshell-dispatch/internal/apperr"
	"palmshell-dispatch/internal/authz"
	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/logx"
	"palmshell-dispatch/internal/ports/ordertx"
)

// ListDrivers returns drivers for the assignment screen.
func (s *Service) ListDrivers(ctx context.Context, actor domain.Actor, onlyAvailable bool) ([]domain.User, error) {
	if err := s.policy.Require(actor, authz.ResDriver, authz.ActList); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out []domain.User
	err := s.repo.View(ctx, func(q ordertx.Repository) error {
		var err error
		out, err = q.ListDrivers(ctx, onlyAvailable)
		return err
	})
	return out, err
}

// SetAvailability lets a driver go online or offline. busy is owned by dispatch.
func (s *Service) SetAvailability(ctx context.Context, actor domain.Actor, a domain.Availability) (domain.User, error) {
	if err := s.policy.Require(actor, authz.ResDriver, authz.ActAvailability); err != nil {
		return domain.User{}, err
	}
	if actor.Role != domain.RoleDriver {
		return domain.User{}, fmt.Errorf("only drivers have availability: %w", apperr.ErrForbidden)
	}
	a = domain.Availability(strings.ToLower(strings.TrimSpace(string(a))))
	if a != domain.AvailabilityAvailable && a != domain.AvailabilityOffline {
		return domain.User{}, fmt.Errorf("availability %q: %w", a, apperr.ErrInvalid)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var u *domain.User
	err := s.repo.WithTx(ctx, func(tx ordertx.Repository) error {
		var err error
		u, err = tx.GetUserForUpdate(ctx, actor.ID)
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("driver %d: %w", actor.ID, apperr.ErrNotFound)
		}
		if u.Availability == a {
			return nil
		}
		if u.Availability == domain.AvailabilityBusy {
			list, err := tx.ListDeliveriesByDriver(ctx, u.ID)
			if err != nil {
				return err
			}
			for _, d := range list {
				if d.Active() {
					return fmt.Errorf("driver has active delivery %d: %w", d.ID, apperr.ErrInvalidState)
				}
			}
		}
		if err := tx.UpdateAvailability(ctx, u.ID, a); err != nil {
			return err
		}
		u.Availability = a
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}

	s.logger.Info("driver availability changed",
		logx.String("event", "availability_changed"),
		logx.Int64("driver_id", u.ID),
		logx.String("availability", string(u.Availability)),
	)
	return *u, nil
}

// ListAssignments returns the deliveries of the calling driver, newest first.
func (s *Service) ListAssignments(ctx context.Context, actor domain.Actor) ([]domain.DeliveryOrder, error) {
	if err := s.policy.Require(actor, authz.ResDelivery, authz.ActRead); err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleDriver {
		return nil, fmt.Errorf("only drivers have assignments: %w", apperr.ErrForbidden)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out []domain.DeliveryOrder
	err := s.repo.View(ctx, func(q ordertx.Repository) error {
		var err error
		out, err = q.ListDeliveriesByDriver(ctx, actor.ID)
		return err
	})
	return out, err
}
