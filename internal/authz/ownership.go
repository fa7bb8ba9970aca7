package authz

import (
	"context"
	"fmt"

	"palmshell-dispatch/internal/apperr"
	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/ports/ordertx"
)

// CanReadOrder allows the owner, an admin or the driver assigned to the order.
func CanReadOrder(ctx context.Context, q ordertx.DeliveryStore, actor domain.Actor, o *domain.Order) error {
	if actor.IsAdmin() || actor.Is(o.UserID) {
		return nil
	}
	if actor.Role == domain.RoleDriver {
		d, err := q.GetDeliveryByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		if d != nil && actor.Is(d.DriverID) {
			return nil
		}
	}
	return fmt.Errorf("order %d: %w", o.ID, apperr.ErrForbidden)
}

// RequireDriverOf fails with ErrForbidden unless the actor drives the delivery.
func RequireDriverOf(actor domain.Actor, d *domain.DeliveryOrder) error {
	if actor.Role != domain.RoleDriver || !actor.Is(d.DriverID) {
		return fmt.Errorf("delivery %d is not assigned to user %d: %w", d.ID, actor.ID, apperr.ErrForbidden)
	}
	return nil
}
