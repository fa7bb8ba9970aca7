package dispatch

import (
	"context"
	"fmt"
	"strings"

	"palmshell-dispatch/internal/apperr"
	"palmshell-dispatch/internal/authz"
	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/ports/ordertx"
)

// CreateWaybill issues the waybill of an order that has a driver, or updates
// the notes of the existing one. The number never changes once issued.
func (s *Service) CreateWaybill(ctx context.Context, actor domain.Actor, orderID int64, notes string) (domain.Waybill, error) {
	if err := s.policy.Require(actor, authz.ResWaybill, authz.ActIssue); err != nil {
		return domain.Waybill{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var w domain.Waybill
	err := s.repo.WithTx(ctx, func(tx ordertx.Repository) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
		}
		d, err := tx.GetDeliveryByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		if d == nil {
			return fmt.Errorf("order %d has no driver: %w", o.ID, apperr.ErrInvalidState)
		}
		w = domain.Waybill{
			OrderID:  o.ID,
			DriverID: d.DriverID,
			Number:   NewWaybillNumber(s.now()),
			Notes:    strings.TrimSpace(notes),
		}
		return tx.UpsertWaybill(ctx, &w)
	})
	if err != nil {
		return domain.Waybill{}, err
	}
	return w, nil
}

// GetWaybill returns the waybill to the owner, an admin or the assigned driver.
func (s *Service) GetWaybill(ctx context.Context, actor domain.Actor, orderID int64) (domain.Waybill, error) {
	if err := s.policy.Require(actor, authz.ResWaybill, authz.ActRead); err != nil {
		return domain.Waybill{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var w *domain.Waybill
	err := s.repo.View(ctx, func(q ordertx.Repository) error {
		o, err := q.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
		}
		if err := authz.CanReadOrder(ctx, q, actor, o); err != nil {
			return err
		}
		w, err = q.GetWaybillByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		if w == nil {
			return fmt.Errorf("waybill of order %d: %w", orderID, apperr.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return domain.Waybill{}, err
	}
	return *w, nil
}
