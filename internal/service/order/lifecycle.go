package order

import (
	"context"
	"fmt"
	"strings"

	"palmshell-dispatch/internal/apperr"
	"palmshell-dispatch/internal/authz"
	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/logx"
	"palmshell-dispatch/internal/ports/ordertx"
	"palmshell-dispatch/internal/service/notify"
)

// Approve moves a pending order to confirmed.
func (s *Service) Approve(ctx context.Context, actor domain.Actor, orderID int64) (domain.Order, error) {
	if err := s.policy.Require(actor, authz.ResOrder, authz.ActApprove); err != nil {
		return domain.Order{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var o *domain.Order
	err := s.repo.WithTx(ctx, func(tx ordertx.Repository) error {
		var err error
		o, err = tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
		}
		if o.Status != domain.OrderPending {
			return fmt.Errorf("approve order in status %s: %w", o.Status, apperr.ErrInvalidState)
		}

		if err := tx.UpdateOrderStatus(ctx, ordertx.OrderStatusChange{ID: o.ID, Status: domain.OrderConfirmed}); err != nil {
			return err
		}
		o.Status = domain.OrderConfirmed
		return tx.AppendActivity(ctx, &domain.ActivityEntry{
			ActorID: actor.ID,
			Action:  domain.ActionOrderApproved,
			OrderID: o.ID,
		})
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logger.Info("order approved",
		logx.String("event", "order_approved"),
		logx.Int64("order_id", o.ID),
		logx.Int64("admin_id", actor.ID),
	)
	s.notify.User(ctx, o.UserID, notify.Notification{
		Kind:  notify.KindOrderApproved,
		Title: "Order Approved",
		Body:  fmt.Sprintf("Order %s has been approved", o.Code),
		Data:  orderData(*o),
	})
	return *o, nil
}

// Cancel cancels an order that has not left for delivery, releasing its stock.
// Cancelling an already cancelled order changes nothing. A paid order is
// refunded after the cancellation commits; a failed refund does not undo it.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, orderID int64, reason string) (domain.CancelResult, error) {
	if err := s.policy.Require(actor, authz.ResOrder, authz.ActCancel); err != nil {
		return domain.CancelResult{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		o                *domain.Order
		alreadyCancelled bool
		paid             bool
		freedDriver      int64
	)
	err := s.repo.WithTx(ctx, func(tx ordertx.Repository) error {
		var err error
		o, err = tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
		}
		if !actor.IsAdmin() && !actor.Is(o.UserID) {
			return fmt.Errorf("cancel order %d: %w", orderID, apperr.ErrForbidden)
		}
		if o.Status == domain.OrderCancelled {
			alreadyCancelled = true
			return nil
		}
		if !o.Status.Cancellable() {
			return fmt.Errorf("cancel order in status %s: %w", o.Status, apperr.ErrInvalidState)
		}

		for _, it := range o.Items {
			if err := s.ledger.Release(ctx, tx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}

		freedDriver, err = cancelDelivery(ctx, tx, o.ID)
		if err != nil {
			return err
		}

		p, err := tx.GetPaymentByOrderForUpdate(ctx, o.ID)
		if err != nil {
			return err
		}
		paid = p != nil && p.Status == domain.PaymentPaid

		now := s.now()
		if err := tx.UpdateOrderStatus(ctx, ordertx.OrderStatusChange{
			ID:          o.ID,
			Status:      domain.OrderCancelled,
			CancelledAt: &now,
		}); err != nil {
			return err
		}
		o.Status = domain.OrderCancelled
		o.CancelledAt = &now

		return tx.AppendActivity(ctx, &domain.ActivityEntry{
			ActorID: actor.ID,
			Action:  domain.ActionOrderCancelled,
			OrderID: o.ID,
			Details: map[string]any{"reason": strings.TrimSpace(reason), "paid": paid},
		})
	})
	if err != nil {
		return domain.CancelResult{}, err
	}

	res := domain.CancelResult{Order: *o, RefundStatus: domain.RefundNone}
	if alreadyCancelled {
		return res, nil
	}

	s.logger.Info("order cancelled",
		logx.String("event", "order_cancelled"),
		logx.Int64("order_id", o.ID),
		logx.Int64("actor_id", actor.ID),
		logx.Bool("paid", paid),
	)

	if paid {
		s.refund(ctx, o, &res)
	}
	if freedDriver > 0 {
		s.notify.User(ctx, freedDriver, notify.Notification{
			Kind:  notify.KindDeliveryUpdated,
			Title: "Delivery Cancelled",
			Body:  fmt.Sprintf("Order %s was cancelled", o.Code),
			Data:  orderData(*o),
		})
	}
	s.notify.User(ctx, o.UserID, notify.Notification{
		Kind:  notify.KindOrderCancelled,
		Title: "Order Cancelled",
		Body:  fmt.Sprintf("Order %s has been cancelled", o.Code),
		Data:  orderData(*o),
	})
	return res, nil
}

// cancelDelivery stops an active delivery of the order and frees its driver.
// It returns the freed driver id, or 0.
func cancelDelivery(ctx context.Context, tx ordertx.Repository, orderID int64) (int64, error) {
	d, err := tx.GetDeliveryByOrder(ctx, orderID)
	if err != nil || d == nil {
		return 0, err
	}
	d, err = tx.GetDeliveryForUpdate(ctx, d.ID)
	if err != nil || d == nil || !d.Active() {
		return 0, err
	}
	if err := tx.UpdateDeliveryStatus(ctx, d.ID, domain.DeliveryCancelled, nil); err != nil {
		return 0, err
	}
	if err := tx.UpdateAvailability(ctx, d.DriverID, domain.AvailabilityAvailable); err != nil {
		return 0, err
	}
	return d.DriverID, nil
}

func (s *Service) refund(ctx context.Context, o *domain.Order, res *domain.CancelResult) {
	if s.refunder == nil {
		res.RefundStatus = domain.RefundFailed
		res.RefundError = "refunds are not configured"
		return
	}
	if _, err := s.refunder.Refund(ctx, o.ID); err != nil {
		res.RefundStatus = domain.RefundFailed
		res.RefundError = err.Error()
		s.logger.Warn("refund failed, payment left as paid",
			logx.String("event", "refund_failed"),
			logx.Int64("order_id", o.ID),
			logx.Err(err),
		)
		s.notify.Admins(ctx, notify.Notification{
			Kind:  notify.KindRefundFailed,
			Title: "Refund failed",
			Body:  fmt.Sprintf("Refund of cancelled order %s needs manual handling", o.Code),
			Data:  orderData(*o),
		})
		return
	}
	res.RefundStatus = domain.RefundSucceeded
	s.logger.Info("order refunded",
		logx.String("event", "order_refunded"),
		logx.Int64("order_id", o.ID),
	)
}
