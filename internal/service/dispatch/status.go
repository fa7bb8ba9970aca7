package dispatch

import (
	"context"
	"fmt"

	"palmshell-dispatch/internal/apperr"
	"palmshell-dispatch/internal/authz"
	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/logx"
	"palmshell-dispatch/internal/ports/ordertx"
	"palmshell-dispatch/internal/service/notify"
)

// UpdateDeliveryStatus applies a driver's status change to the delivery and
// its order. delivered goes through the geofence check and needs a position.
// cancelled hands the order back to dispatch and frees the driver.
func (s *Service) UpdateDeliveryStatus(ctx context.Context, actor domain.Actor, in domain.UpdateDeliveryStatusInput) (domain.DeliveryOrder, error) {
	if err := s.policy.Require(actor, authz.ResDelivery, authz.ActUpdate); err != nil {
		return domain.DeliveryOrder{}, err
	}
	if !in.Status.Valid() {
		return domain.DeliveryOrder{}, fmt.Errorf("unknown delivery status %q: %w", in.Status, apperr.ErrInvalid)
	}
	if in.Status == domain.DeliveryDelivered {
		if in.Position == nil {
			return domain.DeliveryOrder{}, fmt.Errorf("delivered needs the driver position: %w", apperr.ErrInvalid)
		}
		res, err := s.CompleteDelivery(ctx, actor, domain.CompleteDeliveryInput{DeliveryID: in.DeliveryID, Location: *in.Position})
		if err != nil {
			return domain.DeliveryOrder{}, err
		}
		return res.Delivery, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		d       *domain.DeliveryOrder
		o       *domain.Order
		from    domain.DeliveryStatus
		changed bool
	)
	err := s.repo.WithTx(ctx, func(tx ordertx.Repository) error {
		var err error
		d, err = tx.GetDeliveryForUpdate(ctx, in.DeliveryID)
		if err != nil {
			return err
		}
		if d == nil {
			return fmt.Errorf("delivery %d: %w", in.DeliveryID, apperr.ErrNotFound)
		}
		if err := authz.RequireDriverOf(actor, d); err != nil {
			return err
		}
		from = d.Status
		if from == in.Status {
			return nil
		}
		if !from.CanTransition(in.Status) {
			return fmt.Errorf("delivery %s -> %s: %w", from, in.Status, apperr.ErrInvalidState)
		}

		o, err = tx.GetOrderForUpdate(ctx, d.OrderID)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("order %d: %w", d.OrderID, apperr.ErrNotFound)
		}
		target := in.Status.OrderStatus()
		if o.Status != target && !o.Status.CanTransition(target) {
			return fmt.Errorf("order %s -> %s: %w", o.Status, target, apperr.ErrInvalidState)
		}

		if err := tx.UpdateDeliveryStatus(ctx, d.ID, in.Status, nil); err != nil {
			return err
		}
		d.Status = in.Status
		if o.Status != target {
			if err := tx.UpdateOrderStatus(ctx, ordertx.OrderStatusChange{ID: o.ID, Status: target}); err != nil {
				return err
			}
			o.Status = target
		}
		if in.Status == domain.DeliveryCancelled {
			if err := tx.UpdateAvailability(ctx, d.DriverID, domain.AvailabilityAvailable); err != nil {
				return err
			}
		}
		changed = true

		return tx.AppendActivity(ctx, &domain.ActivityEntry{
			ActorID: actor.ID,
			Action:  domain.ActionDeliveryStatusChanged,
			OrderID: o.ID,
			Details: map[string]any{"delivery_id": d.ID, "from": string(from), "to": string(in.Status)},
		})
	})
	if err != nil {
		return domain.DeliveryOrder{}, err
	}
	if !changed {
		return *d, nil
	}

	if in.Status == domain.DeliveryOnTheWay {
		s.refreshEstimate(ctx, d, o.Destination.Location)
	}

	s.logger.Info("delivery status changed",
		logx.String("event", "delivery_status_changed"),
		logx.Int64("delivery_id", d.ID),
		logx.String("from", string(from)),
		logx.String("to", string(d.Status)),
	)

	data := deliveryData(o, d)
	if d.Status == domain.DeliveryCancelled {
		s.notify.Admins(ctx, notify.Notification{
			Kind:  notify.KindDeliveryUpdated,
			Title: "Delivery Cancelled",
			Body:  fmt.Sprintf("The driver dropped order %s, it needs a new driver", o.Code),
			Data:  data,
		})
	}
	s.notify.User(ctx, o.UserID, notify.Notification{
		Kind:  notify.KindDeliveryUpdated,
		Title: "Delivery Update",
		Body:  fmt.Sprintf("Order %s is now %s", o.Code, o.Status.Display()),
		Data:  data,
	})
	return *d, nil
}
