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

// AssignDriver puts an available driver on a confirmed order. The delivery
// order is upserted by order id and the driver becomes busy.
func (s *Service) AssignDriver(ctx context.Context, actor domain.Actor, in domain.AssignDriverInput) (domain.AssignResult, error) {
	if err := s.policy.Require(actor, authz.ResDelivery, authz.ActAssign); err != nil {
		return domain.AssignResult{}, err
	}
	if in.OrderID <= 0 || in.DriverID <= 0 {
		return domain.AssignResult{}, fmt.Errorf("order and driver are required: %w", apperr.ErrInvalid)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var res domain.AssignResult
	err := s.repo.WithTx(ctx, func(tx ordertx.Repository) error {
		o, err := tx.GetOrderForUpdate(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("order %d: %w", in.OrderID, apperr.ErrNotFound)
		}
		if o.Status != domain.OrderConfirmed {
			return fmt.Errorf("assign driver to order in status %s: %w", o.Status, apperr.ErrInvalidState)
		}

		driver, err := tx.GetUserForUpdate(ctx, in.DriverID)
		if err != nil {
			return err
		}
		if driver == nil {
			return fmt.Errorf("driver %d: %w", in.DriverID, apperr.ErrNotFound)
		}
		if !driver.Eligible() {
			return fmt.Errorf("user %d (%s, %s): %w", driver.ID, driver.Role, driver.Availability, apperr.ErrDriverUnavailable)
		}

		if prev, err := tx.GetDeliveryByOrder(ctx, o.ID); err != nil {
			return err
		} else if prev != nil && prev.Active() && prev.DriverID != driver.ID {
			if err := tx.UpdateAvailability(ctx, prev.DriverID, domain.AvailabilityAvailable); err != nil {
				return err
			}
		}

		now := s.now()
		d := domain.DeliveryOrder{
			OrderID:    o.ID,
			DriverID:   driver.ID,
			Status:     domain.DeliveryAssigned,
			AssignedAt: now,
		}
		if err := tx.UpsertDelivery(ctx, &d); err != nil {
			return err
		}

		w := domain.Waybill{OrderID: o.ID, DriverID: driver.ID, Number: NewWaybillNumber(now)}
		if err := tx.UpsertWaybill(ctx, &w); err != nil {
			return err
		}

		if err := tx.UpdateOrderStatus(ctx, ordertx.OrderStatusChange{ID: o.ID, Status: domain.OrderOnDelivery}); err != nil {
			return err
		}
		o.Status = domain.OrderOnDelivery

		if err := tx.UpdateAvailability(ctx, driver.ID, domain.AvailabilityBusy); err != nil {
			return err
		}

		res = domain.AssignResult{Delivery: d, Order: *o, Waybill: w}
		return tx.AppendActivity(ctx, &domain.ActivityEntry{
			ActorID: actor.ID,
			Action:  domain.ActionOrderDriverAssigned,
			OrderID: o.ID,
			Details: map[string]any{
				"driver_id":   driver.ID,
				"delivery_id": d.ID,
				"waybill":     w.Number,
			},
		})
	})
	if err != nil {
		return domain.AssignResult{}, err
	}

	s.refreshEstimate(ctx, &res.Delivery, res.Order.Destination.Location)

	s.logger.Info("driver assigned",
		logx.String("event", "driver_assigned"),
		logx.Int64("order_id", res.Order.ID),
		logx.Int64("driver_id", res.Delivery.DriverID),
		logx.Int64("delivery_id", res.Delivery.ID),
		logx.String("waybill", res.Waybill.Number),
	)

	data := deliveryData(&res.Order, &res.Delivery)
	s.notify.User(ctx, res.Order.UserID, notify.Notification{
		Kind:  notify.KindDriverAssigned,
		Title: "Driver Assigned",
		Body:  fmt.Sprintf("A driver is on the way with order %s", res.Order.Code),
		Data:  data,
	})
	s.notify.User(ctx, res.Delivery.DriverID, notify.Notification{
		Kind:  notify.KindDeliveryAssigned,
		Title: "New Delivery",
		Body:  fmt.Sprintf("Deliver order %s to %s", res.Order.Code, res.Order.Destination.Address),
		Data:  data,
	})
	return res, nil
}
