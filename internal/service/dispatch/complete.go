package dispatch

import (
	"context"
	"errors"
	"fmt"

	"palmshell-dispatch/internal/apperr"
	"palmshell-dispatch/internal/authz"
	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/geo"
	"palmshell-dispatch/internal/logx"
	"palmshell-dispatch/internal/ports/ordertx"
	"palmshell-dispatch/internal/service/notify"
)

// CompleteDelivery marks the delivery delivered when the driver reports a
// position inside the destination geofence. The delivery row stays locked
// from the check to the commit, so a retried request cannot complete twice.
func (s *Service) CompleteDelivery(ctx context.Context, actor domain.Actor, in domain.CompleteDeliveryInput) (domain.CompleteResult, error) {
	if err := s.policy.Require(actor, authz.ResDelivery, authz.ActComplete); err != nil {
		return domain.CompleteResult{}, err
	}
	if !domain.ValidCoordinates(in.Location) {
		return domain.CompleteResult{}, fmt.Errorf("position out of range: %w", apperr.ErrInvalid)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		res   domain.CompleteResult
		final domain.TrackPoint
	)
	err := s.repo.WithTx(ctx, func(tx ordertx.Repository) error {
		d, err := tx.GetDeliveryForUpdate(ctx, in.DeliveryID)
		if err != nil {
			return err
		}
		if d == nil {
			return fmt.Errorf("delivery %d: %w", in.DeliveryID, apperr.ErrNotFound)
		}
		if err := authz.RequireDriverOf(actor, d); err != nil {
			return err
		}
		if !d.Active() {
			return fmt.Errorf("complete delivery in status %s: %w", d.Status, apperr.ErrInvalidState)
		}

		o, err := tx.GetOrderForUpdate(ctx, d.OrderID)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("order %d: %w", d.OrderID, apperr.ErrNotFound)
		}
		if !o.Status.CanTransition(domain.OrderCompleted) {
			return fmt.Errorf("complete order in status %s: %w", o.Status, apperr.ErrInvalidState)
		}

		dist, inside := geo.Within(in.Location, o.Destination.Location, s.radiusKm)
		if !inside {
			return &apperr.GeofenceError{DistanceKm: dist, RadiusKm: s.radiusKm}
		}

		now := s.now()
		if err := tx.UpdateDeliveryStatus(ctx, d.ID, domain.DeliveryDelivered, &now); err != nil {
			return err
		}
		d.Status, d.CompletedAt = domain.DeliveryDelivered, &now

		if err := tx.UpdateOrderStatus(ctx, ordertx.OrderStatusChange{
			ID:        o.ID,
			Status:    domain.OrderCompleted,
			ArrivedAt: &now,
		}); err != nil {
			return err
		}
		o.Status, o.ArrivedAt = domain.OrderCompleted, &now

		if err := tx.UpdateAvailability(ctx, d.DriverID, domain.AvailabilityAvailable); err != nil {
			return err
		}
		final = domain.TrackPoint{DeliveryID: d.ID, Location: in.Location, RecordedAt: now}
		if err := tx.InsertTrackPoint(ctx, &final); err != nil {
			return err
		}

		res = domain.CompleteResult{Delivery: *d, Order: *o, DistanceKm: dist, RadiusKm: s.radiusKm}
		return tx.AppendActivity(ctx, &domain.ActivityEntry{
			ActorID: actor.ID,
			Action:  domain.ActionOrderCompleted,
			OrderID: o.ID,
			Details: map[string]any{
				"delivery_id": d.ID,
				"distance_km": geo.Round2(dist),
				"radius_km":   s.radiusKm,
			},
		})
	})

	var gerr *apperr.GeofenceError
	if errors.As(err, &gerr) {
		if s.rejections != nil {
			s.rejections.Inc()
		}
		s.logger.Info("completion outside geofence",
			logx.String("event", "geofence_rejected"),
			logx.Int64("delivery_id", in.DeliveryID),
			logx.Float64("distance_km", gerr.DistanceKm),
			logx.Float64("radius_km", gerr.RadiusKm),
		)
	}
	if err != nil {
		return domain.CompleteResult{}, err
	}

	s.logger.Info("delivery completed",
		logx.String("event", "delivery_completed"),
		logx.Int64("delivery_id", res.Delivery.ID),
		logx.Int64("order_id", res.Order.ID),
		logx.Float64("distance_km", res.DistanceKm),
	)
	if s.positions != nil {
		if err := s.positions.Put(ctx, final); err != nil {
			s.logger.Warn("position cache write failed",
				logx.String("event", "position_cache_failed"),
				logx.Int64("delivery_id", final.DeliveryID),
				logx.Err(err),
			)
		}
	}
	s.notify.User(ctx, res.Order.UserID, notify.Notification{
		Kind:  notify.KindDeliveryCompleted,
		Title: "Order Delivered",
		Body:  fmt.Sprintf("Order %s has arrived", res.Order.Code),
		Data:  deliveryData(&res.Order, &res.Delivery),
	})
	return res, nil
}
