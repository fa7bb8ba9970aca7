// Package tracking records driver GPS pings and renders the tracking view.
package tracking

import (
	"context"
	"fmt"
	"time"

	"palmshell-dispatch/internal/apperr"
	"palmshell-dispatch/internal/authz"
	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/geo"
	"palmshell-dispatch/internal/logx"
	"palmshell-dispatch/internal/ports/ordertx"
)

const (
	defaultHistoryLimit = 200
	maxHistoryLimit     = 1000
)

// Deps are the collaborators of the tracking Service. Cache may be nil.
type Deps struct {
	Repo    ordertx.Runner
	Policy  Authorizer
	Cache   PositionCache
	Logger  logx.Logger
	Timeout time.Duration
}

// Service is the GPS track log.
type Service struct {
	repo             ordertx.Runner
	policy           Authorizer
	cache            PositionCache
	logger           logx.Logger
	operationTimeout time.Duration
	now              func() time.Time
}

// NewService creates a new tracking Service.
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
		cache:            d.Cache,
		logger:           d.Logger,
		operationTimeout: d.Timeout,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// RecordPosition appends a ping from the assigned driver. The server clock
// stamps the point.
func (s *Service) RecordPosition(ctx context.Context, actor domain.Actor, in domain.RecordPositionInput) (domain.TrackPoint, error) {
	if err := s.policy.Require(actor, authz.ResTracking, authz.ActRecord); err != nil {
		return domain.TrackPoint{}, err
	}
	if !domain.ValidCoordinates(in.Location) {
		return domain.TrackPoint{}, fmt.Errorf("position out of range: %w", apperr.ErrInvalid)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p := domain.TrackPoint{DeliveryID: in.DeliveryID, Location: in.Location}
	err := s.repo.WithTx(ctx, func(tx ordertx.Repository) error {
		d, err := tx.GetDelivery(ctx, in.DeliveryID)
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
			return fmt.Errorf("track delivery in status %s: %w", d.Status, apperr.ErrInvalidState)
		}
		p.RecordedAt = s.now()
		return tx.InsertTrackPoint(ctx, &p)
	})
	if err != nil {
		return domain.TrackPoint{}, err
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, p); err != nil {
			s.logger.Warn("position cache write failed",
				logx.String("event", "position_cache_failed"),
				logx.Int64("delivery_id", p.DeliveryID),
				logx.Err(err),
			)
		}
	}
	return p, nil
}

// LatestPosition returns the newest point of a delivery, or nil when none
// was recorded. The cache is consulted first.
func (s *Service) LatestPosition(ctx context.Context, deliveryID int64) (*domain.TrackPoint, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if s.cache != nil {
		p, err := s.cache.Latest(ctx, deliveryID)
		if err != nil {
			s.logger.Warn("position cache read failed",
				logx.String("event", "position_cache_failed"),
				logx.Int64("delivery_id", deliveryID),
				logx.Err(err),
			)
		}
		if p != nil {
			return p, nil
		}
	}

	var p *domain.TrackPoint
	err := s.repo.View(ctx, func(q ordertx.Repository) error {
		var err error
		p, err = q.LatestTrackPoint(ctx, deliveryID)
		return err
	})
	return p, err
}

// Tracking renders the tracking screen of an order for its owner, an admin
// or the assigned driver.
func (s *Service) Tracking(ctx context.Context, actor domain.Actor, orderID int64) (domain.TrackingView, error) {
	if err := s.policy.Require(actor, authz.ResTracking, authz.ActRead); err != nil {
		return domain.TrackingView{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		view domain.TrackingView
		d    *domain.DeliveryOrder
	)
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
		view = domain.TrackingView{
			OrderID:     o.ID,
			OrderCode:   o.Code,
			Status:      o.Status.Display(),
			Destination: o.Destination,
		}

		d, err = q.GetDeliveryByOrder(ctx, o.ID)
		if err != nil || d == nil {
			return err
		}
		view.DeliveryID = d.ID
		view.DeliveryStatus = d.Status

		driver, err := q.GetUser(ctx, d.DriverID)
		if err != nil {
			return err
		}
		if driver != nil {
			u := *driver
			u.PushToken = ""
			view.Driver = &u
		}
		return nil
	})
	if err != nil {
		return domain.TrackingView{}, err
	}
	if d == nil {
		return view, nil
	}

	latest, err := s.LatestPosition(ctx, d.ID)
	if err != nil {
		return domain.TrackingView{}, err
	}
	view.LatestPosition = latest

	if latest != nil {
		est := geo.Estimate(latest.Location, view.Destination.Location)
		view.DistanceKm, view.EstimatedMinutes = &est.DistanceKm, &est.DurationMin
	} else {
		view.DistanceKm, view.EstimatedMinutes = d.DistanceKm, d.EstimatedMinutes
	}
	return view, nil
}

// History returns the track of a delivery in recording order, up to limit
// most recent points.
func (s *Service) History(ctx context.Context, actor domain.Actor, deliveryID int64, limit int) ([]domain.TrackPoint, error) {
	if err := s.policy.Require(actor, authz.ResTracking, authz.ActRead); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out []domain.TrackPoint
	err := s.repo.View(ctx, func(q ordertx.Repository) error {
		d, err := q.GetDelivery(ctx, deliveryID)
		if err != nil {
			return err
		}
		if d == nil {
			return fmt.Errorf("delivery %d: %w", deliveryID, apperr.ErrNotFound)
		}
		if !actor.IsAdmin() {
			if err := authz.RequireDriverOf(actor, d); err != nil {
				return err
			}
		}
		out, err = q.ListTrackPoints(ctx, d.ID, limit)
		return err
	})
	return out, err
}
