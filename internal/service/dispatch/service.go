// Package dispatch assigns drivers, follows delivery progress and completes
// deliveries inside the destination geofence.
package dispatch

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/geo"
	"palmshell-dispatch/internal/logx"
	"palmshell-dispatch/internal/ports/ordertx"
	"palmshell-dispatch/internal/service/notify"
)

// Deps are the collaborators of the dispatch Service.
type Deps struct {
	Repo       ordertx.Runner
	Policy     Authorizer
	Notify     Notifications
	Estimator  DistanceEstimator
	Positions  PositionCache
	Logger     logx.Logger
	Rejections prometheus.Counter
	RadiusKm   float64
	Timeout    time.Duration
}

// Service is the delivery dispatch service.
type Service struct {
	repo             ordertx.Runner
	policy           Authorizer
	notify           Notifications
	estimator        DistanceEstimator
	positions        PositionCache
	logger           logx.Logger
	rejections       prometheus.Counter
	radiusKm         float64
	operationTimeout time.Duration
	now              func() time.Time
}

// NewService creates a new dispatch Service. Estimator and Positions may be nil.
func NewService(d Deps) *Service {
	if d.Timeout <= 0 {
		d.Timeout = 5 * time.Second
	}
	if d.RadiusKm <= 0 {
		d.RadiusKm = geo.DefaultRadiusKm
	}
	if d.Logger == nil {
		d.Logger = logx.Nop()
	}
	if d.Notify == nil {
		d.Notify = (*notify.Dispatcher)(nil)
	}
	return &Service{
		repo:             d.Repo,
		policy:           d.Policy,
		notify:           d.Notify,
		estimator:        d.Estimator,
		positions:        d.Positions,
		logger:           d.Logger,
		rejections:       d.Rejections,
		radiusKm:         d.RadiusKm,
		operationTimeout: d.Timeout,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// RadiusKm returns the completion geofence radius.
func (s *Service) RadiusKm() float64 { return s.radiusKm }

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// NewWaybillNumber returns WB-YYYYMMDD-XXXX for the given day.
func NewWaybillNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return "WB-" + now.Format("20060102") + "-" + suffix
}

// refreshEstimate stores a new routing estimate. Failures keep the previous one.
func (s *Service) refreshEstimate(ctx context.Context, d *domain.DeliveryOrder, dest domain.Location) {
	if s.estimator == nil {
		return
	}
	est, err := s.estimator.Estimate(ctx, dest)
	if err != nil {
		s.logger.Warn("distance estimate failed",
			logx.String("event", "estimate_failed"),
			logx.Int64("delivery_id", d.ID),
			logx.Err(err),
		)
		return
	}
	err = s.repo.WithTx(ctx, func(tx ordertx.Repository) error {
		return tx.UpdateDeliveryEstimate(ctx, d.ID, est)
	})
	if err != nil {
		s.logger.Warn("store distance estimate failed",
			logx.String("event", "estimate_failed"),
			logx.Int64("delivery_id", d.ID),
			logx.Err(err),
		)
		return
	}
	km, mins := est.DistanceKm, est.DurationMin
	d.DistanceKm, d.EstimatedMinutes = &km, &mins
}

func deliveryData(o *domain.Order, d *domain.DeliveryOrder) map[string]string {
	return map[string]string{
		"order_id":    strconv.FormatInt(o.ID, 10),
		"code":        o.Code,
		"delivery_id": strconv.FormatInt(d.ID, 10),
		"status":      string(d.Status),
	}
}
