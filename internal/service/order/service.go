// Package order implements the order aggregate: creation with stock
// reservation, approval and cancellation with compensation.
package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"palmshell-dispatch/internal/apperr"
	"palmshell-dispatch/internal/authz"
	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/logx"
	"palmshell-dispatch/internal/ports/ordertx"
	"palmshell-dispatch/internal/service/inventory"
	"palmshell-dispatch/internal/service/notify"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	codeAttempts     = 3
)

// Deps are the collaborators of the order Service.
type Deps struct {
	Repo     ordertx.Runner
	Ledger   *inventory.Ledger
	Policy   Authorizer
	Refunder Refunder
	Notify   Notifications
	Logger   logx.Logger
	Created  prometheus.Counter
	Timeout  time.Duration
}

// Service is the order aggregate service.
type Service struct {
	repo             ordertx.Runner
	ledger           *inventory.Ledger
	policy           Authorizer
	refunder         Refunder
	notify           Notifications
	logger           logx.Logger
	created          prometheus.Counter
	operationTimeout time.Duration
	now              func() time.Time
	newCode          func() string
}

// NewService creates a new order Service.
func NewService(d Deps) *Service {
	if d.Timeout <= 0 {
		d.Timeout = 5 * time.Second
	}
	if d.Ledger == nil {
		d.Ledger = inventory.NewLedger()
	}
	if d.Logger == nil {
		d.Logger = logx.Nop()
	}
	if d.Notify == nil {
		d.Notify = (*notify.Dispatcher)(nil)
	}
	return &Service{
		repo:             d.Repo,
		ledger:           d.Ledger,
		policy:           d.Policy,
		refunder:         d.Refunder,
		notify:           d.Notify,
		logger:           d.Logger,
		created:          d.Created,
		operationTimeout: d.Timeout,
		now:              func() time.Time { return time.Now().UTC() },
		newCode:          NewCode,
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// NewCode returns a fresh order code: ORD- followed by 12 upper-case hex chars.
func NewCode() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(hex[:12])
}

// Create reserves stock for every line and stores the order in one transaction.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in domain.CreateOrderInput) (domain.Order, error) {
	if err := s.policy.Require(actor, authz.ResOrder, authz.ActCreate); err != nil {
		return domain.Order{}, err
	}
	if actor.Role != domain.RoleMitra {
		return domain.Order{}, fmt.Errorf("only a mitra owns orders: %w", apperr.ErrForbidden)
	}
	lines, err := inventory.MergeLines(in.Items)
	if err != nil {
		return domain.Order{}, err
	}
	if !domain.ValidCoordinates(in.Destination.Location) {
		return domain.Order{}, fmt.Errorf("destination coordinates out of range: %w", apperr.ErrInvalid)
	}

	status := domain.OrderPending
	if strings.TrimSpace(in.PaymentMethod) != "" {
		status = domain.OrderPendingPayment
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var o domain.Order
	for attempt := 1; ; attempt++ {
		o, err = s.create(ctx, actor, lines, in, status)
		if !errors.Is(err, ordertx.ErrDuplicateCode) || attempt == codeAttempts {
			break
		}
		s.logger.Warn("order code collision, retrying", logx.Int("attempt", attempt))
	}
	if err != nil {
		return domain.Order{}, err
	}

	if s.created != nil {
		s.created.Inc()
	}
	s.logger.Info("order created",
		logx.String("event", "order_created"),
		logx.Int64("order_id", o.ID),
		logx.String("code", o.Code),
		logx.Int64("user_id", o.UserID),
		logx.Int64("total", o.Total),
		logx.String("status", string(o.Status)),
	)
	s.notify.Admins(ctx, notify.Notification{
		Kind:  notify.KindOrderCreated,
		Title: "New Order",
		Body:  fmt.Sprintf("Order %s is waiting for review", o.Code),
		Data:  orderData(o),
	})
	return o, nil
}

func (s *Service) create(ctx context.Context, actor domain.Actor, lines []domain.OrderLineInput,
	in domain.CreateOrderInput, status domain.OrderStatus,
) (domain.Order, error) {
	o := domain.Order{
		UserID:      actor.ID,
		Code:        s.newCode(),
		Destination: in.Destination,
		Status:      status,
		Notes:       strings.TrimSpace(in.Notes),
	}

	err := s.repo.WithTx(ctx, func(tx ordertx.Repository) error {
		reserved, err := s.ledger.ReserveAll(ctx, tx, lines)
		if err != nil {
			return err
		}
		o.Items = make([]domain.OrderItem, 0, len(reserved))
		for _, r := range reserved {
			o.Items = append(o.Items, r.Item())
		}
		o.Total = domain.SumTotal(o.Items)

		if err := tx.InsertOrder(ctx, &o); err != nil {
			return err
		}
		return tx.AppendActivity(ctx, &domain.ActivityEntry{
			ActorID: actor.ID,
			Action:  domain.ActionOrderCreated,
			OrderID: o.ID,
			Details: map[string]any{"code": o.Code, "total": o.Total, "items": len(o.Items)},
		})
	})
	return o, err
}

// Get returns the order if the actor may see it.
func (s *Service) Get(ctx context.Context, actor domain.Actor, orderID int64) (domain.Order, error) {
	if err := s.policy.Require(actor, authz.ResOrder, authz.ActRead); err != nil {
		return domain.Order{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var o *domain.Order
	err := s.repo.View(ctx, func(q ordertx.Repository) error {
		var err error
		o, err = q.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
		}
		return authz.CanReadOrder(ctx, q, actor, o)
	})
	if err != nil {
		return domain.Order{}, err
	}
	return *o, nil
}

// List returns the orders visible to the actor, newest first.
func (s *Service) List(ctx context.Context, actor domain.Actor, f domain.ListOrdersFilter) ([]domain.Order, error) {
	if err := s.policy.Require(actor, authz.ResOrder, authz.ActList); err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", f.Status, apperr.ErrInvalid)
	}

	q := ordertx.OrderQuery{Status: f.Status, Limit: f.Limit, Offset: f.Offset}
	if q.Limit <= 0 {
		q.Limit = defaultListLimit
	}
	if q.Limit > maxListLimit {
		q.Limit = maxListLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	switch actor.Role {
	case domain.RoleMitra:
		q.UserID = actor.ID
	case domain.RoleDriver:
		q.DriverID = actor.ID
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out []domain.Order
	err := s.repo.View(ctx, func(r ordertx.Repository) error {
		var err error
		out, err = r.ListOrders(ctx, q)
		return err
	})
	return out, err
}

func orderData(o domain.Order) map[string]string {
	return map[string]string{
		"order_id": strconv.FormatInt(o.ID, 10),
		"code":     o.Code,
		"status":   string(o.Status),
	}
}
