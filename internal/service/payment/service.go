// Package payment reconciles provider payments with orders.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"palmshell-dispatch/internal/apperr"
	"palmshell-dispatch/internal/authz"
	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/logx"
	"palmshell-dispatch/internal/ports/ordertx"
	"palmshell-dispatch/internal/service/notify"
)

// DefaultIntentTTL is how long a checkout stays payable.
const DefaultIntentTTL = 24 * time.Hour

// ErrRefundRejected is returned when the provider answers a refund with a failure.
var ErrRefundRejected = errors.New("refund rejected by provider")

// Notifications sends best-effort notifications.
type Notifications interface {
	User(ctx context.Context, userID int64, n notify.Notification)
	Admins(ctx context.Context, n notify.Notification)
}

// Deps are the collaborators of the payment Service.
type Deps struct {
	Repo      ordertx.Runner
	Gateway   Gateway
	Dedup     Deduper
	Policy    Authorizer
	Notify    Notifications
	Logger    logx.Logger
	Timeout   time.Duration
	IntentTTL time.Duration
}

// Service is the payment reconciliation service.
type Service struct {
	repo             ordertx.Runner
	gateway          Gateway
	dedup            Deduper
	policy           Authorizer
	notify           Notifications
	logger           logx.Logger
	operationTimeout time.Duration
	intentTTL        time.Duration
	now              func() time.Time
}

// NewService creates a new payment Service.
func NewService(d Deps) *Service {
	if d.Timeout <= 0 {
		d.Timeout = 5 * time.Second
	}
	if d.IntentTTL <= 0 {
		d.IntentTTL = DefaultIntentTTL
	}
	if d.Logger == nil {
		d.Logger = logx.Nop()
	}
	if d.Notify == nil {
		d.Notify = (*notify.Dispatcher)(nil)
	}
	return &Service{
		repo:             d.Repo,
		gateway:          d.Gateway,
		dedup:            d.Dedup,
		policy:           d.Policy,
		notify:           d.Notify,
		logger:           d.Logger,
		operationTimeout: d.Timeout,
		intentTTL:        d.IntentTTL,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// NewMerchantRef returns a fresh merchant reference.
func NewMerchantRef() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "PAY-" + strings.ToUpper(hex[:12])
}

// Checkout opens a payment for an order waiting for payment, or returns the
// still valid one opened before with the same method.
func (s *Service) Checkout(ctx context.Context, actor domain.Actor, in domain.CheckoutInput) (domain.Payment, error) {
	if err := s.policy.Require(actor, authz.ResPayment, authz.ActCheckout); err != nil {
		return domain.Payment{}, err
	}
	method := strings.ToUpper(strings.TrimSpace(in.Method))
	if method == "" {
		return domain.Payment{}, fmt.Errorf("payment method is required: %w", apperr.ErrInvalid)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		o        *domain.Order
		customer string
		existing *domain.Payment
	)
	err := s.repo.View(ctx, func(q ordertx.Repository) error {
		var err error
		if o, err = s.payableOrder(ctx, q, actor, in.OrderID); err != nil {
			return err
		}
		u, err := q.GetUser(ctx, o.UserID)
		if err != nil {
			return err
		}
		if u != nil {
			customer = u.Name
		}
		existing, err = q.GetPaymentByOrder(ctx, o.ID)
		return err
	})
	if err != nil {
		return domain.Payment{}, err
	}
	if existing != nil {
		if existing.Status.Settled() {
			return domain.Payment{}, fmt.Errorf("order %d already paid: %w", o.ID, apperr.ErrInvalidState)
		}
		if existing.Status == domain.PaymentUnpaid && existing.Method == method &&
			existing.ExpiresAt != nil && existing.ExpiresAt.After(s.now()) {
			return *existing, nil
		}
	}

	req := IntentRequest{
		MerchantRef:  NewMerchantRef(),
		Method:       method,
		Amount:       o.Total,
		OrderCode:    o.Code,
		CustomerName: customer,
		Items:        o.Items,
		ExpiresAt:    s.now().Add(s.intentTTL),
	}
	intent, err := s.gateway.CreateIntent(ctx, req)
	if err != nil {
		return domain.Payment{}, apperr.Gateway("create payment intent", err)
	}
	expires := req.ExpiresAt
	if !intent.ExpiresAt.IsZero() {
		expires = intent.ExpiresAt.UTC()
	}

	p := domain.Payment{
		OrderID:     o.ID,
		Reference:   intent.Reference,
		MerchantRef: req.MerchantRef,
		Method:      method,
		Amount:      o.Total,
		Status:      domain.PaymentUnpaid,
		CheckoutURL: intent.CheckoutURL,
		RawResponse: intent.Raw,
		ExpiresAt:   &expires,
	}
	err = s.repo.WithTx(ctx, func(tx ordertx.Repository) error {
		locked, err := tx.GetOrderForUpdate(ctx, o.ID)
		if err != nil {
			return err
		}
		if locked == nil || locked.Status != domain.OrderPendingPayment {
			return fmt.Errorf("order %d is no longer waiting for payment: %w", o.ID, apperr.ErrInvalidState)
		}
		cur, err := tx.GetPaymentByOrderForUpdate(ctx, o.ID)
		if err != nil {
			return err
		}
		if cur != nil && cur.Status.Settled() {
			return fmt.Errorf("order %d already paid: %w", o.ID, apperr.ErrInvalidState)
		}
		return tx.UpsertPayment(ctx, &p)
	})
	if err != nil {
		return domain.Payment{}, err
	}

	s.logger.Info("checkout opened",
		logx.String("event", "checkout_opened"),
		logx.Int64("order_id", o.ID),
		logx.String("merchant_ref", p.MerchantRef),
		logx.String("method", method),
	)
	return p, nil
}

func (s *Service) payableOrder(ctx context.Context, q ordertx.Repository, actor domain.Actor, orderID int64) (*domain.Order, error) {
	o, err := q.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
	}
	if !actor.IsAdmin() && !actor.Is(o.UserID) {
		return nil, fmt.Errorf("checkout order %d: %w", orderID, apperr.ErrForbidden)
	}
	if o.Status != domain.OrderPendingPayment {
		return nil, fmt.Errorf("checkout order in status %s: %w", o.Status, apperr.ErrInvalidState)
	}
	return o, nil
}

// Refund asks the provider to refund a paid payment and marks it refunded
// only when the provider confirms.
func (s *Service) Refund(ctx context.Context, orderID int64) (domain.Payment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var p *domain.Payment
	err := s.repo.View(ctx, func(q ordertx.Repository) error {
		var err error
		p, err = q.GetPaymentByOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return domain.Payment{}, err
	}
	if p == nil {
		return domain.Payment{}, fmt.Errorf("payment of order %d: %w", orderID, apperr.ErrNotFound)
	}
	if p.Status != domain.PaymentPaid {
		return domain.Payment{}, fmt.Errorf("refund payment in status %s: %w", p.Status, apperr.ErrInvalidState)
	}

	res, err := s.gateway.RequestRefund(ctx, *p)
	if err != nil {
		return domain.Payment{}, apperr.Gateway("request refund", err)
	}
	if !res.Success {
		return domain.Payment{}, apperr.Gateway("request refund", ErrRefundRejected)
	}

	err = s.repo.WithTx(ctx, func(tx ordertx.Repository) error {
		cur, err := tx.GetPaymentByOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if cur == nil || cur.Status != domain.PaymentPaid {
			p = cur
			return nil
		}
		now := s.now()
		if err := tx.UpdatePaymentStatus(ctx, cur.ID, domain.PaymentRefunded, now); err != nil {
			return err
		}
		cur.Status = domain.PaymentRefunded
		cur.RefundedAt = &now
		p = cur
		return nil
	})
	if err != nil {
		return domain.Payment{}, err
	}

	s.logger.Info("payment refunded",
		logx.String("event", "payment_refunded"),
		logx.Int64("order_id", orderID),
		logx.String("merchant_ref", p.MerchantRef),
	)
	return *p, nil
}
