package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"palmshell-dispatch/internal/apperr"
	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/logx"
	"palmshell-dispatch/internal/ports/ordertx"
	"palmshell-dispatch/internal/service/notify"
)

// Provider callback statuses.
const (
	CallbackPaid    = "PAID"
	CallbackFailed  = "FAILED"
	CallbackExpired = "EXPIRED"
	CallbackRefund  = "REFUND"
)

// Callback is the part of the provider callback the core acts on.
type Callback struct {
	Reference   string `json:"reference"`
	MerchantRef string `json:"merchant_ref"`
	Status      string `json:"status"`
	TotalAmount int64  `json:"total_amount"`
}

// ParseCallback decodes and checks a callback body.
func ParseCallback(body []byte) (Callback, error) {
	var cb Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return Callback{}, fmt.Errorf("decode callback: %w: %w", apperr.ErrInvalid, err)
	}
	cb.MerchantRef = strings.TrimSpace(cb.MerchantRef)
	cb.Reference = strings.TrimSpace(cb.Reference)
	cb.Status = strings.ToUpper(strings.TrimSpace(cb.Status))
	if cb.MerchantRef == "" || cb.Status == "" {
		return Callback{}, fmt.Errorf("callback without merchant_ref or status: %w", apperr.ErrInvalid)
	}
	switch cb.Status {
	case CallbackPaid, CallbackFailed, CallbackExpired, CallbackRefund:
	default:
		return Callback{}, fmt.Errorf("unknown callback status %q: %w", cb.Status, apperr.ErrInvalid)
	}
	return cb, nil
}

// DedupKey is the replay-protection key of a callback.
func (c Callback) DedupKey() string {
	ref := c.Reference
	if ref == "" {
		ref = c.MerchantRef
	}
	return "dedup:callback:" + ref + ":" + c.Status
}

type callbackOutcome struct {
	payment    domain.Payment
	order      *domain.Order
	changed    bool
	orphaned   bool
	superseded bool
}

// HandleCallback verifies a provider callback and applies it. Replays are no-ops.
// A paid payment is never moved back to unpaid, failed or expired.
func (s *Service) HandleCallback(ctx context.Context, in domain.CallbackInput) (domain.Payment, error) {
	if !s.gateway.VerifyCallback(in.Signature, in.Body) {
		return domain.Payment{}, fmt.Errorf("callback signature: %w", apperr.ErrForbidden)
	}
	cb, err := ParseCallback(in.Body)
	if err != nil {
		return domain.Payment{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := cb.DedupKey()
	if s.dedup != nil {
		first, err := s.dedup.Claim(ctx, key)
		switch {
		case err != nil:
			s.logger.Warn("callback dedup unavailable", logx.String("key", key), logx.Err(err))
		case !first:
			s.logger.Info("callback replay ignored",
				logx.String("event", "callback_replay"),
				logx.String("merchant_ref", cb.MerchantRef),
				logx.String("status", cb.Status),
			)
			return s.paymentByRef(ctx, cb.MerchantRef)
		}
	}

	out, err := s.applyCallback(ctx, cb)
	if err != nil {
		if cb.Status == CallbackPaid && errors.Is(err, apperr.ErrNotFound) {
			s.alertUnmatched(ctx, cb)
		}
		if s.dedup != nil {
			if ferr := s.dedup.Forget(ctx, key); ferr != nil {
				s.logger.Warn("callback dedup release failed", logx.String("key", key), logx.Err(ferr))
			}
		}
		return domain.Payment{}, err
	}

	s.logger.Info("payment callback applied",
		logx.String("event", "payment_callback"),
		logx.String("merchant_ref", cb.MerchantRef),
		logx.String("status", cb.Status),
		logx.Bool("changed", out.changed),
		logx.Bool("superseded", out.superseded),
	)
	if out.changed && cb.Status == CallbackPaid && out.order != nil {
		data := map[string]string{
			"order_id": strconv.FormatInt(out.order.ID, 10),
			"code":     out.order.Code,
		}
		if out.orphaned {
			s.notify.Admins(ctx, notify.Notification{
				Kind:  notify.KindRefundFailed,
				Title: "Payment for cancelled order",
				Body:  fmt.Sprintf("Order %s was paid after cancellation and needs a refund", out.order.Code),
				Data:  data,
			})
		} else {
			s.notify.User(ctx, out.order.UserID, notify.Notification{
				Kind:  notify.KindPaymentPaid,
				Title: "Payment Received",
				Body:  fmt.Sprintf("Payment for order %s has been received", out.order.Code),
				Data:  data,
			})
		}
	}
	return out.payment, nil
}

func (s *Service) applyCallback(ctx context.Context, cb Callback) (callbackOutcome, error) {
	var out callbackOutcome
	err := s.repo.WithTx(ctx, func(tx ordertx.Repository) error {
		p, err := tx.GetPaymentByMerchantRefForUpdate(ctx, cb.MerchantRef)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("payment %s: %w", cb.MerchantRef, apperr.ErrNotFound)
		}
		out.payment = *p
		if p.MerchantRef != cb.MerchantRef {
			// A later checkout replaced this intent. Only money arriving on it matters.
			out.superseded = true
			if cb.Status != CallbackPaid {
				return nil
			}
			s.logger.Warn("payment received on a replaced checkout",
				logx.String("event", "superseded_intent_paid"),
				logx.String("merchant_ref", cb.MerchantRef),
				logx.String("current_merchant_ref", p.MerchantRef),
				logx.Int64("order_id", p.OrderID),
			)
		} else if cb.Reference != "" && p.Reference != "" && cb.Reference != p.Reference {
			return fmt.Errorf("callback reference %s does not match payment: %w", cb.Reference, apperr.ErrInvalid)
		}

		now := s.now()
		switch cb.Status {
		case CallbackPaid:
			if p.Status.Settled() {
				return nil
			}
			if cb.TotalAmount != p.Amount {
				return fmt.Errorf("paid amount %d, expected %d: %w", cb.TotalAmount, p.Amount, apperr.ErrInvalidState)
			}
			if err := tx.UpdatePaymentStatus(ctx, p.ID, domain.PaymentPaid, now); err != nil {
				return err
			}
			out.payment.Status, out.payment.PaidAt = domain.PaymentPaid, &now
			out.changed = true
			return s.markOrderPaid(ctx, tx, &out)

		case CallbackFailed, CallbackExpired:
			next := domain.PaymentFailed
			if cb.Status == CallbackExpired {
				next = domain.PaymentExpired
			}
			if p.Status.Settled() || p.Status == next {
				return nil
			}
			if err := tx.UpdatePaymentStatus(ctx, p.ID, next, now); err != nil {
				return err
			}
			out.payment.Status = next
			out.changed = true
			return nil

		case CallbackRefund:
			if p.Status == domain.PaymentRefunded {
				return nil
			}
			if err := tx.UpdatePaymentStatus(ctx, p.ID, domain.PaymentRefunded, now); err != nil {
				return err
			}
			out.payment.Status, out.payment.RefundedAt = domain.PaymentRefunded, &now
			out.changed = true
			return nil
		}
		return nil
	})
	return out, err
}

func (s *Service) markOrderPaid(ctx context.Context, tx ordertx.Repository, out *callbackOutcome) error {
	o, err := tx.GetOrderForUpdate(ctx, out.payment.OrderID)
	if err != nil {
		return err
	}
	if o == nil {
		return fmt.Errorf("order %d of payment: %w", out.payment.OrderID, apperr.ErrNotFound)
	}
	out.order = o

	switch o.Status {
	case domain.OrderPendingPayment:
		if err := tx.UpdateOrderStatus(ctx, ordertx.OrderStatusChange{ID: o.ID, Status: domain.OrderPending}); err != nil {
			return err
		}
		o.Status = domain.OrderPending
	case domain.OrderCancelled:
		out.orphaned = true
		s.logger.Warn("payment received for cancelled order",
			logx.String("event", "paid_after_cancel"),
			logx.Int64("order_id", o.ID),
		)
	}

	return tx.AppendActivity(ctx, &domain.ActivityEntry{
		Action:  domain.ActionPaymentPaid,
		OrderID: o.ID,
		Details: map[string]any{
			"merchant_ref": out.payment.MerchantRef,
			"reference":    out.payment.Reference,
			"amount":       out.payment.Amount,
		},
	})
}

// alertUnmatched reports money that arrived for a merchant ref this system never issued.
func (s *Service) alertUnmatched(ctx context.Context, cb Callback) {
	s.logger.Error("paid callback for unknown payment",
		logx.String("event", "payment_unmatched"),
		logx.String("merchant_ref", cb.MerchantRef),
		logx.String("reference", cb.Reference),
		logx.Int64("amount", cb.TotalAmount),
	)
	s.notify.Admins(ctx, notify.Notification{
		Kind:  notify.KindPaymentUnmatched,
		Title: "Unmatched payment",
		Body:  fmt.Sprintf("Payment %s of %d was received but matches no order", cb.MerchantRef, cb.TotalAmount),
		Data: map[string]string{
			"merchant_ref": cb.MerchantRef,
			"reference":    cb.Reference,
		},
	})
}

func (s *Service) paymentByRef(ctx context.Context, merchantRef string) (domain.Payment, error) {
	var p *domain.Payment
	err := s.repo.View(ctx, func(q ordertx.Repository) error {
		var err error
		p, err = q.GetPaymentByMerchantRef(ctx, merchantRef)
		return err
	})
	if err != nil {
		return domain.Payment{}, err
	}
	if p == nil {
		return domain.Payment{}, fmt.Errorf("payment %s: %w", merchantRef, apperr.ErrNotFound)
	}
	return *p, nil
}
