package repository

import (
	"context"
	"fmt"
	"time"

	"palmshell-dispatch/internal/domain"
)

const paymentColumns = `id, order_id, COALESCE(reference, ''), merchant_ref, method, amount, status,
        checkout_url, raw_response, expires_at, paid_at, refunded_at, created_at`

const byMerchantRef = `id = (SELECT payment_id FROM payment_refs WHERE merchant_ref = $1)`

func (r *TxRepo) getPayment(ctx context.Context, cond, lock string, arg any) (*domain.Payment, error) {
	var p domain.Payment
	err := r.q.QueryRow(ctx, `
        SELECT `+paymentColumns+`
        FROM payments
        WHERE `+cond+`
        `+lock, arg).Scan(
		&p.ID, &p.OrderID, &p.Reference, &p.MerchantRef, &p.Method, &p.Amount, &p.Status,
		&p.CheckoutURL, &p.RawResponse, &p.ExpiresAt, &p.PaidAt, &p.RefundedAt, &p.CreatedAt,
	)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment where %s: %w", cond, err)
	}
	return &p, nil
}

// GetPaymentByOrder returns the payment of an order.
func (r *TxRepo) GetPaymentByOrder(ctx context.Context, orderID int64) (*domain.Payment, error) {
	return r.getPayment(ctx, "order_id = $1", "", orderID)
}

// GetPaymentByOrderForUpdate locks the payment of an order.
func (r *TxRepo) GetPaymentByOrderForUpdate(ctx context.Context, orderID int64) (*domain.Payment, error) {
	return r.getPayment(ctx, "order_id = $1", "FOR UPDATE", orderID)
}

// GetPaymentByMerchantRef returns the payment that issued merchantRef,
// including refs replaced by a later checkout.
func (r *TxRepo) GetPaymentByMerchantRef(ctx context.Context, merchantRef string) (*domain.Payment, error) {
	return r.getPayment(ctx, byMerchantRef, "", merchantRef)
}

// GetPaymentByMerchantRefForUpdate locks the payment that issued merchantRef.
func (r *TxRepo) GetPaymentByMerchantRefForUpdate(ctx context.Context, merchantRef string) (*domain.Payment, error) {
	return r.getPayment(ctx, byMerchantRef, "FOR UPDATE", merchantRef)
}

// UpsertPayment creates the order payment or replaces its intent.
func (r *TxRepo) UpsertPayment(ctx context.Context, p *domain.Payment) error {
	var ref any
	if p.Reference != "" {
		ref = p.Reference
	}
	err := r.q.QueryRow(ctx, `
        INSERT INTO payments (order_id, reference, merchant_ref, method, amount, status, checkout_url, raw_response, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (order_id) DO UPDATE
        SET reference = EXCLUDED.reference,
            merchant_ref = EXCLUDED.merchant_ref,
            method = EXCLUDED.method,
            amount = EXCLUDED.amount,
            status = EXCLUDED.status,
            checkout_url = EXCLUDED.checkout_url,
            raw_response = EXCLUDED.raw_response,
            expires_at = EXCLUDED.expires_at,
            updated_at = now()
        RETURNING id, created_at
    `, p.OrderID, ref, p.MerchantRef, p.Method, p.Amount, string(p.Status), p.CheckoutURL, p.RawResponse, p.ExpiresAt,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert payment for order %d: %w", p.OrderID, err)
	}

	if _, err := r.q.Exec(ctx, `
        INSERT INTO payment_refs (merchant_ref, payment_id)
        VALUES ($1, $2)
        ON CONFLICT (merchant_ref) DO NOTHING
    `, p.MerchantRef, p.ID); err != nil {
		return fmt.Errorf("record merchant ref %s: %w", p.MerchantRef, err)
	}
	return nil
}

// UpdatePaymentStatus writes the status; paid and refunded also stamp their timestamp.
func (r *TxRepo) UpdatePaymentStatus(ctx context.Context, id int64, status domain.PaymentStatus, at time.Time) error {
	ct, err := r.q.Exec(ctx, `
        UPDATE payments
        SET status = $2,
            paid_at = CASE WHEN $2 = 'paid' THEN $3 ELSE paid_at END,
            refunded_at = CASE WHEN $2 = 'refunded' THEN $3 ELSE refunded_at END,
            updated_at = now()
        WHERE id = $1
    `, id, string(status), at)
	if err != nil {
		return fmt.Errorf("update payment %d status: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("payment %d not found", id)
	}
	return nil
}
