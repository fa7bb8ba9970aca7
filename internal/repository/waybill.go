package repository

import (
	"context"
	"fmt"

	"palmshell-dispatch/internal/domain"
)

// UpsertWaybill issues the order waybill or moves it to a new driver.
// An existing number is never replaced; empty notes keep the stored ones.
func (r *TxRepo) UpsertWaybill(ctx context.Context, w *domain.Waybill) error {
	err := r.q.QueryRow(ctx, `
        INSERT INTO waybills (order_id, driver_id, number, notes)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (order_id) DO UPDATE
        SET driver_id = EXCLUDED.driver_id,
            notes = COALESCE(NULLIF(EXCLUDED.notes, ''), waybills.notes)
        RETURNING id, number, notes, issued_at
    `, w.OrderID, w.DriverID, w.Number, w.Notes).Scan(&w.ID, &w.Number, &w.Notes, &w.IssuedAt)
	if err != nil {
		return fmt.Errorf("upsert waybill for order %d: %w", w.OrderID, err)
	}
	return nil
}

// GetWaybillByOrder returns the waybill of an order.
func (r *TxRepo) GetWaybillByOrder(ctx context.Context, orderID int64) (*domain.Waybill, error) {
	var w domain.Waybill
	err := r.q.QueryRow(ctx, `
        SELECT id, order_id, driver_id, number, notes, issued_at
        FROM waybills
        WHERE order_id = $1
    `, orderID).Scan(&w.ID, &w.OrderID, &w.DriverID, &w.Number, &w.Notes, &w.IssuedAt)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get waybill of order %d: %w", orderID, err)
	}
	return &w, nil
}
