package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"palmshell-dispatch/internal/domain"
)

const deliveryColumns = `id, order_id, driver_id, status, distance_km, estimated_minutes,
        assigned_at, completed_at, updated_at`

func scanDelivery(row pgx.Row) (*domain.DeliveryOrder, error) {
	var d domain.DeliveryOrder
	err := row.Scan(&d.ID, &d.OrderID, &d.DriverID, &d.Status, &d.DistanceKm, &d.EstimatedMinutes,
		&d.AssignedAt, &d.CompletedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// UpsertDelivery creates or replaces the delivery order of d.OrderID.
func (r *TxRepo) UpsertDelivery(ctx context.Context, d *domain.DeliveryOrder) error {
	err := r.q.QueryRow(ctx, `
        INSERT INTO delivery_orders (order_id, driver_id, status, assigned_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (order_id) DO UPDATE
        SET driver_id = EXCLUDED.driver_id,
            status = EXCLUDED.status,
            assigned_at = EXCLUDED.assigned_at,
            completed_at = NULL,
            updated_at = now()
        RETURNING id, updated_at
    `, d.OrderID, d.DriverID, string(d.Status), d.AssignedAt).Scan(&d.ID, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert delivery for order %d: %w", d.OrderID, err)
	}
	d.CompletedAt = nil
	return nil
}

func (r *TxRepo) getDelivery(ctx context.Context, where, lock string, arg int64) (*domain.DeliveryOrder, error) {
	d, err := scanDelivery(r.q.QueryRow(ctx, `
        SELECT `+deliveryColumns+`
        FROM delivery_orders
        WHERE `+where+` = $1
        `+lock, arg))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get delivery by %s %d: %w", where, arg, err)
	}
	return d, nil
}

// GetDelivery returns a delivery order.
func (r *TxRepo) GetDelivery(ctx context.Context, id int64) (*domain.DeliveryOrder, error) {
	return r.getDelivery(ctx, "id", "", id)
}

// GetDeliveryForUpdate locks the delivery order row.
func (r *TxRepo) GetDeliveryForUpdate(ctx context.Context, id int64) (*domain.DeliveryOrder, error) {
	return r.getDelivery(ctx, "id", "FOR UPDATE", id)
}

// GetDeliveryByOrder returns the delivery order of an order.
func (r *TxRepo) GetDeliveryByOrder(ctx context.Context, orderID int64) (*domain.DeliveryOrder, error) {
	return r.getDelivery(ctx, "order_id", "", orderID)
}

// UpdateDeliveryStatus writes the status and, when given, the completion time.
func (r *TxRepo) UpdateDeliveryStatus(ctx context.Context, id int64, status domain.DeliveryStatus, completedAt *time.Time) error {
	ct, err := r.q.Exec(ctx, `
        UPDATE delivery_orders
        SET status = $2, completed_at = COALESCE($3, completed_at), updated_at = now()
        WHERE id = $1
    `, id, string(status), completedAt)
	if err != nil {
		return fmt.Errorf("update delivery %d status: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("delivery %d not found", id)
	}
	return nil
}

// UpdateDeliveryEstimate stores the last routing estimate.
func (r *TxRepo) UpdateDeliveryEstimate(ctx context.Context, id int64, est domain.Estimate) error {
	_, err := r.q.Exec(ctx, `
        UPDATE delivery_orders
        SET distance_km = $2, estimated_minutes = $3, updated_at = now()
        WHERE id = $1
    `, id, est.DistanceKm, est.DurationMin)
	if err != nil {
		return fmt.Errorf("update delivery %d estimate: %w", id, err)
	}
	return nil
}

// ListDeliveriesByDriver returns a driver's deliveries, newest first.
func (r *TxRepo) ListDeliveriesByDriver(ctx context.Context, driverID int64) ([]domain.DeliveryOrder, error) {
	rows, err := r.q.Query(ctx, `
        SELECT `+deliveryColumns+`
        FROM delivery_orders
        WHERE driver_id = $1
        ORDER BY assigned_at DESC, id DESC
    `, driverID)
	if err != nil {
		return nil, fmt.Errorf("list deliveries of driver %d: %w", driverID, err)
	}
	defer rows.Close()

	var out []domain.DeliveryOrder
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}
