package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/ports/ordertx"
)

// ConstraintOrderCode is the unique index on orders.code.
const ConstraintOrderCode = "orders_code_key"

const orderColumns = `o.id, o.user_id, o.code, o.total, o.dest_lat, o.dest_lng, o.dest_address,
        o.status, o.notes, o.created_at, o.updated_at, o.cancelled_at, o.arrived_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.Code, &o.Total,
		&o.Destination.Lat, &o.Destination.Lng, &o.Destination.Address,
		&o.Status, &o.Notes, &o.CreatedAt, &o.UpdatedAt, &o.CancelledAt, &o.ArrivedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// InsertOrder inserts the order and its items, filling generated ids.
func (r *TxRepo) InsertOrder(ctx context.Context, o *domain.Order) error {
	err := r.q.QueryRow(ctx, `
        INSERT INTO orders (user_id, code, total, dest_lat, dest_lng, dest_address, status, notes)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at, updated_at
    `, o.UserID, o.Code, o.Total, o.Destination.Lat, o.Destination.Lng, o.Destination.Address,
		string(o.Status), o.Notes,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if IsDuplicate(err, ConstraintOrderCode) {
			return fmt.Errorf("insert order %s: %w", o.Code, ordertx.ErrDuplicateCode)
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		err := r.q.QueryRow(ctx, `
            INSERT INTO order_items (order_id, product_id, product_name, price, quantity, subtotal)
            VALUES ($1, $2, $3, $4, $5, $6)
            RETURNING id
        `, it.OrderID, it.ProductID, it.ProductName, it.Price, it.Quantity, it.Subtotal).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("insert order item (product %d): %w", it.ProductID, err)
		}
	}
	return nil
}

// GetOrder returns the order with its items.
func (r *TxRepo) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return r.getOrder(ctx, id, "")
}

// GetOrderForUpdate locks the order row and returns it with its items.
func (r *TxRepo) GetOrderForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	return r.getOrder(ctx, id, "FOR UPDATE OF o")
}

func (r *TxRepo) getOrder(ctx context.Context, id int64, lock string) (*domain.Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, `
        SELECT `+orderColumns+`
        FROM orders o
        WHERE o.id = $1
        `+lock, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}

	items, err := r.itemsFor(ctx, []int64{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

// ListOrders returns orders newest first.
func (r *TxRepo) ListOrders(ctx context.Context, q ordertx.OrderQuery) ([]domain.Order, error) {
	var (
		where []string
		args  []any
		join  string
	)
	if q.UserID > 0 {
		args = append(args, q.UserID)
		where = append(where, fmt.Sprintf("o.user_id = $%d", len(args)))
	}
	if q.DriverID > 0 {
		join = "JOIN delivery_orders d ON d.order_id = o.id"
		args = append(args, q.DriverID)
		where = append(where, fmt.Sprintf("d.driver_id = $%d", len(args)))
	}
	if q.Status != "" {
		args = append(args, string(q.Status))
		where = append(where, fmt.Sprintf("o.status = $%d", len(args)))
	}

	sql := "SELECT " + orderColumns + " FROM orders o " + join
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY o.created_at DESC, o.id DESC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		sql += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var (
		out []domain.Order
		ids []int64
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if len(ids) == 0 {
		return out, nil
	}

	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func (r *TxRepo) itemsFor(ctx context.Context, orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	rows, err := r.q.Query(ctx, `
        SELECT id, order_id, product_id, product_name, price, quantity, subtotal
        FROM order_items
        WHERE order_id = ANY($1)
        ORDER BY order_id, id
    `, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Price, &it.Quantity, &it.Subtotal); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

// UpdateOrderStatus writes the status and any lifecycle timestamp given.
func (r *TxRepo) UpdateOrderStatus(ctx context.Context, c ordertx.OrderStatusChange) error {
	ct, err := r.q.Exec(ctx, `
        UPDATE orders
        SET status = $2,
            cancelled_at = COALESCE($3, cancelled_at),
            arrived_at = COALESCE($4, arrived_at),
            updated_at = now()
        WHERE id = $1
    `, c.ID, string(c.Status), c.CancelledAt, c.ArrivedAt)
	if err != nil {
		return fmt.Errorf("update order %d status: %w", c.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("order %d not found", c.ID)
	}
	return nil
}
