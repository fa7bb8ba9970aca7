package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"palmshell-dispatch/internal/domain"
)

// AppendActivity writes an audit entry.
func (r *TxRepo) AppendActivity(ctx context.Context, e *domain.ActivityEntry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("marshal activity details: %w", err)
	}
	var actorID, orderID any
	if e.ActorID > 0 {
		actorID = e.ActorID
	}
	if e.OrderID > 0 {
		orderID = e.OrderID
	}
	err = r.q.QueryRow(ctx, `
        INSERT INTO activity_logs (actor_id, action, order_id, details)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at
    `, actorID, e.Action, orderID, details).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append activity %s: %w", e.Action, err)
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
