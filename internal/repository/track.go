package repository

import (
	"context"
	"fmt"

	"palmshell-dispatch/internal/domain"
)

// InsertTrackPoint appends a GPS ping; RecordedAt is taken from p when set.
func (r *TxRepo) InsertTrackPoint(ctx context.Context, p *domain.TrackPoint) error {
	err := r.q.QueryRow(ctx, `
        INSERT INTO delivery_tracks (delivery_id, lat, lng, recorded_at)
        VALUES ($1, $2, $3, COALESCE($4, now()))
        RETURNING id, recorded_at
    `, p.DeliveryID, p.Lat, p.Lng, nullTime(p.RecordedAt)).Scan(&p.ID, &p.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert track point for delivery %d: %w", p.DeliveryID, err)
	}
	return nil
}

// LatestTrackPoint returns the most recent ping.
func (r *TxRepo) LatestTrackPoint(ctx context.Context, deliveryID int64) (*domain.TrackPoint, error) {
	var p domain.TrackPoint
	err := r.q.QueryRow(ctx, `
        SELECT id, delivery_id, lat, lng, recorded_at
        FROM delivery_tracks
        WHERE delivery_id = $1
        ORDER BY recorded_at DESC, id DESC
        LIMIT 1
    `, deliveryID).Scan(&p.ID, &p.DeliveryID, &p.Lat, &p.Lng, &p.RecordedAt)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest track point of delivery %d: %w", deliveryID, err)
	}
	return &p, nil
}

// ListTrackPoints returns up to limit most recent pings in ascending time order.
func (r *TxRepo) ListTrackPoints(ctx context.Context, deliveryID int64, limit int) ([]domain.TrackPoint, error) {
	rows, err := r.q.Query(ctx, `
        SELECT id, delivery_id, lat, lng, recorded_at FROM (
            SELECT id, delivery_id, lat, lng, recorded_at
            FROM delivery_tracks
            WHERE delivery_id = $1
            ORDER BY recorded_at DESC, id DESC
            LIMIT $2
        ) t
        ORDER BY recorded_at, id
    `, deliveryID, limit)
	if err != nil {
		return nil, fmt.Errorf("list track points of delivery %d: %w", deliveryID, err)
	}
	defer rows.Close()

	var out []domain.TrackPoint
	for rows.Next() {
		var p domain.TrackPoint
		if err := rows.Scan(&p.ID, &p.DeliveryID, &p.Lat, &p.Lng, &p.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan track point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
