package repository

import (
	"context"
	"fmt"

	"palmshell-dispatch/internal/domain"
)

const userColumns = `id, name, role, availability, vehicle_type, vehicle_number, push_token`

func (r *TxRepo) getUser(ctx context.Context, id int64, lock string) (*domain.User, error) {
	var u domain.User
	err := r.q.QueryRow(ctx, `
        SELECT `+userColumns+`
        FROM users
        WHERE id = $1
        `+lock, id).Scan(&u.ID, &u.Name, &u.Role, &u.Availability, &u.VehicleType, &u.VehicleNumber, &u.PushToken)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &u, nil
}

// GetUser returns a user.
func (r *TxRepo) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return r.getUser(ctx, id, "")
}

// GetUserForUpdate locks the user row; used to serialize driver availability.
func (r *TxRepo) GetUserForUpdate(ctx context.Context, id int64) (*domain.User, error) {
	return r.getUser(ctx, id, "FOR UPDATE")
}

// UpdateAvailability sets driver availability.
func (r *TxRepo) UpdateAvailability(ctx context.Context, id int64, a domain.Availability) error {
	ct, err := r.q.Exec(ctx, `
        UPDATE users
        SET availability = $2, updated_at = now()
        WHERE id = $1 AND role = 'driver'
    `, id, string(a))
	if err != nil {
		return fmt.Errorf("update driver %d availability: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("driver %d not found", id)
	}
	return nil
}

// UpdatePushToken stores the device token notifications are pushed to.
func (r *TxRepo) UpdatePushToken(ctx context.Context, id int64, token string) error {
	ct, err := r.q.Exec(ctx, `
        UPDATE users
        SET push_token = $2, updated_at = now()
        WHERE id = $1
    `, id, token)
	if err != nil {
		return fmt.Errorf("update user %d push token: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("user %d not found", id)
	}
	return nil
}

// ListDrivers returns drivers by name.
func (r *TxRepo) ListDrivers(ctx context.Context, onlyAvailable bool) ([]domain.User, error) {
	rows, err := r.q.Query(ctx, `
        SELECT `+userColumns+`
        FROM users
        WHERE role = 'driver' AND ($1 = false OR availability = 'available')
        ORDER BY name, id
    `, onlyAvailable)
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Role, &u.Availability, &u.VehicleType, &u.VehicleNumber, &u.PushToken); err != nil {
			return nil, fmt.Errorf("scan driver: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ListAdminIDs returns ids of every admin.
func (r *TxRepo) ListAdminIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.q.Query(ctx, `SELECT id FROM users WHERE role = 'admin' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan admin id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
