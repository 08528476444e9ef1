package pg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/denizrest/selforder/internal/domain"
)

// StartShift opens a shift for the waiter. A waiter with an open shift
// cannot start a second one.
func (r *Repository) StartShift(ctx context.Context, waiterID uuid.UUID, now time.Time) (*domain.StaffShift, error) {
	shift := domain.StaffShift{
		ID:        uuid.New(),
		WaiterID:  waiterID,
		StartTime: now,
	}
	result, err := r.pool.Exec(ctx, `
		INSERT INTO staff_shifts (id, waiter_id, start_time)
		SELECT $1, $2, $3
		WHERE NOT EXISTS (
			SELECT 1 FROM staff_shifts WHERE waiter_id = $2 AND end_time IS NULL
		)
	`, shift.ID, shift.WaiterID, shift.StartTime)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected() == 0 {
		return nil, domain.ErrConflict
	}
	return &shift, nil
}

func (r *Repository) EndShift(ctx context.Context, waiterID uuid.UUID, now time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE staff_shifts SET end_time = $2
		WHERE waiter_id = $1 AND end_time IS NULL
	`, waiterID, now)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) CurrentShift(ctx context.Context, waiterID uuid.UUID) (*domain.StaffShift, error) {
	var shift domain.StaffShift
	err := r.pool.QueryRow(ctx, `
		SELECT id, waiter_id, start_time, end_time
		FROM staff_shifts WHERE waiter_id = $1 AND end_time IS NULL
	`, waiterID).Scan(&shift.ID, &shift.WaiterID, &shift.StartTime, &shift.EndTime)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &shift, nil
}
