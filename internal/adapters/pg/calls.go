package pg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/denizrest/selforder/internal/domain"
)

// CreateWaiterCall records a new call unless the table already has one
// pending; repeated button presses collapse into the existing call.
func (r *Repository) CreateWaiterCall(ctx context.Context, tx pgx.Tx, call domain.WaiterCall) error {
	result, err := tx.Exec(ctx, `
		INSERT INTO waiter_calls (id, table_id, table_number, status, created_at)
		SELECT $1, $2, $3, 'pending', $4
		WHERE NOT EXISTS (
			SELECT 1 FROM waiter_calls WHERE table_id = $2 AND status = 'pending'
		)
	`, call.ID, call.TableID, call.TableNumber, call.CreatedAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *Repository) ListWaiterCalls(ctx context.Context, status *domain.CallStatus) ([]domain.WaiterCall, error) {
	query := `
		SELECT id, table_id, table_number, status, created_at, responded_at, waiter_id
		FROM waiter_calls`
	var args []interface{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC LIMIT 200`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls []domain.WaiterCall
	for rows.Next() {
		var c domain.WaiterCall
		var st string
		if err := rows.Scan(&c.ID, &c.TableID, &c.TableNumber, &st, &c.CreatedAt, &c.RespondedAt, &c.WaiterID); err != nil {
			return nil, err
		}
		if c.Status, err = domain.ParseCallStatus(st); err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

func (r *Repository) RespondWaiterCall(ctx context.Context, callID, waiterID uuid.UUID, now time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE waiter_calls SET status = 'responded', responded_at = $2, waiter_id = $3
		WHERE id = $1 AND status = 'pending'
	`, callID, now, waiterID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
