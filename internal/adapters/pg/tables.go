package pg

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/denizrest/selforder/internal/domain"
)

func (r *Repository) ListTables(ctx context.Context) ([]domain.Table, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, table_number, seats, status FROM tables ORDER BY table_number
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []domain.Table
	for rows.Next() {
		var t domain.Table
		var status string
		if err := rows.Scan(&t.ID, &t.TableNumber, &t.Seats, &status); err != nil {
			return nil, err
		}
		if t.Status, err = domain.ParseTableStatus(status); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (r *Repository) GetTableByNumber(ctx context.Context, tableNumber int) (*domain.Table, error) {
	var t domain.Table
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT id, table_number, seats, status, COALESCE(pin, '')
		FROM tables WHERE table_number = $1
	`, tableNumber).Scan(&t.ID, &t.TableNumber, &t.Seats, &status, &t.PIN)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if t.Status, err = domain.ParseTableStatus(status); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repository) UpdateTableStatus(ctx context.Context, tableID uuid.UUID, status domain.TableStatus) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE tables SET status = $2 WHERE id = $1
	`, tableID, status)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// VerifyTablePIN checks the per-table PIN. A table without a PIN accepts
// any input.
func (r *Repository) VerifyTablePIN(ctx context.Context, tableNumber int, pin string) error {
	table, err := r.GetTableByNumber(ctx, tableNumber)
	if err != nil {
		return err
	}
	if table.PIN != "" && table.PIN != pin {
		return domain.ErrPINInvalid
	}
	return nil
}
