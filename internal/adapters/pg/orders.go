package pg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/denizrest/selforder/internal/domain"
)

// CreateOrder inserts the order and its items inside the caller's
// transaction. A table with an open order rejects the new one with
// ErrActiveOrderExists; serializable isolation makes the check-then-insert
// safe against a concurrent submission for the same table.
func (r *Repository) CreateOrder(ctx context.Context, tx pgx.Tx, order domain.Order) error {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM orders
			WHERE table_id = $1 AND status IN ('pending', 'confirmed', 'preparing', 'ready')
		)
	`, order.TableID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrActiveOrderExists
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, table_id, table_number, status, subtotal, service_charge,
			discount, total, bonus_card, language, created_at, confirm_deadline)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, order.ID, order.TableID, order.TableNumber, order.Status, order.Subtotal,
		order.ServiceCharge, order.Discount, order.Total, nullIfEmpty(order.BonusCard),
		order.Language, order.CreatedAt, order.ConfirmDeadline)
	if err != nil {
		return err
	}

	for _, item := range order.Items {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, dish_id, name, price, quantity)
			VALUES ($1, $2, $3, $4, $5)
		`, order.ID, item.DishID, item.Name, item.Price, item.Quantity)
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE tables SET status = 'occupied' WHERE id = $1
	`, order.TableID)
	return err
}

const orderColumns = `
	id, table_id, table_number, status, subtotal, service_charge, discount, total,
	COALESCE(bonus_card, ''), language, created_at, confirm_deadline,
	confirmed_at, cancelled_at, auto_confirmed
`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var status string
	err := row.Scan(&o.ID, &o.TableID, &o.TableNumber, &status, &o.Subtotal,
		&o.ServiceCharge, &o.Discount, &o.Total, &o.BonusCard, &o.Language,
		&o.CreatedAt, &o.ConfirmDeadline, &o.ConfirmedAt, &o.CancelledAt, &o.AutoConfirmed)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if o.Status, err = domain.ParseOrderStatus(status); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repository) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT dish_id, name, price, quantity FROM order_items WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.DishID, &item.Name, &item.Price, &item.Quantity); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}
	return order, rows.Err()
}

// ListOrders returns orders newest first, optionally filtered by status.
func (r *Repository) ListOrders(ctx context.Context, status *domain.OrderStatus, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	args := []interface{}{limit}
	if status != nil {
		query += ` WHERE status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

// ConfirmOrder moves a pending order to confirmed. auto marks confirmations
// fired by the expiry worker rather than the diner.
func (r *Repository) ConfirmOrder(ctx context.Context, orderID uuid.UUID, auto bool, now time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = 'confirmed', confirmed_at = $2, auto_confirmed = $3
		WHERE id = $1 AND status = 'pending'
	`, orderID, now, auto)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return r.orderMissingOrConflict(ctx, orderID)
	}
	return nil
}

// CancelOrder withdraws a pending order while its confirmation window is
// still open. Past the deadline the cancellation is refused.
func (r *Repository) CancelOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, now time.Time) error {
	var deadline time.Time
	var status string
	var tableID uuid.UUID
	err := tx.QueryRow(ctx, `
		SELECT status, confirm_deadline, table_id FROM orders WHERE id = $1
	`, orderID).Scan(&status, &deadline, &tableID)
	if err == pgx.ErrNoRows {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	if status != string(domain.OrderPending) {
		return domain.ErrConflict
	}
	if !now.Before(deadline) {
		return domain.ErrWindowClosed
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders SET status = 'cancelled', cancelled_at = $2 WHERE id = $1
	`, orderID, now)
	if err != nil {
		return err
	}

	return r.releaseTableLocked(ctx, tx, tableID)
}

// UpdateOrderStatus is the waiter-side status progression. Closing statuses
// free the table when no other open order holds it.
func (r *Repository) UpdateOrderStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status domain.OrderStatus, now time.Time) error {
	var tableID uuid.UUID
	err := tx.QueryRow(ctx, `
		UPDATE orders SET status = $2,
			cancelled_at = CASE WHEN $2 = 'cancelled' THEN $3 ELSE cancelled_at END
		WHERE id = $1
		RETURNING table_id
	`, orderID, status, now).Scan(&tableID)
	if err == pgx.ErrNoRows {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}

	if !status.Open() {
		return r.releaseTableLocked(ctx, tx, tableID)
	}
	return nil
}

// releaseTableLocked frees a table once its last open order is gone.
func (r *Repository) releaseTableLocked(ctx context.Context, tx pgx.Tx, tableID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE tables SET status = 'available'
		WHERE id = $1 AND NOT EXISTS (
			SELECT 1 FROM orders
			WHERE table_id = $1 AND status IN ('pending', 'confirmed', 'preparing', 'ready')
		)
	`, tableID)
	return err
}

// ExpiredUnconfirmed returns pending orders whose confirmation window closed
// before now. The expiry worker auto-confirms them.
func (r *Repository) ExpiredUnconfirmed(ctx context.Context, now time.Time, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = 'pending' AND confirm_deadline <= $1
		ORDER BY confirm_deadline ASC LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

func (r *Repository) DashboardStats(ctx context.Context, dayStart time.Time) (*domain.DashboardStats, error) {
	var stats domain.DashboardStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM orders WHERE status IN ('pending', 'confirmed', 'preparing', 'ready')),
			(SELECT COUNT(*) FROM waiter_calls WHERE status = 'pending'),
			(SELECT COUNT(*) FROM tables WHERE status = 'occupied'),
			(SELECT COUNT(*) FROM tables),
			(SELECT COALESCE(SUM(total), 0) FROM orders
				WHERE status = 'served' AND created_at >= $1)
	`, dayStart).Scan(&stats.ActiveOrders, &stats.PendingCalls, &stats.OccupiedTables,
		&stats.TotalTables, &stats.RevenueToday)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *Repository) orderMissingOrConflict(ctx context.Context, orderID uuid.UUID) error {
	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
