package pg_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/denizrest/selforder/internal/adapters/pg"
	"github.com/denizrest/selforder/internal/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS tables (
		id UUID PRIMARY KEY,
		table_number INT UNIQUE NOT NULL,
		seats INT NOT NULL DEFAULT 4,
		status TEXT NOT NULL CHECK (status IN ('available', 'occupied', 'reserved')),
		pin TEXT
	);
	CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		table_id UUID NOT NULL,
		table_number INT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending', 'confirmed', 'preparing', 'ready', 'served', 'cancelled')),
		subtotal DOUBLE PRECISION NOT NULL,
		service_charge DOUBLE PRECISION NOT NULL,
		discount DOUBLE PRECISION NOT NULL,
		total DOUBLE PRECISION NOT NULL,
		bonus_card TEXT,
		language TEXT NOT NULL DEFAULT 'ru',
		created_at TIMESTAMPTZ NOT NULL,
		confirm_deadline TIMESTAMPTZ NOT NULL,
		confirmed_at TIMESTAMPTZ,
		cancelled_at TIMESTAMPTZ,
		auto_confirmed BOOLEAN NOT NULL DEFAULT FALSE
	);
	CREATE TABLE IF NOT EXISTS order_items (
		order_id UUID NOT NULL,
		dish_id UUID NOT NULL,
		name TEXT NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		quantity INT NOT NULL,
		PRIMARY KEY (order_id, dish_id)
	);
	CREATE TABLE IF NOT EXISTS waiter_calls (
		id UUID PRIMARY KEY,
		table_id UUID NOT NULL,
		table_number INT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending', 'responded', 'closed')),
		created_at TIMESTAMPTZ NOT NULL,
		responded_at TIMESTAMPTZ,
		waiter_id UUID
	);
	CREATE TABLE IF NOT EXISTS staff_shifts (
		id UUID PRIMARY KEY,
		waiter_id UUID NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ
	);
	CREATE TABLE IF NOT EXISTS bonus_cards (
		card_number TEXT PRIMARY KEY,
		discount_percent DOUBLE PRECISION NOT NULL,
		is_active BOOLEAN NOT NULL,
		expires_at TIMESTAMPTZ
	);
	CREATE TABLE IF NOT EXISTS outbox (
		id UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id UUID NOT NULL,
		event_type TEXT NOT NULL,
		payload_json JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		published_at TIMESTAMPTZ,
		status TEXT NOT NULL,
		dedupe_key TEXT NOT NULL DEFAULT ''
	);
`

func setupRepo(t *testing.T) (context.Context, *pgxpool.Pool, *pg.Repository) {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "selforder",
				"POSTGRES_PASSWORD": "selforder",
				"POSTGRES_DB":       "selforder",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatal(err)
	}

	dsn := fmt.Sprintf("postgres://selforder:selforder@%s:%s/selforder?sslmode=disable", host, port.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, schema); err != nil {
		t.Fatal(err)
	}

	return ctx, pool, pg.NewRepository(pool)
}

func seedTable(t *testing.T, ctx context.Context, pool *pgxpool.Pool, number int, pin string) domain.Table {
	t.Helper()
	table := domain.Table{ID: uuid.New(), TableNumber: number, Seats: 4, Status: domain.TableAvailable, PIN: pin}
	_, err := pool.Exec(ctx, `
		INSERT INTO tables (id, table_number, seats, status, pin) VALUES ($1, $2, $3, 'available', NULLIF($4, ''))
	`, table.ID, table.TableNumber, table.Seats, pin)
	if err != nil {
		t.Fatal(err)
	}
	return table
}

func pendingOrder(table domain.Table, window time.Duration) domain.Order {
	now := time.Now()
	return domain.Order{
		ID:          uuid.New(),
		TableID:     table.ID,
		TableNumber: table.TableNumber,
		Status:      domain.OrderPending,
		Items: []domain.OrderItem{
			{DishID: uuid.New(), Name: "Рыба на гриле", Price: 65, Quantity: 2},
		},
		Subtotal:        130,
		ServiceCharge:   6.5,
		Discount:        0,
		Total:           136.5,
		Language:        "ru",
		CreatedAt:       now,
		ConfirmDeadline: now.Add(window),
	}
}

func TestCreateOrderRejectsSecondForSameTable(t *testing.T) {
	ctx, pool, repo := setupRepo(t)
	table := seedTable(t, ctx, pool, 5, "")

	first := pendingOrder(table, 5*time.Minute)
	err := repo.WithTx(ctx, func(tx pgxv5.Tx) error {
		return repo.CreateOrder(ctx, tx, first)
	})
	if err != nil {
		t.Fatalf("first order: %v", err)
	}

	second := pendingOrder(table, 5*time.Minute)
	err = repo.WithTx(ctx, func(tx pgxv5.Tx) error {
		return repo.CreateOrder(ctx, tx, second)
	})
	if !errors.Is(err, domain.ErrActiveOrderExists) {
		t.Fatalf("expected ErrActiveOrderExists, got %v", err)
	}

	got, err := repo.GetTableByNumber(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.TableOccupied {
		t.Errorf("table status = %s, want occupied", got.Status)
	}

	fetched, err := repo.GetOrder(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(fetched.Items) != 1 || fetched.Total != 136.5 {
		t.Errorf("fetched order = %+v", fetched)
	}
}

func TestCancelOrderWindow(t *testing.T) {
	ctx, pool, repo := setupRepo(t)
	table := seedTable(t, ctx, pool, 3, "")

	order := pendingOrder(table, 5*time.Minute)
	err := repo.WithTx(ctx, func(tx pgxv5.Tx) error {
		return repo.CreateOrder(ctx, tx, order)
	})
	if err != nil {
		t.Fatal(err)
	}

	err = repo.WithTx(ctx, func(tx pgxv5.Tx) error {
		return repo.CancelOrder(ctx, tx, order.ID, time.Now())
	})
	if err != nil {
		t.Fatalf("cancel inside window: %v", err)
	}

	fetched, err := repo.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fetched.Status != domain.OrderCancelled || fetched.CancelledAt == nil {
		t.Errorf("order after cancel = %+v", fetched)
	}

	got, err := repo.GetTableByNumber(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.TableAvailable {
		t.Errorf("table status = %s, want available", got.Status)
	}
}

func TestCancelOrderAfterDeadline(t *testing.T) {
	ctx, pool, repo := setupRepo(t)
	table := seedTable(t, ctx, pool, 4, "")

	order := pendingOrder(table, -time.Minute)
	err := repo.WithTx(ctx, func(tx pgxv5.Tx) error {
		return repo.CreateOrder(ctx, tx, order)
	})
	if err != nil {
		t.Fatal(err)
	}

	err = repo.WithTx(ctx, func(tx pgxv5.Tx) error {
		return repo.CancelOrder(ctx, tx, order.ID, time.Now())
	})
	if !errors.Is(err, domain.ErrWindowClosed) {
		t.Fatalf("expected ErrWindowClosed, got %v", err)
	}
}

func TestConfirmOrderAndExpiredScan(t *testing.T) {
	ctx, pool, repo := setupRepo(t)
	table := seedTable(t, ctx, pool, 6, "")

	order := pendingOrder(table, -time.Minute)
	err := repo.WithTx(ctx, func(tx pgxv5.Tx) error {
		return repo.CreateOrder(ctx, tx, order)
	})
	if err != nil {
		t.Fatal(err)
	}

	expired, err := repo.ExpiredUnconfirmed(ctx, time.Now(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(expired) != 1 || expired[0].ID != order.ID {
		t.Fatalf("expired = %+v", expired)
	}

	if err := repo.ConfirmOrder(ctx, order.ID, true, time.Now()); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	fetched, err := repo.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fetched.Status != domain.OrderConfirmed || !fetched.AutoConfirmed || fetched.ConfirmedAt == nil {
		t.Errorf("order after auto-confirm = %+v", fetched)
	}

	// Confirming a non-pending order is a conflict, not a silent no-op.
	err = repo.ConfirmOrder(ctx, order.ID, false, time.Now())
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	expired, err = repo.ExpiredUnconfirmed(ctx, time.Now(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(expired) != 0 {
		t.Errorf("expired after confirm = %+v", expired)
	}
}

func TestUpdateOrderStatusFreesTable(t *testing.T) {
	ctx, pool, repo := setupRepo(t)
	table := seedTable(t, ctx, pool, 8, "")

	order := pendingOrder(table, 5*time.Minute)
	err := repo.WithTx(ctx, func(tx pgxv5.Tx) error {
		return repo.CreateOrder(ctx, tx, order)
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, status := range []domain.OrderStatus{domain.OrderConfirmed, domain.OrderPreparing, domain.OrderReady} {
		err = repo.WithTx(ctx, func(tx pgxv5.Tx) error {
			return repo.UpdateOrderStatus(ctx, tx, order.ID, status, time.Now())
		})
		if err != nil {
			t.Fatalf("status %s: %v", status, err)
		}
		got, err := repo.GetTableByNumber(ctx, 8)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != domain.TableOccupied {
			t.Errorf("table freed too early at status %s", status)
		}
	}

	err = repo.WithTx(ctx, func(tx pgxv5.Tx) error {
		return repo.UpdateOrderStatus(ctx, tx, order.ID, domain.OrderServed, time.Now())
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := repo.GetTableByNumber(ctx, 8)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.TableAvailable {
		t.Errorf("table status after served = %s, want available", got.Status)
	}
}

func TestVerifyTablePIN(t *testing.T) {
	ctx, pool, repo := setupRepo(t)
	seedTable(t, ctx, pool, 2, "4321")
	seedTable(t, ctx, pool, 9, "")

	if err := repo.VerifyTablePIN(ctx, 2, "4321"); err != nil {
		t.Errorf("correct pin: %v", err)
	}
	if err := repo.VerifyTablePIN(ctx, 2, "0000"); !errors.Is(err, domain.ErrPINInvalid) {
		t.Errorf("wrong pin: %v", err)
	}
	if err := repo.VerifyTablePIN(ctx, 9, "anything"); err != nil {
		t.Errorf("pinless table: %v", err)
	}
	if err := repo.VerifyTablePIN(ctx, 99, "4321"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown table: %v", err)
	}
}

func TestWaiterCallDedupe(t *testing.T) {
	ctx, pool, repo := setupRepo(t)
	table := seedTable(t, ctx, pool, 7, "")

	call := domain.WaiterCall{ID: uuid.New(), TableID: table.ID, TableNumber: 7, Status: domain.CallPending, CreatedAt: time.Now()}
	err := repo.WithTx(ctx, func(tx pgxv5.Tx) error {
		return repo.CreateWaiterCall(ctx, tx, call)
	})
	if err != nil {
		t.Fatal(err)
	}

	dup := domain.WaiterCall{ID: uuid.New(), TableID: table.ID, TableNumber: 7, Status: domain.CallPending, CreatedAt: time.Now()}
	err = repo.WithTx(ctx, func(tx pgxv5.Tx) error {
		return repo.CreateWaiterCall(ctx, tx, dup)
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate call, got %v", err)
	}

	waiterID := uuid.New()
	if err := repo.RespondWaiterCall(ctx, call.ID, waiterID, time.Now()); err != nil {
		t.Fatal(err)
	}

	// Once responded, a new call for the same table is accepted again.
	err = repo.WithTx(ctx, func(tx pgxv5.Tx) error {
		return repo.CreateWaiterCall(ctx, tx, dup)
	})
	if err != nil {
		t.Fatalf("call after respond: %v", err)
	}

	pending := domain.CallPending
	calls, err := repo.ListWaiterCalls(ctx, &pending)
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 1 || calls[0].ID != dup.ID {
		t.Errorf("pending calls = %+v", calls)
	}
}

func TestShiftLifecycle(t *testing.T) {
	ctx, _, repo := setupRepo(t)
	waiterID := uuid.New()

	shift, err := repo.StartShift(ctx, waiterID, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := repo.StartShift(ctx, waiterID, time.Now()); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for double start, got %v", err)
	}

	current, err := repo.CurrentShift(ctx, waiterID)
	if err != nil {
		t.Fatal(err)
	}
	if current.ID != shift.ID || !current.Active() {
		t.Errorf("current shift = %+v", current)
	}

	if err := repo.EndShift(ctx, waiterID, time.Now()); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.CurrentShift(ctx, waiterID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after end, got %v", err)
	}
}

func TestBonusCardLookup(t *testing.T) {
	ctx, pool, repo := setupRepo(t)

	_, err := pool.Exec(ctx, `
		INSERT INTO bonus_cards (card_number, discount_percent, is_active) VALUES ('DENIZ-001', 10, TRUE)
	`)
	if err != nil {
		t.Fatal(err)
	}

	card, err := repo.GetBonusCard(ctx, "DENIZ-001")
	if err != nil {
		t.Fatal(err)
	}
	if card.DiscountPercent != 10 || !card.Valid(time.Now()) {
		t.Errorf("card = %+v", card)
	}

	if _, err := repo.GetBonusCard(ctx, "NOPE-999"); !errors.Is(err, domain.ErrCardInvalid) {
		t.Errorf("expected ErrCardInvalid, got %v", err)
	}
}

func TestOutboxRoundTrip(t *testing.T) {
	ctx, _, repo := setupRepo(t)

	rec := pg.OutboxRecord{
		ID:            uuid.New(),
		AggregateType: "order",
		AggregateID:   uuid.New(),
		EventType:     "order.created",
		Payload:       []byte(`{"table_number": 5}`),
	}
	err := repo.WithTx(ctx, func(tx pgxv5.Tx) error {
		return repo.InsertOutbox(ctx, tx, rec)
	})
	if err != nil {
		t.Fatal(err)
	}

	records, err := repo.GetUnpublishedOutbox(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].EventType != "order.created" {
		t.Fatalf("records = %+v", records)
	}

	if err := repo.MarkPublished(ctx, rec.ID, time.Now(), "order.created:"+rec.AggregateID.String()); err != nil {
		t.Fatal(err)
	}

	records, err = repo.GetUnpublishedOutbox(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("unpublished after mark = %+v", records)
	}
}
