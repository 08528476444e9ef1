package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/denizrest/selforder/internal/domain"
	"github.com/denizrest/selforder/internal/observability"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (s *memStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = raw
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

type fakeCatalog struct {
	dishes map[uuid.UUID]*domain.Dish
}

func (c *fakeCatalog) Dish(_ context.Context, id uuid.UUID) (*domain.Dish, error) {
	if d, ok := c.dishes[id]; ok {
		return d, nil
	}
	return nil, domain.ErrNotFound
}

type fakeNotifier struct {
	successes, infos, warnings, errs []string
}

func (n *fakeNotifier) Success(msg string) { n.successes = append(n.successes, msg) }
func (n *fakeNotifier) Info(msg string)    { n.infos = append(n.infos, msg) }
func (n *fakeNotifier) Warning(msg string) { n.warnings = append(n.warnings, msg) }
func (n *fakeNotifier) Error(msg string)   { n.errs = append(n.errs, msg) }

type fakePrompter struct{ answer bool }

func (p *fakePrompter) Confirm(_, _ string) bool { return p.answer }

type fakeGateway struct {
	createCalls []domain.OrderRequest
	orderID     uuid.UUID
	createErr   error
	tables      []domain.Table
}

func (g *fakeGateway) CreateOrder(_ context.Context, req domain.OrderRequest) (uuid.UUID, error) {
	g.createCalls = append(g.createCalls, req)
	if g.createErr != nil {
		return uuid.Nil, g.createErr
	}
	return g.orderID, nil
}

func (g *fakeGateway) Tables(_ context.Context) ([]domain.Table, error) {
	return g.tables, nil
}

type fakeCountdown struct {
	started []uuid.UUID
}

func (c *fakeCountdown) Start(_ context.Context, orderID uuid.UUID) {
	c.started = append(c.started, orderID)
}

type fixture struct {
	cart      *Cart
	store     *memStore
	catalog   *fakeCatalog
	notifier  *fakeNotifier
	prompter  *fakePrompter
	gateway   *fakeGateway
	countdown *fakeCountdown
	now       time.Time

	fishID, breadID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:     newMemStore(),
		notifier:  &fakeNotifier{},
		prompter:  &fakePrompter{answer: true},
		gateway:   &fakeGateway{orderID: uuid.New()},
		countdown: &fakeCountdown{},
		now:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		fishID:    uuid.New(),
		breadID:   uuid.New(),
	}
	f.catalog = &fakeCatalog{dishes: map[uuid.UUID]*domain.Dish{
		f.fishID: {
			ID:        f.fishID,
			Name:      domain.LocalizedText{RU: "Рыба", EN: "Fish"},
			Price:     500,
			Available: true,
		},
		f.breadID: {
			ID:        f.breadID,
			Name:      domain.LocalizedText{RU: "Хлеб", EN: "Bread"},
			Price:     300,
			Available: true,
		},
	}}
	f.cart = New(Options{
		Catalog:   f.catalog,
		Store:     f.store,
		Notifier:  f.notifier,
		Prompter:  f.prompter,
		Gateway:   f.gateway,
		Countdown: f.countdown,
		Logger:    observability.NewLogger(),
		Settings: Settings{
			ServiceChargePercent: 5,
			ServiceChargeEnabled: true,
			Language:             "ru",
			StaleAfter:           24 * time.Hour,
		},
		Now: func() time.Time { return f.now },
	})
	return f
}

func TestQuantityArithmetic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if err := f.cart.AddItem(ctx, f.fishID, 2); err != nil {
		t.Fatal(err)
	}
	f.cart.AddItem(ctx, f.fishID, 1)
	f.cart.RemoveItem(ctx, f.fishID, 1)
	if got := f.cart.ItemQuantity(f.fishID); got != 2 {
		t.Errorf("quantity = %d, want 2", got)
	}

	// Removing below zero clamps to removal, never negative.
	f.cart.RemoveItem(ctx, f.fishID, 10)
	if got := f.cart.ItemQuantity(f.fishID); got != 0 {
		t.Errorf("quantity = %d, want 0", got)
	}

	// Removal of an absent item is a no-op.
	f.cart.RemoveItem(ctx, f.breadID, 1)
	if got := f.cart.ItemQuantity(f.breadID); got != 0 {
		t.Errorf("quantity = %d, want 0", got)
	}

	f.cart.AddItem(ctx, f.breadID, 1)
	f.cart.SetItemQuantity(ctx, f.breadID, 7)
	if got := f.cart.ItemQuantity(f.breadID); got != 7 {
		t.Errorf("quantity = %d, want 7", got)
	}
	f.cart.SetItemQuantity(ctx, f.breadID, 0)
	if got := f.cart.ItemQuantity(f.breadID); got != 0 {
		t.Errorf("quantity = %d, want 0 after set to zero", got)
	}
}

func TestAddItemUnknownDish(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.cart.AddItem(ctx, uuid.New(), 1)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if f.cart.TotalItems() != 0 {
		t.Error("cart mutated on failed catalog lookup")
	}
	if len(f.notifier.errs) == 0 {
		t.Error("expected a user-facing error notification")
	}
}

func TestPricingScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.cart.AddItem(ctx, f.fishID, 2)  // 2 x 500
	f.cart.AddItem(ctx, f.breadID, 1) // 1 x 300

	totals := f.cart.Totals()
	if totals.Subtotal != 1300 {
		t.Errorf("subtotal = %v, want 1300", totals.Subtotal)
	}
	if totals.ServiceCharge != 65 {
		t.Errorf("service charge = %v, want 65", totals.ServiceCharge)
	}
	if totals.Discount != 0 {
		t.Errorf("discount = %v, want 0", totals.Discount)
	}
	if totals.Total != 1365 {
		t.Errorf("total = %v, want 1365", totals.Total)
	}

	if err := f.cart.ApplyBonusCard(ctx, domain.BonusCard{CardNumber: "DENIZ-001", DiscountPercent: 10, IsActive: true}); err != nil {
		t.Fatal(err)
	}
	totals = f.cart.Totals()
	if totals.Discount != 136.5 {
		t.Errorf("discount = %v, want 136.5", totals.Discount)
	}
	if totals.Total != 1228.5 {
		t.Errorf("total = %v, want 1228.5", totals.Total)
	}
	if got := f.cart.Total(); got != totals.Subtotal+totals.ServiceCharge-totals.Discount {
		t.Errorf("total identity violated: %v", got)
	}
}

func TestApplyInvalidBonusCard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.cart.ApplyBonusCard(ctx, domain.BonusCard{CardNumber: "DEAD", DiscountPercent: 10, IsActive: false})
	if !errors.Is(err, domain.ErrCardInvalid) {
		t.Fatalf("expected ErrCardInvalid, got %v", err)
	}
	if f.cart.BonusCard() != nil {
		t.Error("inactive card must not be applied")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.cart.AddItem(ctx, f.fishID, 2)
	f.cart.SetTable(ctx, uuid.New(), 5)

	// A second session one second later restores the cart intact.
	restored := New(Options{
		Catalog:  f.catalog,
		Store:    f.store,
		Notifier: &fakeNotifier{},
		Prompter: f.prompter,
		Gateway:  f.gateway,
		Logger:   observability.NewLogger(),
		Settings: Settings{ServiceChargePercent: 5, ServiceChargeEnabled: true, Language: "ru", StaleAfter: 24 * time.Hour},
		Now:      func() time.Time { return f.now.Add(time.Second) },
	})
	if err := restored.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if got := restored.ItemQuantity(f.fishID); got != 2 {
		t.Errorf("restored quantity = %d, want 2", got)
	}
	if restored.TableNumber() != 5 {
		t.Errorf("restored table number = %d, want 5", restored.TableNumber())
	}
}

func TestPersistenceStaleAfter24h(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.cart.AddItem(ctx, f.fishID, 2)

	stale := New(Options{
		Catalog:  f.catalog,
		Store:    f.store,
		Notifier: &fakeNotifier{},
		Prompter: f.prompter,
		Gateway:  f.gateway,
		Logger:   observability.NewLogger(),
		Settings: Settings{ServiceChargePercent: 5, ServiceChargeEnabled: true, Language: "ru", StaleAfter: 24 * time.Hour},
		Now:      func() time.Time { return f.now.Add(24*time.Hour + time.Minute) },
	})
	if err := stale.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if stale.TotalItems() != 0 {
		t.Errorf("stale cart restored %d items, want 0", stale.TotalItems())
	}
}

func TestClearRequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.cart.AddItem(ctx, f.fishID, 1)
	f.cart.ApplyBonusCard(ctx, domain.BonusCard{CardNumber: "DENIZ-001", DiscountPercent: 10, IsActive: true})

	f.prompter.answer = false
	f.cart.Clear(ctx)
	if f.cart.TotalItems() != 1 {
		t.Error("cart cleared without confirmation")
	}

	f.prompter.answer = true
	f.cart.Clear(ctx)
	if f.cart.TotalItems() != 0 {
		t.Error("cart not cleared after confirmation")
	}
	if f.cart.BonusCard() != nil {
		t.Error("bonus card survived clear")
	}
}

func TestProceedToOrderPreconditions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Empty cart: warning, no network call.
	_, err := f.cart.ProceedToOrder(ctx)
	if !errors.Is(err, domain.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	if len(f.gateway.createCalls) != 0 {
		t.Error("gateway called with empty cart")
	}
	if len(f.notifier.warnings) == 0 {
		t.Error("expected empty-cart warning")
	}

	// Items but no table: error, still no network call.
	f.cart.AddItem(ctx, f.fishID, 1)
	_, err = f.cart.ProceedToOrder(ctx)
	if !errors.Is(err, domain.ErrNoTableSelected) {
		t.Fatalf("expected ErrNoTableSelected, got %v", err)
	}
	if len(f.gateway.createCalls) != 0 {
		t.Error("gateway called without a table")
	}
}

func TestProceedToOrderSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.cart.AddItem(ctx, f.fishID, 2)
	f.cart.AddItem(ctx, f.breadID, 1)
	f.cart.SetTable(ctx, uuid.New(), 5)
	f.cart.ApplyBonusCard(ctx, domain.BonusCard{CardNumber: "DENIZ-001", DiscountPercent: 10, IsActive: true})

	orderID, err := f.cart.ProceedToOrder(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if orderID != f.gateway.orderID {
		t.Errorf("order id = %v, want %v", orderID, f.gateway.orderID)
	}

	if len(f.gateway.createCalls) != 1 {
		t.Fatalf("gateway calls = %d, want 1", len(f.gateway.createCalls))
	}
	req := f.gateway.createCalls[0]
	if req.TableNumber != 5 {
		t.Errorf("table number = %d, want 5", req.TableNumber)
	}
	if req.BonusCard != "DENIZ-001" {
		t.Errorf("bonus card = %q, want DENIZ-001", req.BonusCard)
	}
	if req.Language != "ru" {
		t.Errorf("language = %q, want ru", req.Language)
	}
	qty := map[uuid.UUID]int{}
	for _, it := range req.Items {
		qty[it.DishID] = it.Quantity
	}
	if qty[f.fishID] != 2 || qty[f.breadID] != 1 {
		t.Errorf("payload quantities = %v", qty)
	}

	// Success clears the cart and starts the countdown.
	if f.cart.TotalItems() != 0 {
		t.Error("cart not cleared after successful order")
	}
	if f.cart.BonusCard() != nil {
		t.Error("bonus card not cleared after successful order")
	}
	if len(f.countdown.started) != 1 || f.countdown.started[0] != orderID {
		t.Errorf("countdown started = %v, want [%v]", f.countdown.started, orderID)
	}
}

func TestProceedToOrderActiveOrderConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.cart.AddItem(ctx, f.fishID, 1)
	f.cart.SetTable(ctx, uuid.New(), 3)
	f.gateway.createErr = domain.ErrActiveOrderExists

	_, err := f.cart.ProceedToOrder(ctx)
	if !errors.Is(err, domain.ErrActiveOrderExists) {
		t.Fatalf("expected ErrActiveOrderExists, got %v", err)
	}
	// The conflict gets a dedicated modal upstream, not the generic toast,
	// and the cart stays intact for a retry.
	if len(f.notifier.errs) != 0 {
		t.Errorf("generic error toast shown for active-order conflict: %v", f.notifier.errs)
	}
	if f.cart.TotalItems() != 1 {
		t.Error("cart cleared on failed submission")
	}
	if len(f.countdown.started) != 0 {
		t.Error("countdown started on failed submission")
	}
}

func TestEnsureTableNumber(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tableID := uuid.New()
	f.gateway.tables = []domain.Table{
		{ID: uuid.New(), TableNumber: 1},
		{ID: tableID, TableNumber: 7},
	}

	// Only the internal id survived; the display number must be reconciled
	// from the table list.
	f.store.Set(ctx, keyTableID, tableID, 0)
	if err := f.cart.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if f.cart.TableNumber() != 0 {
		t.Fatalf("table number = %d before reconciliation", f.cart.TableNumber())
	}

	if err := f.cart.EnsureTableNumber(ctx); err != nil {
		t.Fatal(err)
	}
	if f.cart.TableNumber() != 7 {
		t.Errorf("table number = %d, want 7", f.cart.TableNumber())
	}

	var persisted int
	if ok, _ := f.store.Get(ctx, keyTableNumber, &persisted); !ok || persisted != 7 {
		t.Errorf("persisted table number = %d (present=%v), want 7", persisted, ok)
	}
}

func TestChangeSignalFires(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var summaries []Summary
	f.cart.onChange = func(s Summary) { summaries = append(summaries, s) }

	f.cart.AddItem(ctx, f.fishID, 2)
	f.cart.RemoveItem(ctx, f.fishID, 1)

	if len(summaries) != 2 {
		t.Fatalf("onChange fired %d times, want 2", len(summaries))
	}
	last := summaries[len(summaries)-1]
	if last.TotalItems != 1 {
		t.Errorf("summary total items = %d, want 1", last.TotalItems)
	}
	if last.Totals.Subtotal != 500 {
		t.Errorf("summary subtotal = %v, want 500", last.Totals.Subtotal)
	}
}
