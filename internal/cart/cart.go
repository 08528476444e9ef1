// Package cart is the diner-side cart and pricing engine. It is an explicit
// service object: the catalog, persistence, notifications, order gateway and
// countdown are injected ports, constructed once per client session.
package cart

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/denizrest/selforder/internal/domain"
	"github.com/denizrest/selforder/internal/observability"
)

type Catalog interface {
	Dish(ctx context.Context, id uuid.UUID) (*domain.Dish, error)
}

type Store interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type Notifier interface {
	Success(msg string)
	Info(msg string)
	Warning(msg string)
	Error(msg string)
}

// Prompter asks the diner for a yes/no confirmation before destructive
// actions (clearing the cart, cancelling an order).
type Prompter interface {
	Confirm(title, message string) bool
}

type Gateway interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) (uuid.UUID, error)
	Tables(ctx context.Context) ([]domain.Table, error)
}

// CountdownStarter begins the order-confirmation countdown after a
// successful submission.
type CountdownStarter interface {
	Start(ctx context.Context, orderID uuid.UUID)
}

type Settings struct {
	ServiceChargePercent float64
	ServiceChargeEnabled bool
	Language             string
	// StaleAfter bounds how old a persisted cart may be before it is
	// discarded on load.
	StaleAfter time.Duration
}

// Line is one cart entry. Price and name are snapshotted from the catalog at
// add time so pricing stays a pure function of cart state.
type Line struct {
	DishID   uuid.UUID `json:"dish_id"`
	Name     string    `json:"name"`
	Price    float64   `json:"price"`
	Quantity int       `json:"quantity"`
}

type Summary struct {
	Lines      []Line
	TotalItems int
	Totals     domain.Totals
	BonusCard  *domain.BonusCard
}

type Cart struct {
	mu sync.Mutex

	catalog   Catalog
	store     Store
	notifier  Notifier
	prompter  Prompter
	gateway   Gateway
	countdown CountdownStarter
	logger    observability.Logger
	settings  Settings
	now       func() time.Time

	items       map[uuid.UUID]*Line
	tableID     uuid.UUID
	tableNumber int
	bonusCard   *domain.BonusCard

	// onChange fires after every mutation, once state has been persisted.
	// The UI shell re-renders from the summary.
	onChange func(Summary)
}

const (
	keyCart        = "cart"
	keyTableID     = "tableId"
	keyTableNumber = "tableNumber"
)

type persistedCart struct {
	Items       []Line            `json:"items"`
	TableID     uuid.UUID         `json:"table_id"`
	TableNumber int               `json:"table_number"`
	BonusCard   *domain.BonusCard `json:"bonus_card,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

type Options struct {
	Catalog   Catalog
	Store     Store
	Notifier  Notifier
	Prompter  Prompter
	Gateway   Gateway
	Countdown CountdownStarter
	Logger    observability.Logger
	Settings  Settings
	OnChange  func(Summary)
	Now       func() time.Time
}

func New(opts Options) *Cart {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Settings.StaleAfter == 0 {
		opts.Settings.StaleAfter = 24 * time.Hour
	}
	return &Cart{
		catalog:   opts.Catalog,
		store:     opts.Store,
		notifier:  opts.Notifier,
		prompter:  opts.Prompter,
		gateway:   opts.Gateway,
		countdown: opts.Countdown,
		logger:    opts.Logger,
		settings:  opts.Settings,
		now:       opts.Now,
		items:     make(map[uuid.UUID]*Line),
		onChange:  opts.OnChange,
	}
}

// Load rehydrates the cart from the session store. A snapshot older than
// StaleAfter is treated as absent.
func (c *Cart) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var snap persistedCart
	ok, err := c.store.Get(ctx, keyCart, &snap)
	if err != nil {
		return err
	}
	if ok && c.now().Sub(snap.Timestamp) <= c.settings.StaleAfter {
		for i := range snap.Items {
			line := snap.Items[i]
			if line.Quantity > 0 {
				c.items[line.DishID] = &line
			}
		}
		c.tableID = snap.TableID
		c.tableNumber = snap.TableNumber
		c.bonusCard = snap.BonusCard
	}

	// The table survives cart expiry under its own keys.
	var tableID uuid.UUID
	if ok, err := c.store.Get(ctx, keyTableID, &tableID); err == nil && ok {
		c.tableID = tableID
	}
	var tableNumber int
	if ok, err := c.store.Get(ctx, keyTableNumber, &tableNumber); err == nil && ok {
		c.tableNumber = tableNumber
	}
	return nil
}

// AddItem validates the dish against the catalog before touching state, so a
// failed lookup cannot leave the cart diverged.
func (c *Cart) AddItem(ctx context.Context, dishID uuid.UUID, qty int) error {
	if qty == 0 {
		qty = 1
	}

	dish, err := c.catalog.Dish(ctx, dishID)
	if err != nil || dish == nil {
		c.notifier.Error("Блюдо не найдено")
		if err == nil {
			err = domain.ErrNotFound
		}
		return err
	}
	if !dish.Available {
		c.notifier.Error("Блюдо недоступно")
		return domain.ErrNotFound
	}

	c.mu.Lock()
	line, exists := c.items[dishID]
	if !exists {
		line = &Line{
			DishID: dishID,
			Name:   dish.Name.Get(c.settings.Language),
			Price:  dish.Price,
		}
	}
	line.Quantity += qty
	removed := line.Quantity <= 0
	if removed {
		delete(c.items, dishID)
	} else {
		c.items[dishID] = line
	}
	c.mu.Unlock()

	c.change(ctx)
	if !removed {
		c.notifier.Success(line.Name + " добавлено в корзину")
	}
	return nil
}

func (c *Cart) RemoveItem(ctx context.Context, dishID uuid.UUID, qty int) {
	if qty == 0 {
		qty = 1
	}

	c.mu.Lock()
	line, exists := c.items[dishID]
	if !exists {
		c.mu.Unlock()
		return
	}
	line.Quantity -= qty
	if line.Quantity <= 0 {
		delete(c.items, dishID)
	}
	c.mu.Unlock()

	c.change(ctx)
}

func (c *Cart) SetItemQuantity(ctx context.Context, dishID uuid.UUID, qty int) {
	c.mu.Lock()
	line, exists := c.items[dishID]
	if !exists {
		c.mu.Unlock()
		return
	}
	if qty <= 0 {
		delete(c.items, dishID)
	} else {
		line.Quantity = qty
	}
	c.mu.Unlock()

	c.change(ctx)
}

func (c *Cart) ItemQuantity(dishID uuid.UUID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if line, ok := c.items[dishID]; ok {
		return line.Quantity
	}
	return 0
}

func (c *Cart) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, line := range c.items {
		total += line.Quantity
	}
	return total
}

func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.linesLocked()
}

func (c *Cart) linesLocked() []Line {
	lines := make([]Line, 0, len(c.items))
	for _, line := range c.items {
		lines = append(lines, *line)
	}
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].DishID.String() < lines[j].DishID.String()
	})
	return lines
}

// Clear empties the cart and the applied card after diner confirmation.
func (c *Cart) Clear(ctx context.Context) {
	c.mu.Lock()
	empty := len(c.items) == 0
	c.mu.Unlock()

	if empty {
		c.notifier.Info("Корзина уже пуста")
		return
	}
	if !c.prompter.Confirm("Очистить корзину?", "Все товары будут удалены из корзины") {
		return
	}

	c.mu.Lock()
	c.items = make(map[uuid.UUID]*Line)
	c.bonusCard = nil
	c.mu.Unlock()

	c.change(ctx)
	c.notifier.Success("Корзина очищена")
}

func (c *Cart) Subtotal() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subtotalLocked()
}

func (c *Cart) subtotalLocked() float64 {
	subtotal := 0.0
	for _, line := range c.items {
		subtotal += line.Price * float64(line.Quantity)
	}
	return subtotal
}

func (c *Cart) Totals() domain.Totals {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalsLocked()
}

func (c *Cart) totalsLocked() domain.Totals {
	discount := 0.0
	if c.bonusCard != nil && c.bonusCard.Valid(c.now()) {
		discount = c.bonusCard.DiscountPercent
	}
	return domain.ComputeTotals(c.subtotalLocked(), c.settings.ServiceChargePercent, c.settings.ServiceChargeEnabled, discount)
}

func (c *Cart) ServiceCharge() float64 { return c.Totals().ServiceCharge }
func (c *Cart) Discount() float64      { return c.Totals().Discount }
func (c *Cart) Total() float64         { return c.Totals().Total }

func (c *Cart) ApplyBonusCard(ctx context.Context, card domain.BonusCard) error {
	if !card.Valid(c.now()) {
		c.notifier.Error("Карта недействительна")
		return domain.ErrCardInvalid
	}

	c.mu.Lock()
	c.bonusCard = &card
	c.mu.Unlock()

	c.change(ctx)
	c.notifier.Success("Бонусная карта применена")
	return nil
}

func (c *Cart) RemoveBonusCard(ctx context.Context) {
	c.mu.Lock()
	c.bonusCard = nil
	c.mu.Unlock()

	c.change(ctx)
	c.notifier.Info("Бонусная карта удалена")
}

func (c *Cart) BonusCard() *domain.BonusCard {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bonusCard == nil {
		return nil
	}
	card := *c.bonusCard
	return &card
}

func (c *Cart) SetTable(ctx context.Context, tableID uuid.UUID, tableNumber int) {
	c.mu.Lock()
	c.tableID = tableID
	c.tableNumber = tableNumber
	c.mu.Unlock()

	if err := c.store.Set(ctx, keyTableID, tableID, 0); err != nil {
		c.logger.Error("failed to persist table id", err)
	}
	if err := c.store.Set(ctx, keyTableNumber, tableNumber, 0); err != nil {
		c.logger.Error("failed to persist table number", err)
	}
	c.change(ctx)
}

func (c *Cart) TableNumber() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tableNumber
}

func (c *Cart) TableSelected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tableID != uuid.Nil || c.tableNumber != 0
}

// EnsureTableNumber reconciles the display table number against the table
// list when only the internal id survived a reload. Tables are shown and
// submitted by number, never by internal id.
func (c *Cart) EnsureTableNumber(ctx context.Context) error {
	c.mu.Lock()
	id, number := c.tableID, c.tableNumber
	c.mu.Unlock()

	if number != 0 || id == uuid.Nil {
		return nil
	}

	tables, err := c.gateway.Tables(ctx)
	if err != nil {
		return err
	}
	for _, t := range tables {
		if t.ID == id {
			c.mu.Lock()
			c.tableNumber = t.TableNumber
			c.mu.Unlock()
			if err := c.store.Set(ctx, keyTableNumber, t.TableNumber, 0); err != nil {
				c.logger.Error("failed to persist table number", err)
			}
			return nil
		}
	}
	return domain.ErrNotFound
}

// ProceedToOrder submits the cart. No network call is made when the
// preconditions fail. On success the cart is cleared and the confirmation
// countdown starts for the new order.
func (c *Cart) ProceedToOrder(ctx context.Context) (uuid.UUID, error) {
	c.mu.Lock()
	if len(c.items) == 0 {
		c.mu.Unlock()
		c.notifier.Warning("Корзина пуста")
		return uuid.Nil, domain.ErrEmptyCart
	}
	if c.tableID == uuid.Nil && c.tableNumber == 0 {
		c.mu.Unlock()
		c.notifier.Error("Пожалуйста, выберите стол перед оформлением заказа")
		return uuid.Nil, domain.ErrNoTableSelected
	}

	req := domain.OrderRequest{
		TableNumber: c.tableNumber,
		Language:    c.settings.Language,
	}
	for _, line := range c.linesLocked() {
		req.Items = append(req.Items, domain.OrderItemSpec{DishID: line.DishID, Quantity: line.Quantity})
	}
	if c.bonusCard != nil {
		req.BonusCard = c.bonusCard.CardNumber
	}
	c.mu.Unlock()

	orderID, err := c.gateway.CreateOrder(ctx, req)
	if err != nil {
		// The active-order conflict gets its own modal; everything else is
		// a generic toast. Local state is untouched either way so the diner
		// can retry.
		if !errors.Is(err, domain.ErrActiveOrderExists) {
			c.notifier.Error("Не удалось отправить заказ")
		}
		return uuid.Nil, err
	}

	c.mu.Lock()
	c.items = make(map[uuid.UUID]*Line)
	c.bonusCard = nil
	c.mu.Unlock()

	c.change(ctx)
	if c.countdown != nil {
		c.countdown.Start(ctx, orderID)
	}
	return orderID, nil
}

// change persists the cart and notifies the render callback. Every mutation
// funnels through here.
func (c *Cart) change(ctx context.Context) {
	c.mu.Lock()
	snap := persistedCart{
		Items:       c.linesLocked(),
		TableID:     c.tableID,
		TableNumber: c.tableNumber,
		BonusCard:   c.bonusCard,
		Timestamp:   c.now(),
	}
	summary := Summary{
		Lines:     snap.Items,
		Totals:    c.totalsLocked(),
		BonusCard: c.bonusCard,
	}
	for _, line := range snap.Items {
		summary.TotalItems += line.Quantity
	}
	c.mu.Unlock()

	if err := c.store.Set(ctx, keyCart, snap, c.settings.StaleAfter); err != nil {
		c.logger.Error("failed to persist cart", err)
	}
	if c.onChange != nil {
		c.onChange(summary)
	}
}
