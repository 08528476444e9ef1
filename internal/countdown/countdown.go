// Package countdown runs the order-confirmation window: a persistent
// countdown tied to one in-flight order. The record stores the absolute
// deadline, so after a reload the remaining time is always recomputed as
// deadline minus now instead of resuming a stale seconds value.
package countdown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/denizrest/selforder/internal/domain"
	"github.com/denizrest/selforder/internal/observability"
)

// Confirmer resolves the in-flight order: confirm sends it to the kitchen
// printer, cancel withdraws it.
type Confirmer interface {
	ConfirmOrder(ctx context.Context, orderID uuid.UUID) error
	CancelOrder(ctx context.Context, orderID uuid.UUID) error
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

type Prompter interface {
	Confirm(title, message string) bool
}

type State int

const (
	StateIdle State = iota
	StateActive
	StateConfirmed
	StateCancelled
)

// Level drives the timer recoloring thresholds.
type Level int

const (
	LevelNormal  Level = iota
	LevelWarning       // 120s or less
	LevelDanger        // 60s or less
)

const keyOrderTimer = "orderTimer"

type record struct {
	OrderID   uuid.UUID `json:"order_id"`
	StartTime time.Time `json:"start_time"`
	Deadline  time.Time `json:"deadline"`
}

type Options struct {
	Confirmer Confirmer
	Store     Store
	Notifier  Notifier
	Prompter  Prompter
	Logger    observability.Logger
	// Window is the cancellation window for a fresh order. Defaults to
	// five minutes.
	Window time.Duration
	// ResumeDelay is the short pause before the immediate confirmation of
	// an order whose window expired while the page was away.
	ResumeDelay time.Duration
	// TickInterval drives the internal ticker. Zero means one second; a
	// negative value disables the internal ticker so the caller drives
	// Tick itself.
	TickInterval time.Duration
	OnTick       func(remaining time.Duration, level Level)
	Now          func() time.Time
}

type Countdown struct {
	mu sync.Mutex

	confirmer    Confirmer
	store        Store
	notifier     Notifier
	prompter     Prompter
	logger       observability.Logger
	window       time.Duration
	resumeDelay  time.Duration
	tickInterval time.Duration
	onTick       func(remaining time.Duration, level Level)
	now          func() time.Time

	state     State
	orderID   uuid.UUID
	startTime time.Time
	deadline  time.Time
	autoFired bool
	stop      chan struct{}
}

func New(opts Options) *Countdown {
	if opts.Window == 0 {
		opts.Window = 5 * time.Minute
	}
	if opts.ResumeDelay == 0 {
		opts.ResumeDelay = 2 * time.Second
	}
	if opts.TickInterval == 0 {
		opts.TickInterval = time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Countdown{
		confirmer:    opts.Confirmer,
		store:        opts.Store,
		notifier:     opts.Notifier,
		prompter:     opts.Prompter,
		logger:       opts.Logger,
		window:       opts.Window,
		resumeDelay:  opts.ResumeDelay,
		tickInterval: opts.TickInterval,
		onTick:       opts.OnTick,
		now:          opts.Now,
	}
}

// Start begins the countdown for a freshly placed order. Any previous
// countdown is stopped and its record discarded; the old order is NOT
// auto-confirmed by the new timer.
func (c *Countdown) Start(ctx context.Context, orderID uuid.UUID) {
	c.mu.Lock()
	c.stopLocked()
	now := c.now()
	c.state = StateActive
	c.orderID = orderID
	c.startTime = now
	c.deadline = now.Add(c.window)
	c.autoFired = false
	rec := record{OrderID: orderID, StartTime: c.startTime, Deadline: c.deadline}
	c.mu.Unlock()

	c.persist(ctx, rec)
	c.startTicker(ctx)
}

// Resume restores a persisted countdown after a reload. If the recomputed
// remaining time is already spent, confirmation fires once after a short
// delay instead of resuming a dead countdown.
func (c *Countdown) Resume(ctx context.Context) error {
	var rec record
	ok, err := c.store.Get(ctx, keyOrderTimer, &rec)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	remaining := rec.Deadline.Sub(c.now())
	if remaining <= 0 {
		if c.resumeDelay > 0 {
			time.Sleep(c.resumeDelay)
		}
		c.mu.Lock()
		c.state = StateActive
		c.orderID = rec.OrderID
		c.startTime = rec.StartTime
		c.deadline = rec.Deadline
		c.autoFired = false
		c.mu.Unlock()
		c.autoConfirm(ctx)
		return nil
	}

	c.mu.Lock()
	c.stopLocked()
	c.state = StateActive
	c.orderID = rec.OrderID
	c.startTime = rec.StartTime
	c.deadline = rec.Deadline
	c.autoFired = false
	c.mu.Unlock()

	c.startTicker(ctx)
	return nil
}

func (c *Countdown) startTicker(ctx context.Context) {
	if c.tickInterval < 0 {
		return
	}

	c.mu.Lock()
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(c.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				if done := c.Tick(ctx); done {
					return
				}
			}
		}
	}()
}

// Tick advances the countdown by observing the clock: it persists the
// current state, reports the remaining time, and fires the one automatic
// confirmation when the window is exhausted. It returns true once the
// countdown is resolved.
func (c *Countdown) Tick(ctx context.Context) bool {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return true
	}
	remaining := c.remainingLocked()
	rec := record{OrderID: c.orderID, StartTime: c.startTime, Deadline: c.deadline}
	onTick := c.onTick
	c.mu.Unlock()

	c.persist(ctx, rec)
	if onTick != nil {
		onTick(remaining, levelFor(remaining))
	}

	if remaining <= 0 {
		c.autoConfirm(ctx)
		return true
	}
	return false
}

// autoConfirm fires at most once. A failed request is surfaced but not
// retried; the countdown is resolved locally either way.
func (c *Countdown) autoConfirm(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateActive || c.autoFired {
		c.mu.Unlock()
		return
	}
	c.autoFired = true
	orderID := c.orderID
	c.mu.Unlock()

	err := c.confirmer.ConfirmOrder(ctx, orderID)

	c.mu.Lock()
	c.state = StateConfirmed
	c.stopLocked()
	c.mu.Unlock()

	c.discard(ctx)
	if err != nil {
		c.logger.WithField("order_id", orderID).Error("auto-confirm failed", err)
		c.notifier.Error("Не удалось подтвердить заказ")
		return
	}
	c.notifier.Success("Заказ подтвержден и отправлен на кухню!")
}

// Confirm is the explicit diner confirmation. On request failure the
// countdown stays active so the diner can retry while time remains.
func (c *Countdown) Confirm(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return domain.ErrConflict
	}
	orderID := c.orderID
	c.mu.Unlock()

	if err := c.confirmer.ConfirmOrder(ctx, orderID); err != nil {
		c.notifier.Error("Не удалось подтвердить заказ")
		return err
	}

	c.mu.Lock()
	c.state = StateConfirmed
	c.stopLocked()
	c.mu.Unlock()

	c.discard(ctx)
	c.notifier.Success("Заказ подтвержден и отправлен на кухню!")
	return nil
}

// Cancel withdraws the order after a confirmation dialog. It is only legal
// while time remains in the window.
func (c *Countdown) Cancel(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return domain.ErrConflict
	}
	if c.remainingLocked() <= 0 {
		c.mu.Unlock()
		return domain.ErrWindowClosed
	}
	orderID := c.orderID
	c.mu.Unlock()

	if !c.prompter.Confirm("Отменить заказ?", "Заказ будет полностью отменен") {
		return nil
	}

	if err := c.confirmer.CancelOrder(ctx, orderID); err != nil {
		c.notifier.Error("Не удалось отменить заказ")
		return err
	}

	c.mu.Lock()
	c.state = StateCancelled
	c.stopLocked()
	c.mu.Unlock()

	c.discard(ctx)
	c.notifier.Success("Заказ отменен")
	return nil
}

func (c *Countdown) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Countdown) OrderID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orderID
}

func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		return 0
	}
	return c.remainingLocked()
}

func (c *Countdown) Level() Level {
	return levelFor(c.Remaining())
}

func (c *Countdown) remainingLocked() time.Duration {
	remaining := c.deadline.Sub(c.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func levelFor(remaining time.Duration) Level {
	switch {
	case remaining <= 60*time.Second:
		return LevelDanger
	case remaining <= 120*time.Second:
		return LevelWarning
	default:
		return LevelNormal
	}
}

// FormatTime renders a remaining duration as M:SS for the timer display.
func FormatTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func (c *Countdown) stopLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

func (c *Countdown) persist(ctx context.Context, rec record) {
	if err := c.store.Set(ctx, keyOrderTimer, rec, 0); err != nil {
		c.logger.Error("failed to persist order timer", err)
	}
}

func (c *Countdown) discard(ctx context.Context) {
	if err := c.store.Delete(ctx, keyOrderTimer); err != nil {
		c.logger.Error("failed to discard order timer", err)
	}
}
