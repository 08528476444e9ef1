package domain

import (
	"time"

	"github.com/google/uuid"
)

// LocalizedText carries the three menu languages. Get falls back to Russian.
type LocalizedText struct {
	RU string `json:"ru" bson:"ru"`
	TK string `json:"tk" bson:"tk"`
	EN string `json:"en" bson:"en"`
}

func (t LocalizedText) Get(lang string) string {
	switch lang {
	case "tk":
		if t.TK != "" {
			return t.TK
		}
	case "en":
		if t.EN != "" {
			return t.EN
		}
	}
	return t.RU
}

type Category struct {
	ID        uuid.UUID
	Name      LocalizedText
	SortOrder int
	Active    bool
	DishCount int
}

type Dish struct {
	ID          uuid.UUID
	CategoryID  uuid.UUID
	Name        LocalizedText
	Description LocalizedText
	Price       float64
	ImageURL    string
	Available   bool
	SortOrder   int
}

type Table struct {
	ID          uuid.UUID
	TableNumber int
	Seats       int
	Status      TableStatus
	PIN         string
}

func (t Table) IsAvailable() bool {
	return t.Status == TableAvailable
}

type BonusCard struct {
	CardNumber      string
	DiscountPercent float64
	IsActive        bool
	ExpiresAt       *time.Time
}

// Valid reports whether the card can grant a discount right now.
func (c BonusCard) Valid(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.ExpiresAt != nil && c.ExpiresAt.Before(now) {
		return false
	}
	return c.DiscountPercent > 0 && c.DiscountPercent <= 100
}

type Order struct {
	ID            uuid.UUID
	TableID       uuid.UUID
	TableNumber   int
	Status        OrderStatus
	Items         []OrderItem
	Subtotal      float64
	ServiceCharge float64
	Discount      float64
	Total         float64
	BonusCard     string
	Language      string
	CreatedAt     time.Time
	// ConfirmDeadline bounds the cancellation window; past it the order is
	// sent to the kitchen whether or not the diner pressed confirm.
	ConfirmDeadline time.Time
	ConfirmedAt     *time.Time
	CancelledAt     *time.Time
	AutoConfirmed   bool
}

type OrderItem struct {
	DishID   uuid.UUID
	Name     string
	Price    float64
	Quantity int
}

type WaiterCall struct {
	ID          uuid.UUID
	TableID     uuid.UUID
	TableNumber int
	Status      CallStatus
	CreatedAt   time.Time
	RespondedAt *time.Time
	WaiterID    *uuid.UUID
}

type StaffShift struct {
	ID        uuid.UUID
	WaiterID  uuid.UUID
	StartTime time.Time
	EndTime   *time.Time
}

func (s StaffShift) Active() bool {
	return s.EndTime == nil
}

type DashboardStats struct {
	ActiveOrders   int
	PendingCalls   int
	OccupiedTables int
	TotalTables    int
	RevenueToday   float64
}
