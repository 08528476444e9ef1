package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderRequest is the payload a diner submits from the cart.
type OrderRequest struct {
	TableNumber int             `json:"table_number"`
	Items       []OrderItemSpec `json:"items"`
	BonusCard   string          `json:"bonus_card,omitempty"`
	Language    string          `json:"language"`
}

type OrderItemSpec struct {
	DishID   uuid.UUID `json:"dish_id"`
	Quantity int       `json:"quantity"`
}

func NewOrder(table Table, items []OrderItem, totals Totals, card string, language string, window time.Duration, now time.Time) Order {
	return Order{
		ID:              uuid.New(),
		TableID:         table.ID,
		TableNumber:     table.TableNumber,
		Status:          OrderPending,
		Items:           items,
		Subtotal:        totals.Subtotal,
		ServiceCharge:   totals.ServiceCharge,
		Discount:        totals.Discount,
		Total:           totals.Total,
		BonusCard:       card,
		Language:        language,
		CreatedAt:       now,
		ConfirmDeadline: now.Add(window),
	}
}
