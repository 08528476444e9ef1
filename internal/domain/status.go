package domain

import "github.com/cockroachdb/errors"

// Statuses are closed enumerations. Parsing rejects unknown strings and the
// color/icon tables are exhaustive, so a new status cannot silently render
// as a default.

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderServed    OrderStatus = "served"
	OrderCancelled OrderStatus = "cancelled"
)

var orderStatuses = map[OrderStatus]struct{ color, icon string }{
	OrderPending:   {"yellow", "hourglass"},
	OrderConfirmed: {"blue", "check"},
	OrderPreparing: {"orange", "fire"},
	OrderReady:     {"green", "bell"},
	OrderServed:    {"gray", "utensils"},
	OrderCancelled: {"red", "ban"},
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if _, ok := orderStatuses[st]; !ok {
		return "", errors.Wrapf(ErrInvalidInput, "unknown order status %q", s)
	}
	return st, nil
}

func (s OrderStatus) Color() string { return orderStatuses[s].color }
func (s OrderStatus) Icon() string  { return orderStatuses[s].icon }

// Open reports whether the order still occupies its table. A table with an
// open order rejects new submissions.
func (s OrderStatus) Open() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderPreparing, OrderReady:
		return true
	}
	return false
}

type TableStatus string

const (
	TableAvailable TableStatus = "available"
	TableOccupied  TableStatus = "occupied"
	TableReserved  TableStatus = "reserved"
)

var tableStatuses = map[TableStatus]struct{ color, icon string }{
	TableAvailable: {"green", "circle"},
	TableOccupied:  {"red", "users"},
	TableReserved:  {"yellow", "clock"},
}

func ParseTableStatus(s string) (TableStatus, error) {
	st := TableStatus(s)
	if _, ok := tableStatuses[st]; !ok {
		return "", errors.Wrapf(ErrInvalidInput, "unknown table status %q", s)
	}
	return st, nil
}

func (s TableStatus) Color() string { return tableStatuses[s].color }
func (s TableStatus) Icon() string  { return tableStatuses[s].icon }

type CallStatus string

const (
	CallPending   CallStatus = "pending"
	CallResponded CallStatus = "responded"
	CallClosed    CallStatus = "closed"
)

var callStatuses = map[CallStatus]struct{ color, icon string }{
	CallPending:   {"red", "bell"},
	CallResponded: {"green", "check"},
	CallClosed:    {"gray", "archive"},
}

func ParseCallStatus(s string) (CallStatus, error) {
	st := CallStatus(s)
	if _, ok := callStatuses[st]; !ok {
		return "", errors.Wrapf(ErrInvalidInput, "unknown call status %q", s)
	}
	return st, nil
}

func (s CallStatus) Color() string { return callStatuses[s].color }
func (s CallStatus) Icon() string  { return callStatuses[s].icon }
