package domain

import "errors"

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")

	// ErrActiveOrderExists is the distinguished domain failure: the selected
	// table already has an open order. The UI shows a dedicated modal for it.
	ErrActiveOrderExists = errors.New("active order exists for table")

	ErrEmptyCart       = errors.New("cart is empty")
	ErrNoTableSelected = errors.New("no table selected")
	ErrCardInvalid     = errors.New("bonus card invalid")
	ErrPINInvalid      = errors.New("table PIN invalid")
	ErrWindowClosed    = errors.New("confirmation window closed")
)

// Code maps a domain error to the wire-level error code carried in the
// response envelope.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrActiveOrderExists):
		return "ACTIVE_ORDER_EXISTS"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	case errors.Is(err, ErrEmptyCart):
		return "CART_EMPTY"
	case errors.Is(err, ErrNoTableSelected):
		return "NO_TABLE_SELECTED"
	case errors.Is(err, ErrCardInvalid):
		return "CARD_INVALID"
	case errors.Is(err, ErrPINInvalid):
		return "PIN_INVALID"
	case errors.Is(err, ErrWindowClosed):
		return "WINDOW_CLOSED"
	default:
		return "INTERNAL"
	}
}

// FromCode is the inverse mapping used by the gateway client.
func FromCode(code string) error {
	switch code {
	case "ACTIVE_ORDER_EXISTS":
		return ErrActiveOrderExists
	case "NOT_FOUND":
		return ErrNotFound
	case "CONFLICT":
		return ErrConflict
	case "INVALID_INPUT":
		return ErrInvalidInput
	case "CART_EMPTY":
		return ErrEmptyCart
	case "NO_TABLE_SELECTED":
		return ErrNoTableSelected
	case "CARD_INVALID":
		return ErrCardInvalid
	case "PIN_INVALID":
		return ErrPINInvalid
	case "WINDOW_CLOSED":
		return ErrWindowClosed
	default:
		return nil
	}
}
