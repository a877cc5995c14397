package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuantity       = errors.New("quantity must be positive")
	ErrValidation            = errors.New("invalid input")
	ErrEventNotFound         = errors.New("event not found")
	ErrEventNotActive        = errors.New("event is not active")
	ErrEventHasSales         = errors.New("event has sold tickets and cannot be deleted")
	ErrOrderNotFound         = errors.New("order not found")
	ErrInsufficientInventory = errors.New("not enough tickets available")
	ErrNotAuthorized         = errors.New("not authorized for this operation")
)

// CompensationError reports a release that failed after a broken order
// issuance. The reservation it was meant to undo is still applied in the
// store, so the error must reach an operator rather than be retried away.
type CompensationError struct {
	OrderID  string
	EventID  string
	Quantity int
	Err      error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation failed for order %s (event %s, qty %d): %v",
		e.OrderID, e.EventID, e.Quantity, e.Err)
}

func (e *CompensationError) Unwrap() error {
	return e.Err
}
