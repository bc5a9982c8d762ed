package inventory

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("inventory: product not found")
	ErrInvalidQuantity = errors.New("inventory: quantity must be greater than zero")
)

// Adjustment is the outcome of one floor-clamped decrement.
type Adjustment struct {
	ProductID string
	Requested int
	Before    int
	After     int
	At        time.Time
	// Repeat is set when the order's decrement for this product was already
	// recorded. Stock is left as is.
	Repeat bool
}

// Applied reports whether stock actually moved.
func (a Adjustment) Applied() bool { return a.Before != a.After }

// ClampedDecrement returns stock after removing quantity, never below zero.
// Stock already at or below zero is left as is.
func ClampedDecrement(stock, quantity int) int {
	if stock <= 0 || quantity <= 0 {
		return stock
	}
	if quantity >= stock {
		return 0
	}
	return stock - quantity
}
