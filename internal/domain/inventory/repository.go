package inventory

import (
	"context"
)

// Store owns product stock counts.
type Store interface {
	// DecrementWithFloor removes quantity from the product's stock in one atomic
	// step, clamping at zero. Stock at or below zero is left untouched.
	DecrementWithFloor(ctx context.Context, productID string, quantity int) (Adjustment, error)
	// DecrementForOrder is DecrementWithFloor recorded against orderID in the
	// same atomic step. It runs at most once per order and product; later calls
	// return an Adjustment with Repeat set. Nothing is recorded when it fails.
	DecrementForOrder(ctx context.Context, orderID, productID string, quantity int) (Adjustment, error)
}
