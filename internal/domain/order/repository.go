package order

import (
	"context"
	"time"
)

type Repository interface {
	// Insert stores a new order. Duplicate ids or numbers yield ErrConflict.
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	AttachPaymentSession(ctx context.Context, id, sessionID string) error
	// MarkPaid applies unpaid -> paid as one conditional write.
	// transitioned is false when the order was already paid.
	MarkPaid(ctx context.Context, id string, at time.Time) (transitioned bool, err error)
	// ClaimEffect marks effect as applied unless another caller already did.
	ClaimEffect(ctx context.Context, id string, effect Effect, at time.Time) (claimed bool, err error)
	// ReleaseEffect undoes a claim whose effect could not be applied.
	ReleaseEffect(ctx context.Context, id string, effect Effect) error
}
