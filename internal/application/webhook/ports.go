package webhook

import (
	"context"
	"time"

	appinventory "github.com/Zhima-Mochi/marketplace-checkout/internal/application/inventory"
	appnotification "github.com/Zhima-Mochi/marketplace-checkout/internal/application/notification"
	domorder "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/order"
)

// OrderStore is the slice of the order repository the reconciler needs.
type OrderStore interface {
	Get(ctx context.Context, id string) (*domorder.Order, error)
	GetByNumber(ctx context.Context, number string) (*domorder.Order, error)
	MarkPaid(ctx context.Context, id string, at time.Time) (bool, error)
	ClaimEffect(ctx context.Context, id string, effect domorder.Effect, at time.Time) (bool, error)
	ReleaseEffect(ctx context.Context, id string, effect domorder.Effect) error
}

type InventoryAdjuster interface {
	Execute(ctx context.Context, cmd appinventory.DecrementInput) (*appinventory.DecrementResult, error)
}

type ConfirmationSender interface {
	Execute(ctx context.Context, o *domorder.Order) (*appnotification.SendResult, error)
}
