package checkout

import (
	"context"

	apporder "github.com/Zhima-Mochi/marketplace-checkout/internal/application/order"
	apppayment "github.com/Zhima-Mochi/marketplace-checkout/internal/application/payment"
)

type OrderCreator interface {
	Execute(ctx context.Context, cmd apporder.CreateOrderInput) (*apporder.CreateOrderResult, error)
}

type SessionCreator interface {
	Execute(ctx context.Context, cmd apppayment.CreateSessionInput) (*apppayment.SessionHandle, error)
}

// TokenIssuer signs the token that lets a buyer view their order after paying.
type TokenIssuer interface {
	Issue(orderNumber string) (string, error)
}
