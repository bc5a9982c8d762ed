package order

import (
	"context"

	domcatalog "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/catalog"
)

type IDGenerator interface {
	NewID() string
}

type NumberGenerator interface {
	NextNumber() string
}

// ProductFinder resolves a slug to a purchasable product.
type ProductFinder interface {
	Execute(ctx context.Context, slug string) (*domcatalog.Product, error)
}
