package order

import (
	"context"
	"errors"

	"github.com/Zhima-Mochi/marketplace-checkout/internal/application"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/domain/apperr"
	domain "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// GetOrderUseCase looks an order up by its public number.
type GetOrderUseCase struct {
	repo domain.Repository
	inst application.Instrument
}

func NewGetOrderUseCase(repo domain.Repository, tel observability.Observability) *GetOrderUseCase {
	return &GetOrderUseCase{
		repo: repo,
		inst: application.NewInstrument(orderService, useCaseOrderGet, tel),
	}
}

func (uc *GetOrderUseCase) Execute(ctx context.Context, number string) (_ *domain.Order, err error) {
	ctx, run := uc.inst.Start(ctx, "GetOrder", attribute.String("order.number", number))
	defer func() { run.End(err) }()

	if !domain.IsNumber(number) {
		run.Fail("NUMBER_INVALID")
		return nil, apperr.Wrap(apperr.ErrNotFound, domain.ErrNotFound)
	}
	o, err := uc.repo.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			run.Fail("NOT_FOUND")
			return nil, apperr.Wrap(apperr.ErrNotFound, err)
		}
		run.Fail("REPO_GET_FAILED")
		return nil, err
	}
	return o, nil
}
