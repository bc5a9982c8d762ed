package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/marketplace-checkout/internal/application"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/domain/apperr"
	domcatalog "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/catalog"
	domain "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	orderService       = "order-service"
	useCaseOrderCreate = "order.create"
	useCaseOrderGet    = "order.get"
	publishPeer        = "outbox"
	publishTimeout     = 300 * time.Millisecond
	// numberAttempts bounds retries when a generated order number collides
	// with one issued by another instance.
	numberAttempts = 3
)

var ErrRepository = errors.New("order: repository failure")

type CreateOrderInput struct {
	ProductSlug     string
	Quantity        int
	Customer        domain.Customer
	ShippingAddress domain.Address
}

type CreateOrderResult struct {
	Order   *domain.Order
	Product *domcatalog.Product
}

var _ application.UseCase[CreateOrderInput, *CreateOrderResult] = (*CreateOrderUseCase)(nil)

// CreateOrderUseCase turns a checkout request into a pending, unpaid order.
// It is not idempotent: every successful call stores a new order.
type CreateOrderUseCase struct {
	repo      domain.Repository
	products  ProductFinder
	ids       IDGenerator
	numbers   NumberGenerator
	publisher domoutbox.Publisher
	inst      application.Instrument
}

func NewCreateOrderUseCase(
	repo domain.Repository,
	products ProductFinder,
	ids IDGenerator,
	numbers NumberGenerator,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *CreateOrderUseCase {
	return &CreateOrderUseCase{
		repo:      repo,
		products:  products,
		ids:       ids,
		numbers:   numbers,
		publisher: publisher,
		inst:      application.NewInstrument(orderService, useCaseOrderCreate, tel),
	}
}

func (uc *CreateOrderUseCase) Execute(ctx context.Context, cmd CreateOrderInput) (_ *CreateOrderResult, err error) {
	ctx, run := uc.inst.Start(ctx, "CreateOrder",
		attribute.String("product.slug", cmd.ProductSlug),
		attribute.Int("order.quantity", cmd.Quantity),
	)
	defer func() { run.End(err) }()

	if cmd.Quantity < 1 {
		run.Fail("QUANTITY_INVALID")
		return nil, apperr.Wrap(apperr.ErrInvalidInput, domain.ErrInvalidQuantity)
	}
	if err := ctx.Err(); err != nil {
		run.Fail("CONTEXT_CANCELED")
		return nil, err
	}

	// Price always comes from the catalog, never from the request.
	product, err := uc.products.Execute(ctx, cmd.ProductSlug)
	if err != nil {
		run.Fail("PRODUCT_NOT_FOUND")
		return nil, err
	}

	item, err := domain.NewLineItem(product.ID, product.Slug, product.Name, product.Price, product.CurrencyOrDefault(), cmd.Quantity)
	if err != nil {
		run.Fail("LINE_ITEM_INVALID")
		return nil, apperr.Wrap(apperr.ErrInvalidInput, err)
	}

	var entity *domain.Order
	for attempt := 1; ; attempt++ {
		entity, err = domain.New(uc.ids.NewID(), uc.numbers.NextNumber(), cmd.Customer, cmd.ShippingAddress, []domain.LineItem{item})
		if err != nil {
			run.Fail("ORDER_INVALID")
			return nil, apperr.Wrap(apperr.ErrInvalidInput, err)
		}
		if err := ctx.Err(); err != nil {
			run.Fail("CONTEXT_CANCELED")
			return nil, err
		}

		insertErr := uc.repo.Insert(ctx, entity)
		if insertErr == nil {
			break
		}
		if errors.Is(insertErr, domain.ErrConflict) && attempt < numberAttempts {
			run.Event("order.number_collision", attribute.String("order.number", entity.Number))
			continue
		}
		run.Fail("REPO_INSERT_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, insertErr)
	}

	if publishErr := uc.publish(ctx, domain.NewOrderCreatedEvent(entity)); publishErr != nil {
		run.Status("EVENT_PUBLISH_FAILED")
		run.Note(observability.F("event_publish_error", publishErr.Error()))
	}

	run.Span().SetAttributes(
		attribute.String("order.id", entity.ID),
		attribute.String("order.number", entity.Number),
		attribute.String("order.total", entity.Total.StringFixed(2)),
	)
	run.Note(
		observability.F("order_id", entity.ID),
		observability.F("order_number", entity.Number),
	)
	run.Event("order.created", attribute.String("order.id", entity.ID))

	return &CreateOrderResult{Order: entity, Product: product}, nil
}

func (uc *CreateOrderUseCase) publish(ctx context.Context, e domoutbox.Event) error {
	if uc.publisher == nil {
		return nil
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return application.External(uc.inst.Metrics(), publishPeer, e.EventName(), func() error {
		return uc.publisher.Publish(pubCtx, e)
	})
}
