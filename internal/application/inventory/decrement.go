package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/marketplace-checkout/internal/application"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/domain/apperr"
	domain "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	inventoryService   = "inventory-service"
	useCaseDecrement   = "inventory.decrement"
	publishPeer        = "outbox"
	publishTimeout     = 300 * time.Millisecond
	outcomeNoStock     = "no_stock"
	outcomeDecremented = "decremented"
	outcomeRepeat      = "repeat"
)

type DecrementInput struct {
	OrderID   string
	ProductID string
	Quantity  int
}

type DecrementResult struct {
	Adjustment domain.Adjustment
}

var _ application.UseCase[DecrementInput, *DecrementResult] = (*DecrementUseCase)(nil)

// DecrementUseCase removes sold stock with a floor at zero. Running out is not
// an error: overselling is handled by the business, not by this path. With an
// OrderID the decrement happens at most once for that order and product.
type DecrementUseCase struct {
	store     domain.Store
	publisher domoutbox.Publisher
	inst      application.Instrument
	counter   observability.Counter
}

func NewDecrementUseCase(store domain.Store, publisher domoutbox.Publisher, tel observability.Observability) *DecrementUseCase {
	inst := application.NewInstrument(inventoryService, useCaseDecrement, tel)
	return &DecrementUseCase{
		store:     store,
		publisher: publisher,
		inst:      inst,
		counter:   inst.Metrics().Counter(observability.MInventoryDecrements),
	}
}

func (uc *DecrementUseCase) Execute(ctx context.Context, cmd DecrementInput) (_ *DecrementResult, err error) {
	ctx, run := uc.inst.Start(ctx, "DecrementInventory",
		attribute.String("order.id", cmd.OrderID),
		attribute.String("product.id", cmd.ProductID),
		attribute.Int("inventory.quantity", cmd.Quantity),
	)
	outcome := outcomeDecremented
	defer func() {
		if err != nil {
			outcome = application.OutcomeError
		}
		uc.counter.Add(1, observability.L("outcome", outcome))
		run.End(err)
	}()

	if cmd.ProductID == "" {
		run.Fail("PRODUCT_ID_REQUIRED")
		return nil, apperr.Invalid("product id is required")
	}
	if cmd.Quantity <= 0 {
		run.Fail("QUANTITY_INVALID")
		return nil, apperr.Wrap(apperr.ErrInvalidInput, domain.ErrInvalidQuantity)
	}

	var adj domain.Adjustment
	if cmd.OrderID != "" {
		adj, err = uc.store.DecrementForOrder(ctx, cmd.OrderID, cmd.ProductID, cmd.Quantity)
	} else {
		adj, err = uc.store.DecrementWithFloor(ctx, cmd.ProductID, cmd.Quantity)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			run.Fail("PRODUCT_NOT_FOUND")
			return nil, apperr.Wrap(apperr.ErrNotFound, err)
		}
		run.Fail("DECREMENT_FAILED")
		return nil, fmt.Errorf("inventory: decrement: %w", err)
	}

	if adj.Repeat {
		outcome = outcomeRepeat
		run.Status("ALREADY_DECREMENTED")
		return &DecrementResult{Adjustment: adj}, nil
	}

	run.Note(
		observability.F("stock_before", adj.Before),
		observability.F("stock_after", adj.After),
	)
	if !adj.Applied() {
		outcome = outcomeNoStock
		run.Status("NO_STOCK")
		return &DecrementResult{Adjustment: adj}, nil
	}

	if uc.publisher != nil {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		e := domain.NewInventoryDecrementedEvent(cmd.OrderID, adj)
		if pubErr := application.External(uc.inst.Metrics(), publishPeer, e.EventName(), func() error {
			return uc.publisher.Publish(pubCtx, e)
		}); pubErr != nil {
			run.Note(observability.F("event_publish_error", pubErr.Error()))
		}
		cancel()
	}
	return &DecrementResult{Adjustment: adj}, nil
}
