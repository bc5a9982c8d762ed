package order_test

import (
	"context"
	"strconv"
	"sync"
	"testing"

	appcatalog "github.com/Zhima-Mochi/marketplace-checkout/internal/application/catalog"
	apporder "github.com/Zhima-Mochi/marketplace-checkout/internal/application/order"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/domain/apperr"
	domcatalog "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/catalog"
	domain "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

type seqIDs struct{ n int }

func (s *seqIDs) NewID() string {
	s.n++
	return "o-" + strconv.Itoa(s.n)
}

// fixedNumbers hands out the listed numbers in order.
type fixedNumbers struct {
	next []string
}

func (f *fixedNumbers) NextNumber() string {
	n := f.next[0]
	if len(f.next) > 1 {
		f.next = f.next[1:]
	}
	return n
}

type fixture struct {
	orders    *memory.OrderRepository
	publisher *recordingPublisher
	uc        *apporder.CreateOrderUseCase
}

func newFixture(numbers apporder.NumberGenerator) fixture {
	products := memory.NewProductRepository(
		&domcatalog.Product{
			ID: "p-1", Slug: "lamp", Name: "Lamp",
			Price:      decimal.RequireFromString("129.00"),
			Inventory:  5,
			Status:     domcatalog.StatusActive,
			Validation: domcatalog.Auto(domcatalog.ValidationChecked),
		},
		&domcatalog.Product{
			ID: "p-2", Slug: "held", Name: "Held",
			Price:      decimal.RequireFromString("10.00"),
			Status:     domcatalog.StatusActive,
			Validation: domcatalog.Auto(domcatalog.ValidationNeedsReview),
		},
	)
	orders := memory.NewOrderRepository()
	pub := &recordingPublisher{}
	finder := appcatalog.NewFindActiveProductUseCase(products, observability.Nop())
	return fixture{
		orders:    orders,
		publisher: pub,
		uc:        apporder.NewCreateOrderUseCase(orders, finder, &seqIDs{}, numbers, pub, observability.Nop()),
	}
}

func input(slug string, qty int) apporder.CreateOrderInput {
	return apporder.CreateOrderInput{
		ProductSlug:     slug,
		Quantity:        qty,
		Customer:        domain.Customer{Name: "Ada", Email: "ada@example.com"},
		ShippingAddress: domain.Address{Line1: "1 Main St", City: "Lisbon", Country: "PT"},
	}
}

func TestCreateOrderPricesFromCatalog(t *testing.T) {
	f := newFixture(domain.NewNumberGenerator())

	res, err := f.uc.Execute(context.Background(), input("lamp", 2))
	require.NoError(t, err)

	o := res.Order
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Equal(t, domain.PaymentUnpaid, o.PaymentStatus)
	assert.Equal(t, "258.00", o.Total.StringFixed(2))
	require.Len(t, o.LineItems, 1)
	assert.Equal(t, "p-1", o.LineItems[0].ProductID)
	assert.Equal(t, "Lamp", o.LineItems[0].Snapshot.Name)
	assert.True(t, domain.IsNumber(o.Number))

	stored, err := f.orders.GetByNumber(context.Background(), o.Number)
	require.NoError(t, err)
	assert.Equal(t, o.ID, stored.ID)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, "order.created", f.publisher.events[0].EventName())
}

func TestCreateOrderRejections(t *testing.T) {
	f := newFixture(domain.NewNumberGenerator())
	ctx := context.Background()

	_, err := f.uc.Execute(ctx, input("lamp", 0))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = f.uc.Execute(ctx, input("held", 1))
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.uc.Execute(ctx, input("missing", 1))
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	bad := input("lamp", 1)
	bad.Customer.Email = "nope"
	_, err = f.uc.Execute(ctx, bad)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	assert.ErrorIs(t, err, domain.ErrInvalidCustomer)

	assert.Empty(t, f.publisher.events)
}

func TestCreateOrderRetriesNumberCollision(t *testing.T) {
	f := newFixture(&fixedNumbers{next: []string{"ORD-A", "ORD-A", "ORD-B"}})
	ctx := context.Background()

	first, err := f.uc.Execute(ctx, input("lamp", 1))
	require.NoError(t, err)
	second, err := f.uc.Execute(ctx, input("lamp", 1))
	require.NoError(t, err)

	assert.Equal(t, "ORD-A", first.Order.Number)
	assert.Equal(t, "ORD-B", second.Order.Number)
}

func TestCreateOrderIsNotIdempotent(t *testing.T) {
	f := newFixture(domain.NewNumberGenerator())
	ctx := context.Background()

	a, err := f.uc.Execute(ctx, input("lamp", 1))
	require.NoError(t, err)
	b, err := f.uc.Execute(ctx, input("lamp", 1))
	require.NoError(t, err)
	assert.NotEqual(t, a.Order.Number, b.Order.Number)
}

func TestGetOrder(t *testing.T) {
	f := newFixture(domain.NewNumberGenerator())
	res, err := f.uc.Execute(context.Background(), input("lamp", 1))
	require.NoError(t, err)

	get := apporder.NewGetOrderUseCase(f.orders, observability.Nop())
	o, err := get.Execute(context.Background(), res.Order.Number)
	require.NoError(t, err)
	assert.Equal(t, res.Order.ID, o.ID)

	_, err = get.Execute(context.Background(), "ORD-ZZZZZZ")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = get.Execute(context.Background(), "../etc")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
