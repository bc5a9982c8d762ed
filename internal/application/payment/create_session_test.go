package payment_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	apppayment "github.com/Zhima-Mochi/marketplace-checkout/internal/application/payment"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/domain/apperr"
	domcatalog "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/catalog"
	domorder "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/order"
	domain "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	err      error
	block    bool
	requests []domain.SessionRequest
}

func (f *fakeProvider) create(ctx context.Context, req domain.SessionRequest) (*domain.Session, error) {
	f.requests = append(f.requests, req)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	s := &domain.Session{ID: fmt.Sprintf("sess_%d", len(f.requests)), Mode: req.Mode}
	if req.Mode == domain.ModeIntent {
		s.ClientSecret = s.ID + "_secret"
	} else {
		s.URL = "https://pay.example.com/" + s.ID
	}
	return s, nil
}

func (f *fakeProvider) CreateCheckoutSession(ctx context.Context, req domain.SessionRequest) (*domain.Session, error) {
	return f.create(ctx, req)
}

func (f *fakeProvider) CreatePaymentIntent(ctx context.Context, req domain.SessionRequest) (*domain.Session, error) {
	return f.create(ctx, req)
}

type sessionFixture struct {
	orders  *memory.OrderRepository
	order   *domorder.Order
	product *domcatalog.Product
}

func newSessionFixture(t *testing.T) sessionFixture {
	t.Helper()
	product := &domcatalog.Product{
		ID: "p-1", Slug: "lamp", Name: "Lamp", Description: "Brass",
		Price:    decimal.RequireFromString("129.00"),
		Currency: "usd",
	}
	item, err := domorder.NewLineItem(product.ID, product.Slug, product.Name, product.Price, "USD", 2)
	require.NoError(t, err)
	o, err := domorder.New("o-1", "ORD-1", domorder.Customer{Name: "Ada", Email: "ada@example.com"},
		domorder.Address{Line1: "1 Main St", City: "Lisbon", Country: "PT"}, []domorder.LineItem{item})
	require.NoError(t, err)

	orders := memory.NewOrderRepository()
	require.NoError(t, orders.Insert(context.Background(), o))
	return sessionFixture{orders: orders, order: o, product: product}
}

func (f sessionFixture) input(mode domain.Mode) apppayment.CreateSessionInput {
	return apppayment.CreateSessionInput{
		Order: f.order, Product: f.product, Quantity: 2, Mode: mode,
		SuccessURL: "https://shop.example.com/thank-you?orderNumber=ORD-1",
		CancelURL:  "https://shop.example.com/marketplace/lamp/checkout?canceled=1",
	}
}

func TestCreateHostedSession(t *testing.T) {
	f := newSessionFixture(t)
	provider := &fakeProvider{}
	uc := apppayment.NewCreateSessionUseCase(provider, f.orders, time.Second, observability.Nop())

	h, err := uc.Execute(context.Background(), f.input(domain.ModeHosted))
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/sess_1", h.URL)
	assert.Equal(t, int64(25800), h.Amount)
	assert.Equal(t, "USD", h.Currency)
	assert.Equal(t, "ORD-1", h.OrderNumber)

	require.Len(t, provider.requests, 1)
	req := provider.requests[0]
	assert.Equal(t, int64(12900), req.UnitAmount)
	assert.Equal(t, int64(25800), req.TotalAmount)
	assert.Equal(t, 2, req.Quantity)
	assert.Equal(t, map[string]string{
		domain.MetaOrderID:     "o-1",
		domain.MetaOrderNumber: "ORD-1",
		domain.MetaProductID:   "p-1",
		domain.MetaProductSlug: "lamp",
	}, req.Correlation.Metadata())

	stored, err := f.orders.Get(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Equal(t, "sess_1", stored.PaymentSessionID)
	assert.Equal(t, domorder.PaymentUnpaid, stored.PaymentStatus)
}

func TestCreateIntentSession(t *testing.T) {
	f := newSessionFixture(t)
	uc := apppayment.NewCreateSessionUseCase(&fakeProvider{}, f.orders, time.Second, observability.Nop())

	h, err := uc.Execute(context.Background(), f.input(domain.ModeIntent))
	require.NoError(t, err)
	assert.Equal(t, "sess_1_secret", h.ClientSecret)
	assert.Empty(t, h.URL)
}

func TestCreateSessionRejectsQuantityBeforeProviderCall(t *testing.T) {
	f := newSessionFixture(t)
	provider := &fakeProvider{}
	uc := apppayment.NewCreateSessionUseCase(provider, f.orders, time.Second, observability.Nop())

	for _, qty := range []int{0, -1} {
		in := f.input(domain.ModeIntent)
		in.Quantity = qty
		_, err := uc.Execute(context.Background(), in)
		require.ErrorIs(t, err, apperr.ErrInvalidInput)
	}
	assert.Empty(t, provider.requests)
}

func TestCreateSessionFailures(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		provider domain.Provider
		mutate   func(*apppayment.CreateSessionInput)
		want     error
	}{
		{"no provider", nil, nil, apperr.ErrProviderUnavailable},
		{"provider down", &fakeProvider{err: domain.ErrProviderUnavailable}, nil, apperr.ErrProviderUnavailable},
		{"provider rejects", &fakeProvider{err: fmt.Errorf("%w: bad currency", domain.ErrProviderRejected)}, nil, domain.ErrProviderRejected},
		{"network error", &fakeProvider{err: errors.New("dial tcp: refused")}, nil, apperr.ErrProviderUnavailable},
		{"timeout", &fakeProvider{block: true}, nil, apperr.ErrProviderUnavailable},
		{"zero quantity", &fakeProvider{}, func(in *apppayment.CreateSessionInput) { in.Quantity = 0 }, apperr.ErrInvalidInput},
		{"free product", &fakeProvider{}, func(in *apppayment.CreateSessionInput) {
			p := *in.Product
			p.Price = decimal.Zero
			in.Product = &p
		}, apperr.ErrInvalidInput},
		{"unknown mode", &fakeProvider{}, func(in *apppayment.CreateSessionInput) { in.Mode = "crypto" }, apperr.ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			uc := apppayment.NewCreateSessionUseCase(tc.provider, f.orders, 20*time.Millisecond, observability.Nop())
			in := f.input(domain.ModeHosted)
			if tc.mutate != nil {
				tc.mutate(&in)
			}
			_, err := uc.Execute(ctx, in)
			assert.ErrorIs(t, err, tc.want)
			if fp, ok := tc.provider.(*fakeProvider); ok && errors.Is(tc.want, apperr.ErrInvalidInput) {
				assert.Empty(t, fp.requests, "invalid input must not reach the provider")
			}

			stored, getErr := f.orders.Get(ctx, "o-1")
			require.NoError(t, getErr)
			assert.Equal(t, domorder.PaymentUnpaid, stored.PaymentStatus)
		})
	}
}
