package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/marketplace-checkout/internal/application"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/domain/apperr"
	domcatalog "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/catalog"
	domorder "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/order"
	domain "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const (
	paymentService        = "payment-service"
	useCaseCreateSession  = "payment.create_session"
	providerPeer          = "payment_provider"
	DefaultSessionTimeout = 15 * time.Second
)

type CreateSessionInput struct {
	Order      *domorder.Order
	Product    *domcatalog.Product
	Quantity   int
	Mode       domain.Mode
	SuccessURL string
	CancelURL  string
}

// SessionHandle is what the buyer needs to complete payment.
type SessionHandle struct {
	Mode         domain.Mode
	SessionID    string
	URL          string
	ClientSecret string
	OrderID      string
	OrderNumber  string
	Amount       int64
	Currency     string
}

var _ application.UseCase[CreateSessionInput, *SessionHandle] = (*CreateSessionUseCase)(nil)

// CreateSessionUseCase asks the provider for a hosted session or a payment intent
// tagged with the order's correlation metadata. It never changes payment state.
type CreateSessionUseCase struct {
	provider domain.Provider
	sessions SessionRecorder
	timeout  time.Duration
	inst     application.Instrument
}

func NewCreateSessionUseCase(provider domain.Provider, sessions SessionRecorder, timeout time.Duration, tel observability.Observability) *CreateSessionUseCase {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &CreateSessionUseCase{
		provider: provider,
		sessions: sessions,
		timeout:  timeout,
		inst:     application.NewInstrument(paymentService, useCaseCreateSession, tel),
	}
}

func (uc *CreateSessionUseCase) Execute(ctx context.Context, cmd CreateSessionInput) (_ *SessionHandle, err error) {
	ctx, run := uc.inst.Start(ctx, "CreatePaymentSession",
		attribute.String("payment.mode", string(cmd.Mode)),
		attribute.Int("order.quantity", cmd.Quantity),
	)
	defer func() { run.End(err) }()

	if cmd.Order == nil || cmd.Product == nil {
		run.Fail("ORDER_OR_PRODUCT_MISSING")
		return nil, apperr.Invalid("order and product are required")
	}
	if cmd.Quantity < 1 {
		run.Fail("QUANTITY_INVALID")
		return nil, apperr.Wrap(apperr.ErrInvalidInput, domorder.ErrInvalidQuantity)
	}
	mode, ok := domain.ParseMode(string(cmd.Mode))
	if !ok {
		run.Fail("MODE_INVALID")
		return nil, apperr.Invalid("unknown payment mode " + string(cmd.Mode))
	}

	unit := domain.MinorUnits(cmd.Product.Price)
	total := domain.MinorUnits(cmd.Product.Price.Mul(decimal.NewFromInt(int64(cmd.Quantity))))
	if unit <= 0 || total <= 0 {
		run.Fail("AMOUNT_INVALID")
		return nil, apperr.Wrap(apperr.ErrInvalidInput, domain.ErrInvalidAmount)
	}

	req := domain.SessionRequest{
		Mode: mode,
		Correlation: domain.Correlation{
			OrderID:     cmd.Order.ID,
			OrderNumber: cmd.Order.Number,
			ProductID:   cmd.Product.ID,
			ProductSlug: cmd.Product.Slug,
		},
		ProductName:   cmd.Product.Name,
		Description:   cmd.Product.Description,
		Currency:      cmd.Product.CurrencyOrDefault(),
		UnitAmount:    unit,
		Quantity:      cmd.Quantity,
		TotalAmount:   total,
		CustomerEmail: cmd.Order.Customer.Email,
		SuccessURL:    cmd.SuccessURL,
		CancelURL:     cmd.CancelURL,
	}
	run.Span().SetAttributes(
		attribute.String("order.id", cmd.Order.ID),
		attribute.Int64("payment.amount_minor", total),
	)

	if uc.provider == nil {
		run.Fail("PROVIDER_NOT_CONFIGURED")
		return nil, apperr.Wrap(apperr.ErrProviderUnavailable, domain.ErrProviderUnavailable)
	}

	pctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	var session *domain.Session
	callErr := application.External(uc.inst.Metrics(), providerPeer, string(mode), func() error {
		var err error
		if mode == domain.ModeIntent {
			session, err = uc.provider.CreatePaymentIntent(pctx, req)
		} else {
			session, err = uc.provider.CreateCheckoutSession(pctx, req)
		}
		return err
	})
	if callErr != nil {
		return nil, classifyProviderError(run, pctx, callErr)
	}
	if session == nil || session.ID == "" {
		run.Fail("PROVIDER_EMPTY_SESSION")
		return nil, fmt.Errorf("%w: empty session", domain.ErrProviderRejected)
	}

	if uc.sessions != nil {
		if attachErr := uc.sessions.AttachPaymentSession(ctx, cmd.Order.ID, session.ID); attachErr != nil {
			// Metadata on the session already correlates the webhook; the stored id is a convenience.
			run.Status("SESSION_ATTACH_FAILED")
			run.Note(observability.F("attach_error", attachErr.Error()))
		}
	}

	run.Note(
		observability.F("order_id", cmd.Order.ID),
		observability.F("session_id", session.ID),
		observability.F("amount_minor", total),
	)
	return &SessionHandle{
		Mode:         mode,
		SessionID:    session.ID,
		URL:          session.URL,
		ClientSecret: session.ClientSecret,
		OrderID:      cmd.Order.ID,
		OrderNumber:  cmd.Order.Number,
		Amount:       total,
		Currency:     req.Currency,
	}, nil
}

func classifyProviderError(run *application.Run, pctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(pctx.Err(), context.DeadlineExceeded):
		run.Fail("PROVIDER_TIMEOUT")
		return apperr.Wrap(apperr.ErrProviderUnavailable, err)
	case errors.Is(err, domain.ErrProviderUnavailable):
		run.Fail("PROVIDER_UNAVAILABLE")
		return apperr.Wrap(apperr.ErrProviderUnavailable, err)
	case errors.Is(err, domain.ErrProviderRejected):
		run.Fail("PROVIDER_REJECTED")
		return err
	default:
		run.Fail("PROVIDER_ERROR")
		return apperr.Wrap(apperr.ErrProviderUnavailable, err)
	}
}
