package checkout

import (
	"context"

	"github.com/Zhima-Mochi/marketplace-checkout/internal/application"
	apporder "github.com/Zhima-Mochi/marketplace-checkout/internal/application/order"
	apppayment "github.com/Zhima-Mochi/marketplace-checkout/internal/application/payment"
	domorder "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	checkoutService = "checkout-service"
	useCaseStart    = "checkout.start"
)

type StartCheckoutInput struct {
	ProductSlug     string
	Quantity        int
	Mode            dompayment.Mode
	Customer        domorder.Customer
	ShippingAddress domorder.Address
}

type StartCheckoutResult struct {
	Order   *domorder.Order
	Session *apppayment.SessionHandle
}

var _ application.UseCase[StartCheckoutInput, *StartCheckoutResult] = (*StartCheckoutUseCase)(nil)

// StartCheckoutUseCase creates the pending order first and then the payment
// session that points back at it. A provider failure leaves the order unpaid.
type StartCheckoutUseCase struct {
	orders   OrderCreator
	sessions SessionCreator
	tokens   TokenIssuer
	links    Links
	inst     application.Instrument
}

func NewStartCheckoutUseCase(orders OrderCreator, sessions SessionCreator, tokens TokenIssuer, links Links, tel observability.Observability) *StartCheckoutUseCase {
	return &StartCheckoutUseCase{
		orders:   orders,
		sessions: sessions,
		tokens:   tokens,
		links:    links,
		inst:     application.NewInstrument(checkoutService, useCaseStart, tel),
	}
}

func (uc *StartCheckoutUseCase) Execute(ctx context.Context, cmd StartCheckoutInput) (_ *StartCheckoutResult, err error) {
	ctx, run := uc.inst.Start(ctx, "StartCheckout",
		attribute.String("product.slug", cmd.ProductSlug),
		attribute.String("payment.mode", string(cmd.Mode)),
	)
	defer func() { run.End(err) }()

	created, err := uc.orders.Execute(ctx, apporder.CreateOrderInput{
		ProductSlug:     cmd.ProductSlug,
		Quantity:        cmd.Quantity,
		Customer:        cmd.Customer,
		ShippingAddress: cmd.ShippingAddress,
	})
	if err != nil {
		run.Fail("ORDER_CREATE_FAILED")
		return nil, err
	}
	o := created.Order
	run.Note(
		observability.F("order_id", o.ID),
		observability.F("order_number", o.Number),
	)

	token := ""
	if uc.tokens != nil {
		if token, err = uc.tokens.Issue(o.Number); err != nil {
			// The thank-you page falls back to the bare order number.
			run.Note(observability.F("token_error", err.Error()))
			token, err = "", nil
		}
	}

	session, err := uc.sessions.Execute(ctx, apppayment.CreateSessionInput{
		Order:      o,
		Product:    created.Product,
		Quantity:   cmd.Quantity,
		Mode:       cmd.Mode,
		SuccessURL: uc.links.ThankYou(o.Number, token),
		CancelURL:  uc.links.Canceled(cmd.ProductSlug),
	})
	if err != nil {
		run.Fail("SESSION_CREATE_FAILED")
		return nil, err
	}
	return &StartCheckoutResult{Order: o, Session: session}, nil
}
