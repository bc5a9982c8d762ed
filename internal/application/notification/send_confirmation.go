package notification

import (
	"context"
	"strings"
	"time"

	"github.com/Zhima-Mochi/marketplace-checkout/internal/application"
	domain "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/notification"
	domorder "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	notificationService = "notification-service"
	useCaseConfirmation = "notification.order_confirmation"
	senderPeer          = "mail"
	sendTimeout         = 10 * time.Second
)

type SendResult struct {
	Sent bool
}

// SendConfirmationUseCase mails the buyer once payment is recorded.
// It is best effort: failures are logged and reported through the result,
// never returned, so they cannot undo the payment transition.
type SendConfirmationUseCase struct {
	sender         domain.Sender
	invoiceBaseURL string
	inst           application.Instrument
}

func NewSendConfirmationUseCase(sender domain.Sender, invoiceBaseURL string, tel observability.Observability) *SendConfirmationUseCase {
	return &SendConfirmationUseCase{
		sender:         sender,
		invoiceBaseURL: strings.TrimRight(invoiceBaseURL, "/"),
		inst:           application.NewInstrument(notificationService, useCaseConfirmation, tel),
	}
}

func (uc *SendConfirmationUseCase) Execute(ctx context.Context, o *domorder.Order) (*SendResult, error) {
	ctx, run := uc.inst.Start(ctx, "SendOrderConfirmation")
	defer run.End(nil)

	res := &SendResult{}
	if o == nil {
		run.Fail("ORDER_MISSING")
		return res, nil
	}
	run.Span().SetAttributes(attribute.String("order.id", o.ID), attribute.String("order.number", o.Number))
	run.Note(observability.F("order_number", o.Number))

	if uc.sender == nil {
		run.Fail("SENDER_NOT_CONFIGURED")
		return res, nil
	}

	msg, renderErr := uc.message(o)
	if renderErr != nil {
		run.Fail("RENDER_FAILED")
		run.Logger().Error("confirmation_render_failed", observability.F("error", renderErr.Error()))
		return res, nil
	}

	sctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	sendErr := application.External(uc.inst.Metrics(), senderPeer, "send", func() error {
		return uc.sender.Send(sctx, msg)
	})
	if sendErr != nil {
		run.Fail("SEND_FAILED")
		run.Logger().Warn("confirmation_send_failed",
			observability.F("order_number", o.Number),
			observability.F("error", sendErr.Error()),
		)
		return res, nil
	}
	res.Sent = true
	return res, nil
}

func (uc *SendConfirmationUseCase) message(o *domorder.Order) (domain.Message, error) {
	hasInvoice := o.InvoiceID != "" && uc.invoiceBaseURL != ""
	html, err := renderConfirmation(o, hasInvoice)
	if err != nil {
		return domain.Message{}, err
	}
	msg := domain.Message{
		To:      o.Customer.Email,
		Subject: "Order Confirmation - " + o.Number,
		HTML:    html,
	}
	if hasInvoice {
		msg.Attachments = []domain.Attachment{{
			Filename: "invoice-" + o.Number + ".pdf",
			URL:      uc.invoiceBaseURL + "/" + o.InvoiceID,
		}}
	}
	return msg, nil
}
