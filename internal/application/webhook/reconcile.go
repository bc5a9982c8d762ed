package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/marketplace-checkout/internal/application"
	appinventory "github.com/Zhima-Mochi/marketplace-checkout/internal/application/inventory"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/domain/apperr"
	dominventory "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/outbox"
	dompayment "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
)

const (
	webhookService   = "webhook-service"
	useCaseReconcile = "webhook.reconcile"
	publishPeer      = "outbox"
	publishTimeout   = 300 * time.Millisecond
	releaseTimeout   = 2 * time.Second
)

// ErrOrderNotVisible means the event refers to an order this instance cannot see
// yet. It is transient; the provider's redelivery retries it.
var ErrOrderNotVisible = errors.New("webhook: correlated order not found")

type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	// OutcomeReplay covers redelivered events whose transition already happened.
	OutcomeReplay  Outcome = "replay"
	OutcomeIgnored Outcome = "ignored"
	OutcomeDropped Outcome = "dropped"
)

type ProviderEventInput struct {
	Payload   []byte
	Signature string
}

// Resolution is the result of the verify and correlate phase. It carries no
// side effects and may be computed any number of times for the same delivery.
type Resolution struct {
	Event   dompayment.Event
	Order   *domorder.Order
	Outcome Outcome
	Reason  string
}

type ReconcileResult struct {
	Outcome      Outcome
	Reason       string
	EventID      string
	EventType    dompayment.EventType
	OrderID      string
	OrderNumber  string
	Transitioned bool
}

var _ application.UseCase[ProviderEventInput, *ReconcileResult] = (*ReconcileUseCase)(nil)

// ReconcileUseCase applies payment provider events to orders exactly once.
type ReconcileUseCase struct {
	verifier  dompayment.EventVerifier
	ledger    dompayment.EventLedger
	orders    OrderStore
	inventory InventoryAdjuster
	mailer    ConfirmationSender
	publisher domoutbox.Publisher
	inst      application.Instrument
	events    observability.Counter
	now       func() time.Time
}

func NewReconcileUseCase(
	verifier dompayment.EventVerifier,
	ledger dompayment.EventLedger,
	orders OrderStore,
	inventory InventoryAdjuster,
	mailer ConfirmationSender,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *ReconcileUseCase {
	inst := application.NewInstrument(webhookService, useCaseReconcile, tel)
	return &ReconcileUseCase{
		verifier:  verifier,
		ledger:    ledger,
		orders:    orders,
		inventory: inventory,
		mailer:    mailer,
		publisher: publisher,
		inst:      inst,
		events:    inst.Metrics().Counter(observability.MWebhookEvents),
		now:       time.Now,
	}
}

// Execute verifies, correlates and applies one webhook delivery.
//
// Errors wrapping apperr.ErrAuthentication or apperr.ErrInvalidInput are terminal
// for the delivery. Any other error is transient and must be answered so that the
// provider redelivers.
func (uc *ReconcileUseCase) Execute(ctx context.Context, cmd ProviderEventInput) (_ *ReconcileResult, err error) {
	ctx, run := uc.inst.Start(ctx, "ReconcilePaymentEvent")
	eventType := "unknown"
	var outcome Outcome
	defer func() {
		label := string(outcome)
		if err != nil {
			label = application.OutcomeError
		}
		uc.events.Add(1, observability.L("type", eventType), observability.L("outcome", label))
		run.End(err)
	}()

	res, err := uc.Resolve(ctx, cmd)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrAuthentication):
			run.Fail("SIGNATURE_REJECTED")
			// Possible forgery; kept at warn so alerting can pick it up.
			run.Logger().Warn("webhook_signature_rejected", observability.F("error", err.Error()))
		case errors.Is(err, apperr.ErrInvalidInput):
			run.Fail("PAYLOAD_MALFORMED")
		case errors.Is(err, ErrOrderNotVisible):
			run.Fail("ORDER_NOT_VISIBLE")
		default:
			run.Fail("RESOLVE_FAILED")
		}
		return nil, err
	}

	eventType = string(res.Event.Type)
	run.Span().SetAttributes(
		attribute.String("webhook.event_id", res.Event.ID),
		attribute.String("webhook.event_type", eventType),
	)
	run.Note(
		observability.F("event_id", res.Event.ID),
		observability.F("event_type", eventType),
	)

	result, err := uc.Apply(ctx, res)
	if err != nil {
		run.Fail("APPLY_FAILED")
		return nil, err
	}
	outcome = result.Outcome
	run.Outcome(string(outcome))
	if result.Reason != "" {
		run.Status(result.Reason)
	}
	if result.OrderID != "" {
		run.Note(
			observability.F("order_id", result.OrderID),
			observability.F("order_number", result.OrderNumber),
		)
	}
	return result, nil
}

// Resolve is phase one: authenticate the delivery and locate its order.
func (uc *ReconcileUseCase) Resolve(ctx context.Context, cmd ProviderEventInput) (Resolution, error) {
	ev, err := uc.verifier.Verify(cmd.Payload, cmd.Signature)
	if err != nil {
		if errors.Is(err, dompayment.ErrSignatureMismatch) {
			return Resolution{}, apperr.Wrap(apperr.ErrAuthentication, err)
		}
		return Resolution{}, apperr.Wrap(apperr.ErrInvalidInput, err)
	}

	res := Resolution{Event: ev}
	if !ev.SignalsPayment() {
		res.Outcome, res.Reason = OutcomeIgnored, "UNHANDLED_EVENT_TYPE"
		return res, nil
	}

	if uc.ledger != nil && ev.ID != "" {
		seen, err := uc.ledger.Seen(ctx, ev.ID)
		if err != nil {
			// Ledger is an optimisation; the guarded transition still holds.
			uc.logger(ctx).Warn("event_ledger_unavailable", observability.F("error", err.Error()))
		} else if seen {
			res.Outcome, res.Reason = OutcomeReplay, "EVENT_ALREADY_PROCESSED"
			return res, nil
		}
	}

	o, reason, err := uc.correlate(ctx, ev.Correlation)
	if err != nil {
		return Resolution{}, err
	}
	if o == nil {
		res.Outcome, res.Reason = OutcomeDropped, reason
		return res, nil
	}
	res.Order = o
	return res, nil
}

func (uc *ReconcileUseCase) correlate(ctx context.Context, c dompayment.Correlation) (*domorder.Order, string, error) {
	switch {
	case c.OrderID != "":
		o, err := uc.orders.Get(ctx, c.OrderID)
		if err != nil {
			return nil, "", lookupError(err)
		}
		if c.OrderNumber != "" && c.OrderNumber != o.Number {
			return nil, "CORRELATION_MISMATCH", nil
		}
		return o, "", nil
	case c.HasFallback():
		o, err := uc.orders.GetByNumber(ctx, c.OrderNumber)
		if err != nil {
			return nil, "", lookupError(err)
		}
		for _, li := range o.LineItems {
			if li.ProductID == c.ProductID && li.ProductSlug == c.ProductSlug {
				return o, "", nil
			}
		}
		return nil, "CORRELATION_MISMATCH", nil
	default:
		return nil, "CORRELATION_MISSING", nil
	}
}

func lookupError(err error) error {
	if errors.Is(err, domorder.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrOrderNotVisible, err)
	}
	return fmt.Errorf("webhook: order lookup: %w", err)
}

// Apply is phase two: the guarded unpaid -> paid write, then any downstream
// effect the order has not recorded yet. Effects are derived from the stored
// markers rather than from whether this call made the transition, so a delivery
// that failed half way completes on redelivery.
func (uc *ReconcileUseCase) Apply(ctx context.Context, res Resolution) (*ReconcileResult, error) {
	out := &ReconcileResult{
		Outcome:   res.Outcome,
		Reason:    res.Reason,
		EventID:   res.Event.ID,
		EventType: res.Event.Type,
	}
	if res.Order == nil {
		if out.Outcome == "" {
			out.Outcome = OutcomeDropped
		}
		return out, nil
	}
	o := res.Order
	out.OrderID, out.OrderNumber = o.ID, o.Number
	logger := uc.logger(ctx).With(
		observability.F("order_id", o.ID),
		observability.F("order_number", o.Number),
	)

	if res.Event.Amount > 0 {
		if want := dompayment.MinorUnits(o.Total); want != res.Event.Amount {
			logger.Warn("payment_amount_mismatch",
				observability.F("expected_minor", want),
				observability.F("received_minor", res.Event.Amount),
			)
		}
	}

	transitioned, err := uc.orders.MarkPaid(ctx, o.ID, uc.now())
	if err != nil {
		if errors.Is(err, domorder.ErrInvalidStateTransition) {
			logger.Warn("payment_for_closed_order", observability.F("status", string(o.Status)))
			out.Outcome, out.Reason = OutcomeDropped, "ORDER_NOT_PAYABLE"
			return out, nil
		}
		if errors.Is(err, domorder.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrOrderNotVisible, err)
		}
		return nil, fmt.Errorf("webhook: mark paid: %w", err)
	}
	out.Transitioned = transitioned
	if transitioned {
		out.Outcome = OutcomeApplied
	} else {
		out.Outcome, out.Reason = OutcomeReplay, "ALREADY_PAID"
	}

	if err := uc.applyInventory(ctx, o, logger); err != nil {
		return nil, err
	}
	uc.applyConfirmation(ctx, o, logger)

	if transitioned {
		o.PaymentStatus = domorder.PaymentPaid
		uc.publish(ctx, domorder.NewOrderPaidEvent(o, res.Event.ID), logger)
	}

	if uc.ledger != nil && res.Event.ID != "" {
		if err := uc.ledger.Remember(ctx, res.Event.ID); err != nil {
			logger.Warn("event_ledger_remember_failed", observability.F("error", err.Error()))
		}
	}
	return out, nil
}

func (uc *ReconcileUseCase) logger(ctx context.Context) observability.Logger {
	return logctx.FromOr(ctx, uc.inst.Logger())
}

// applyInventory relies on the store recording each line's decrement together
// with the stock change, so a failed or cancelled call leaves nothing to undo
// and the next delivery retries it.
func (uc *ReconcileUseCase) applyInventory(ctx context.Context, o *domorder.Order, logger observability.Logger) error {
	if uc.inventory == nil {
		return nil
	}
	for _, li := range o.LineItems {
		_, err := uc.inventory.Execute(ctx, appinventory.DecrementInput{
			OrderID:   o.ID,
			ProductID: li.ProductID,
			Quantity:  li.Quantity,
		})
		if err == nil {
			continue
		}
		if errors.Is(err, dominventory.ErrNotFound) {
			// The product is gone; there is no stock left to adjust.
			logger.Warn("inventory_product_missing", observability.F("product_id", li.ProductID))
			continue
		}
		return fmt.Errorf("webhook: decrement inventory: %w", err)
	}
	return nil
}

// applyConfirmation claims the marker before sending. A crash between claim and
// send loses the email, which the best effort contract accepts; a reported
// failure releases the claim so a later delivery can try again.
func (uc *ReconcileUseCase) applyConfirmation(ctx context.Context, o *domorder.Order, logger observability.Logger) {
	if uc.mailer == nil {
		return
	}
	claimed, err := uc.orders.ClaimEffect(ctx, o.ID, domorder.EffectConfirmation, uc.now())
	if err != nil {
		logger.Warn("confirmation_claim_failed", observability.F("error", err.Error()))
		return
	}
	if !claimed {
		return
	}
	res, err := uc.mailer.Execute(ctx, o)
	if err == nil && res != nil && res.Sent {
		return
	}
	var fields []observability.Field
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	logger.Warn("confirmation_not_sent", fields...)

	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if relErr := uc.orders.ReleaseEffect(relCtx, o.ID, domorder.EffectConfirmation); relErr != nil {
		logger.Warn("confirmation_release_failed", observability.F("error", relErr.Error()))
	}
}

func (uc *ReconcileUseCase) publish(ctx context.Context, e domoutbox.Event, logger observability.Logger) {
	if uc.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := application.External(uc.inst.Metrics(), publishPeer, e.EventName(), func() error {
		return uc.publisher.Publish(pubCtx, e)
	}); err != nil {
		logger.Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}
