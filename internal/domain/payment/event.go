package payment

import (
	"context"
	"time"
)

type EventType string

const (
	EventCheckoutCompleted EventType = "checkout.session.completed"
	EventIntentSucceeded   EventType = "payment_intent.succeeded"
)

// Event is a verified, decoded provider webhook delivery.
type Event struct {
	ID            string
	Type          EventType
	Created       time.Time
	ObjectID      string
	Amount        int64
	Currency      string
	CustomerEmail string
	Correlation   Correlation
}

// SignalsPayment is true for the event types that confirm a successful charge.
func (e Event) SignalsPayment() bool {
	return e.Type == EventCheckoutCompleted || e.Type == EventIntentSucceeded
}

// EventVerifier authenticates a raw delivery and decodes it.
// Failures wrap ErrSignatureMismatch or ErrMalformedEvent.
type EventVerifier interface {
	Verify(payload []byte, signatureHeader string) (Event, error)
}

// EventLedger remembers provider events that were fully applied.
type EventLedger interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Remember(ctx context.Context, eventID string) error
}
