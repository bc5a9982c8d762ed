package payment

import "context"

// SessionRecorder stores the provider session id on the order it pays for.
type SessionRecorder interface {
	AttachPaymentSession(ctx context.Context, orderID, sessionID string) error
}
