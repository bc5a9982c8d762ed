package memory

import (
	"context"
	"sync"

	domnotification "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/notification"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability"
)

// Mailbox is the notification sender used when no mail transport is
// configured. It keeps every message and logs a short line for each.
type Mailbox struct {
	mu   sync.Mutex
	sent []domnotification.Message
	log  observability.Logger
}

func NewMailbox(logger observability.Logger) *Mailbox {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Mailbox{log: logger.With(observability.F("component", "mailbox"))}
}

func (m *Mailbox) Send(ctx context.Context, msg domnotification.Message) error {
	_ = ctx

	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	m.log.Info("mail_captured",
		observability.F("to", msg.To),
		observability.F("subject", msg.Subject),
		observability.F("attachments", len(msg.Attachments)),
	)
	return nil
}

// Sent returns a copy of the captured messages.
func (m *Mailbox) Sent() []domnotification.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domnotification.Message(nil), m.sent...)
}
