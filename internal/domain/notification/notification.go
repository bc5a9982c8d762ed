package notification

import (
	"context"
	"errors"
)

var ErrSenderUnavailable = errors.New("notification: sender unavailable")

type Attachment struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

type Message struct {
	To          string       `json:"to"`
	Subject     string       `json:"subject"`
	HTML        string       `json:"html"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Sender hands a message to a mail transport. Delivery is the transport's concern.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
