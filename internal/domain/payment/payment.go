package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrProviderUnavailable = errors.New("payment: provider unavailable")
	ErrProviderRejected    = errors.New("payment: provider rejected the request")
	ErrInvalidAmount       = errors.New("payment: charge amount must be positive")
	ErrSignatureMismatch   = errors.New("payment: webhook signature mismatch")
	ErrMalformedEvent      = errors.New("payment: malformed webhook event")
)

// Mode selects how the buyer completes payment.
type Mode string

const (
	// ModeHosted redirects the buyer to a provider hosted page.
	ModeHosted Mode = "hosted"
	// ModeIntent returns a client secret for in-page confirmation.
	ModeIntent Mode = "intent"
)

func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case "", ModeHosted:
		return ModeHosted, true
	case ModeIntent:
		return ModeIntent, true
	}
	return "", false
}

// MinorUnits converts a major-unit price to the provider's integer amount.
// Rounds half away from zero so sub-cent prices are never truncated down.
func MinorUnits(price decimal.Decimal) int64 {
	return price.Shift(2).Round(0).IntPart()
}

type SessionRequest struct {
	Mode        Mode
	Correlation Correlation
	ProductName string
	Description string
	Currency    string
	UnitAmount  int64
	Quantity    int
	// TotalAmount is round(unit price * quantity * 100), charged by intents.
	TotalAmount   int64
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// Session is the provider handle returned to the buyer.
type Session struct {
	ID           string
	Mode         Mode
	URL          string
	ClientSecret string
}

type Provider interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error)
	CreatePaymentIntent(ctx context.Context, req SessionRequest) (*Session, error)
}
