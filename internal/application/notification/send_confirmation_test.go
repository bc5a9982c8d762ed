package notification_test

import (
	"context"
	"errors"
	"testing"

	appnotification "github.com/Zhima-Mochi/marketplace-checkout/internal/application/notification"
	domnotification "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/notification"
	domorder "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSender struct{ calls int }

func (f *failingSender) Send(context.Context, domnotification.Message) error {
	f.calls++
	return errors.New("smtp down")
}

func paidOrder(t *testing.T) *domorder.Order {
	t.Helper()
	item, err := domorder.NewLineItem("p-1", "lamp", "Brass Lamp", decimal.RequireFromString("129.00"), "USD", 2)
	require.NoError(t, err)
	o, err := domorder.New("o-1", "ORD-ABC", domorder.Customer{Name: "Ada", Email: "ada@example.com"},
		domorder.Address{Line1: "1 Main St", City: "Lisbon", Country: "PT"}, []domorder.LineItem{item})
	require.NoError(t, err)
	return o
}

func TestSendConfirmationRendersOrder(t *testing.T) {
	box := memory.NewMailbox(nil)
	uc := appnotification.NewSendConfirmationUseCase(box, "", observability.Nop())

	res, err := uc.Execute(context.Background(), paidOrder(t))
	require.NoError(t, err)
	assert.True(t, res.Sent)

	sent := box.Sent()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "Order Confirmation - ORD-ABC", msg.Subject)
	assert.Contains(t, msg.HTML, "Brass Lamp")
	assert.Contains(t, msg.HTML, "$258.00")
	assert.Contains(t, msg.HTML, "Lisbon")
	assert.Empty(t, msg.Attachments)
}

func TestSendConfirmationAttachesInvoice(t *testing.T) {
	box := memory.NewMailbox(nil)
	uc := appnotification.NewSendConfirmationUseCase(box, "https://files.example.com/invoices/", observability.Nop())

	o := paidOrder(t)
	o.InvoiceID = "inv-9"
	_, err := uc.Execute(context.Background(), o)
	require.NoError(t, err)

	msg := box.Sent()[0]
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "invoice-ORD-ABC.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, "https://files.example.com/invoices/inv-9", msg.Attachments[0].URL)
	assert.Contains(t, msg.HTML, "invoice attached")
}

func TestSendConfirmationIsBestEffort(t *testing.T) {
	sender := &failingSender{}
	uc := appnotification.NewSendConfirmationUseCase(sender, "", observability.Nop())

	res, err := uc.Execute(context.Background(), paidOrder(t))
	assert.NoError(t, err)
	assert.False(t, res.Sent)
	assert.Equal(t, 1, sender.calls)

	res, err = appnotification.NewSendConfirmationUseCase(nil, "", observability.Nop()).Execute(context.Background(), paidOrder(t))
	assert.NoError(t, err)
	assert.False(t, res.Sent)
}
