package notification

import (
	"bytes"
	"html/template"
	"strings"

	domorder "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/order"

	"github.com/shopspring/decimal"
)

var confirmationTemplate = template.Must(template.New("confirmation").Funcs(template.FuncMap{
	"money": formatMoney,
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Order Confirmation</title></head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; color: #333;">
  <h1>Order Confirmation</h1>
  <p>Hi {{ if .Order.Customer.Name }}{{ .Order.Customer.Name }}{{ else }}there{{ end }},</p>
  <p>Thank you for your order! We've received your payment and your order is being processed.</p>
  <p><strong>Order Number</strong><br>{{ .Order.Number }}</p>
  <table role="presentation" style="width: 100%; border-collapse: collapse;">
  {{- range .Order.LineItems }}
    <tr>
      <td>{{ .Snapshot.Name }} &times; {{ .Quantity }}<br><small>{{ money .UnitPrice .Snapshot.Currency }} each</small></td>
      <td align="right">{{ money .Subtotal .Snapshot.Currency }}</td>
    </tr>
  {{- end }}
  </table>
  <p align="right"><strong>Total: {{ money .Order.Total .Currency }}</strong></p>
  {{- with .Order.ShippingAddress }}
  <h3>Shipping Address</h3>
  <p>{{ $.Order.Customer.Name }}<br>{{ .Line1 }}<br>{{ if .Line2 }}{{ .Line2 }}<br>{{ end }}{{ .City }}, {{ .Region }} {{ .PostalCode }}<br>{{ .Country }}</p>
  {{- end }}
  <p>We'll send you another email when your order ships.</p>
  {{- if .HasInvoice }}
  <p>Please find the invoice attached to this email.</p>
  {{- end }}
  <p><small>This is an automated email. Please do not reply to this message.</small></p>
</body>
</html>
`))

type confirmationView struct {
	Order      *domorder.Order
	Currency   string
	HasInvoice bool
}

func renderConfirmation(o *domorder.Order, hasInvoice bool) (string, error) {
	var buf bytes.Buffer
	err := confirmationTemplate.Execute(&buf, confirmationView{
		Order:      o,
		Currency:   o.Currency(),
		HasInvoice: hasInvoice,
	})
	return buf.String(), err
}

func formatMoney(d decimal.Decimal, currency string) string {
	amount := d.StringFixed(2)
	switch strings.ToUpper(currency) {
	case "", "USD":
		return "$" + amount
	case "EUR":
		return "€" + amount
	case "GBP":
		return "£" + amount
	default:
		return strings.ToUpper(currency) + " " + amount
	}
}
