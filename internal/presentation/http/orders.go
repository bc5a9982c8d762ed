package httppresentation

import (
	"net/http"
	"time"

	"github.com/Zhima-Mochi/marketplace-checkout/internal/domain/apperr"
	domorder "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/order"
)

type orderItemView struct {
	ProductSlug string `json:"productSlug"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	Subtotal    string `json:"subtotal"`
}

type orderView struct {
	OrderNumber   string          `json:"orderNumber"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"paymentStatus"`
	Items         []orderItemView `json:"items"`
	Subtotal      string          `json:"subtotal"`
	Total         string          `json:"total"`
	Currency      string          `json:"currency"`
	InvoiceID     string          `json:"invoiceId,omitempty"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func newOrderView(o *domorder.Order) orderView {
	v := orderView{
		OrderNumber:   o.Number,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Subtotal:      o.Subtotal.StringFixed(2),
		Total:         o.Total.StringFixed(2),
		Currency:      o.Currency(),
		InvoiceID:     o.InvoiceID,
		PaidAt:        o.PaidAt,
		CreatedAt:     o.CreatedAt,
	}
	for _, li := range o.LineItems {
		v.Items = append(v.Items, orderItemView{
			ProductSlug: li.ProductSlug,
			Name:        li.Snapshot.Name,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice.StringFixed(2),
			Subtotal:    li.Subtotal.StringFixed(2),
		})
	}
	return v
}

// handleGetOrder serves the thank-you page summary. A bad token answers like
// an unknown order so numbers cannot be probed.
func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")
	if h.deps.Tokens == nil || h.deps.Tokens.Verify(r.URL.Query().Get("token"), number) != nil {
		h.writeAppError(w, r, apperr.Wrap(apperr.ErrNotFound, domorder.ErrNotFound))
		return
	}

	o, err := h.deps.OrderView.Execute(r.Context(), number)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderView(o))
}
