package httppresentation

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	appcheckout "github.com/Zhima-Mochi/marketplace-checkout/internal/application/checkout"
	apporder "github.com/Zhima-Mochi/marketplace-checkout/internal/application/order"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/domain/apperr"
	domorder "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability/logctx"
)

type checkoutRequest struct {
	ProductSlug     string            `json:"productSlug"`
	Quantity        int               `json:"quantity"`
	Mode            string            `json:"mode,omitempty"`
	Customer        domorder.Customer `json:"customer"`
	ShippingAddress domorder.Address  `json:"shippingAddress"`
}

type hostedSessionResponse struct {
	URL         string `json:"url"`
	OrderNumber string `json:"orderNumber"`
}

type intentSessionResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
	OrderNumber     string `json:"orderNumber"`
}

func (h *Handler) handleCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	mode, ok := dompayment.ParseMode(req.Mode)
	if !ok {
		h.writeAppError(w, r, apperr.Invalid("mode must be hosted or intent"))
		return
	}

	res, err := h.deps.Checkout.Execute(r.Context(), appcheckout.StartCheckoutInput{
		ProductSlug:     strings.TrimSpace(req.ProductSlug),
		Quantity:        req.Quantity,
		Mode:            mode,
		Customer:        req.Customer,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	if res.Session.Mode == dompayment.ModeIntent {
		writeJSON(w, http.StatusOK, intentSessionResponse{
			ClientSecret:    res.Session.ClientSecret,
			PaymentIntentID: res.Session.SessionID,
			OrderNumber:     res.Order.Number,
		})
		return
	}
	writeJSON(w, http.StatusOK, hostedSessionResponse{
		URL:         res.Session.URL,
		OrderNumber: res.Order.Number,
	})
}

type orderForm struct {
	ProductSlug     string            `json:"productSlug"`
	Quantity        int               `json:"quantity"`
	Customer        domorder.Customer `json:"customer"`
	ShippingAddress domorder.Address  `json:"shippingAddress"`
}

// handleSubmitOrder backs the plain checkout form. It only records the order
// and always answers with a redirect, to the thank-you page on success or back
// to the form with an error code.
func (h *Handler) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	form, err := h.parseOrderForm(w, r)
	if err != nil {
		h.redirectWithError(w, r, form.ProductSlug, err)
		return
	}

	res, err := h.deps.Orders.Execute(r.Context(), apporder.CreateOrderInput{
		ProductSlug:     form.ProductSlug,
		Quantity:        form.Quantity,
		Customer:        form.Customer,
		ShippingAddress: form.ShippingAddress,
	})
	if err != nil {
		h.redirectWithError(w, r, form.ProductSlug, err)
		return
	}

	token := ""
	if h.deps.Tokens != nil {
		if token, err = h.deps.Tokens.Issue(res.Order.Number); err != nil {
			logctx.FromOr(r.Context(), h.log).Warn("thank_you_token_failed",
				observability.F("order_number", res.Order.Number),
				observability.F("error", err.Error()),
			)
			token = ""
		}
	}
	http.Redirect(w, r, h.deps.Links.ThankYou(res.Order.Number, token), http.StatusSeeOther)
}

func (h *Handler) redirectWithError(w http.ResponseWriter, r *http.Request, slug string, err error) {
	_, code := statusFor(err)
	switch code {
	case "not_found", "invalid_input", "unavailable":
	case "provider_rejected":
		code = "unavailable"
	default:
		code = "internal"
		logctx.FromOr(r.Context(), h.log).Error("order_form_failed", observability.F("error", err.Error()))
	}
	http.Redirect(w, r, h.deps.Links.CheckoutPage(slug, code), http.StatusSeeOther)
}

// parseOrderForm accepts JSON or a url encoded form. The returned form keeps
// the slug even on error so the redirect can point back at the product.
func (h *Handler) parseOrderForm(w http.ResponseWriter, r *http.Request) (orderForm, error) {
	var f orderForm
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		body := http.MaxBytesReader(w, r.Body, h.deps.MaxBodyBytes)
		if err := json.NewDecoder(body).Decode(&f); err != nil {
			return f, apperr.Invalid("malformed request body")
		}
		f.ProductSlug = strings.TrimSpace(f.ProductSlug)
		return f, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.deps.MaxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return f, apperr.Invalid("malformed form")
	}
	get := func(k string) string { return strings.TrimSpace(r.PostForm.Get(k)) }
	f.ProductSlug = get("productSlug")
	f.Customer = domorder.Customer{Name: get("name"), Email: get("email"), Phone: get("phone")}
	f.ShippingAddress = domorder.Address{
		Line1:      get("line1"),
		Line2:      get("line2"),
		City:       get("city"),
		Region:     get("region"),
		PostalCode: get("postalCode"),
		Country:    get("country"),
	}
	q, err := strconv.Atoi(get("quantity"))
	if err != nil {
		return f, errors.Join(apperr.Invalid("quantity must be a number"), err)
	}
	f.Quantity = q
	return f, nil
}
