package httppresentation

import (
	"errors"
	"io"
	"net/http"

	appwebhook "github.com/Zhima-Mochi/marketplace-checkout/internal/application/webhook"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/domain/apperr"
)

// HeaderPaymentSignature carries "t=<unix>,v1=<hex>" for webhook deliveries.
const HeaderPaymentSignature = "Payment-Signature"

type webhookResponse struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome"`
}

// handlePaymentWebhook reads the raw body untouched since the signature covers
// its exact bytes. Terminal rejections answer 400; anything transient answers
// 500 so the provider redelivers.
func (h *Handler) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.deps.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeAppError(w, r, apperr.Invalid("payload too large"))
			return
		}
		h.writeAppError(w, r, err)
		return
	}

	res, err := h.deps.Webhooks.Execute(r.Context(), appwebhook.ProviderEventInput{
		Payload:   payload,
		Signature: r.Header.Get(HeaderPaymentSignature),
	})
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{Received: true, Outcome: string(res.Outcome)})
}
