package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	appcatalog "github.com/Zhima-Mochi/marketplace-checkout/internal/application/catalog"
	appcheckout "github.com/Zhima-Mochi/marketplace-checkout/internal/application/checkout"
	apporder "github.com/Zhima-Mochi/marketplace-checkout/internal/application/order"
	appwebhook "github.com/Zhima-Mochi/marketplace-checkout/internal/application/webhook"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/domain/apperr"
	domcatalog "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/catalog"
	domorder "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability/logctx"
)

const (
	componentHTTPHandler = "http_server"
	defaultMaxBodyBytes  = 1 << 20
)

type CheckoutStarter interface {
	Execute(ctx context.Context, cmd appcheckout.StartCheckoutInput) (*appcheckout.StartCheckoutResult, error)
}

type OrderCreator interface {
	Execute(ctx context.Context, cmd apporder.CreateOrderInput) (*apporder.CreateOrderResult, error)
}

type OrderReader interface {
	Execute(ctx context.Context, number string) (*domorder.Order, error)
}

type WebhookReconciler interface {
	Execute(ctx context.Context, cmd appwebhook.ProviderEventInput) (*appwebhook.ReconcileResult, error)
}

type ProductReviewer interface {
	Execute(ctx context.Context, in appcatalog.ReviewProductInput) (*domcatalog.Product, error)
}

// OrderTokens issues and checks the token on thank-you links.
type OrderTokens interface {
	Issue(orderNumber string) (string, error)
	Verify(token, orderNumber string) error
}

// Deps are the use cases and helpers the routes call.
type Deps struct {
	Checkout   CheckoutStarter
	Orders     OrderCreator
	OrderView  OrderReader
	Webhooks   WebhookReconciler
	Products   ProductReviewer
	Tokens     OrderTokens
	Links      appcheckout.Links
	AdminToken string
	// MaxBodyBytes caps request bodies, webhook payloads included.
	MaxBodyBytes int64
	// Metrics is served at GET /metrics when set.
	Metrics http.Handler
}

type Handler struct {
	deps Deps
	log  observability.Logger
	tel  observability.Observability
}

func NewHandler(deps Deps, tel observability.Observability) *Handler {
	tel = observability.Or(tel)
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{
		deps: deps,
		log:  tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:  tel,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	h.handle(mux, "POST /checkout/session", h.handleCheckoutSession)
	h.handle(mux, "POST /orders", h.handleSubmitOrder)
	h.handle(mux, "GET /orders/{number}", h.handleGetOrder)
	h.handle(mux, "POST /webhooks/payment", h.handlePaymentWebhook)
	h.handle(mux, "PUT /admin/products/{slug}", h.handleUpsertProduct)
	h.handle(mux, "GET /health", h.handleHealth)
	if h.deps.Metrics != nil {
		mux.Handle("GET /metrics", h.deps.Metrics)
	}
	return mux
}

func (h *Handler) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	mux.Handle(pattern, h.observe(pattern, fn))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.deps.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Invalid("malformed request body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps the error taxonomy to an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, dompayment.ErrProviderRejected):
		return http.StatusBadGateway, "provider_rejected"
	}
	switch apperr.Kind(err) {
	case apperr.ErrNotFound:
		return http.StatusNotFound, "not_found"
	case apperr.ErrInvalidInput:
		return http.StatusBadRequest, "invalid_input"
	case apperr.ErrAuthentication:
		return http.StatusBadRequest, "authentication_failed"
	case apperr.ErrProviderUnavailable:
		return http.StatusServiceUnavailable, "unavailable"
	case apperr.ErrConflict:
		return http.StatusOK, "conflict"
	}
	return http.StatusInternalServerError, "internal"
}

// writeAppError answers with the mapped status. Internal details stay in the
// log; 5xx bodies carry only the code.
func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	logger := logctx.FromOr(r.Context(), h.log)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("http_request_failed",
			observability.F("route", routeFromContext(r.Context())),
			observability.F("code", code),
			observability.F("error", msg),
		)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}
