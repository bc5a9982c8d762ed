package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	appcatalog "github.com/Zhima-Mochi/marketplace-checkout/internal/application/catalog"
	appcheckout "github.com/Zhima-Mochi/marketplace-checkout/internal/application/checkout"
	apporder "github.com/Zhima-Mochi/marketplace-checkout/internal/application/order"
	apppayment "github.com/Zhima-Mochi/marketplace-checkout/internal/application/payment"
	appwebhook "github.com/Zhima-Mochi/marketplace-checkout/internal/application/webhook"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/domain/apperr"
	domcatalog "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/catalog"
	domorder "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCheckout struct {
	got appcheckout.StartCheckoutInput
	res *appcheckout.StartCheckoutResult
	err error
}

func (s *stubCheckout) Execute(_ context.Context, cmd appcheckout.StartCheckoutInput) (*appcheckout.StartCheckoutResult, error) {
	s.got = cmd
	return s.res, s.err
}

type stubOrders struct {
	got apporder.CreateOrderInput
	err error
}

func (s *stubOrders) Execute(_ context.Context, cmd apporder.CreateOrderInput) (*apporder.CreateOrderResult, error) {
	s.got = cmd
	if s.err != nil {
		return nil, s.err
	}
	return &apporder.CreateOrderResult{Order: sampleOrder(t0Number)}, nil
}

type stubOrderView struct{ err error }

func (s stubOrderView) Execute(_ context.Context, number string) (*domorder.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return sampleOrder(number), nil
}

type stubWebhooks struct {
	got appwebhook.ProviderEventInput
	res *appwebhook.ReconcileResult
	err error
}

func (s *stubWebhooks) Execute(_ context.Context, cmd appwebhook.ProviderEventInput) (*appwebhook.ReconcileResult, error) {
	s.got = cmd
	return s.res, s.err
}

type stubProducts struct {
	got appcatalog.ReviewProductInput
}

func (s *stubProducts) Execute(_ context.Context, in appcatalog.ReviewProductInput) (*domcatalog.Product, error) {
	s.got = in
	return &domcatalog.Product{
		ID:         "p-1",
		Slug:       in.Slug,
		Name:       in.Name,
		Price:      in.Price,
		Status:     domcatalog.StatusActive,
		Validation: domcatalog.Auto(domcatalog.ValidationChecked),
	}, nil
}

type stubTokens struct{}

func (stubTokens) Issue(orderNumber string) (string, error) { return "tok-" + orderNumber, nil }
func (stubTokens) Verify(token, orderNumber string) error {
	if token != "tok-"+orderNumber {
		return errors.New("bad token")
	}
	return nil
}

const t0Number = "ORD-20260101-0001"

func sampleOrder(number string) *domorder.Order {
	li, _ := domorder.NewLineItem("p-1", "lamp", "Lamp", decimal.RequireFromString("129.00"), "USD", 2)
	o, _ := domorder.New("o-1", number,
		domorder.Customer{Name: "Ada", Email: "ada@example.com"},
		domorder.Address{Line1: "1 Main St", City: "Springfield", Country: "US"},
		[]domorder.LineItem{li},
	)
	return o
}

type fixture struct {
	checkout *stubCheckout
	orders   *stubOrders
	webhooks *stubWebhooks
	products *stubProducts
	deps     Deps
}

func newFixture() *fixture {
	f := &fixture{
		checkout: &stubCheckout{},
		orders:   &stubOrders{},
		webhooks: &stubWebhooks{},
		products: &stubProducts{},
	}
	f.deps = Deps{
		Checkout:  f.checkout,
		Orders:    f.orders,
		OrderView: stubOrderView{},
		Webhooks:  f.webhooks,
		Products:  f.products,
		Tokens:    stubTokens{},
		Links:     appcheckout.Links{PublicURL: "https://shop.test", ThankYouPath: "/thank-you"},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	}
	return f
}

func (f *fixture) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	NewHandler(f.deps, nil).Router().ServeHTTP(rec, req)
	return rec
}

const checkoutBody = `{"productSlug":" lamp ","quantity":2,"mode":"%s",
"customer":{"name":"Ada","email":"ada@example.com"},
"shippingAddress":{"line1":"1 Main St","city":"Springfield","country":"US"}}`

func newCheckoutRequest(mode string) *http.Request {
	body := strings.Replace(checkoutBody, "%s", mode, 1)
	return httptest.NewRequest(http.MethodPost, "/checkout/session", strings.NewReader(body))
}

func TestCheckoutSessionHosted(t *testing.T) {
	f := newFixture()
	f.checkout.res = &appcheckout.StartCheckoutResult{
		Order:   sampleOrder(t0Number),
		Session: &apppayment.SessionHandle{Mode: dompayment.ModeHosted, SessionID: "cs_1", URL: "https://pay.test/cs_1"},
	}

	rec := f.serve(newCheckoutRequest(""))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "https://pay.test/cs_1", body["url"])
	assert.Equal(t, t0Number, body["orderNumber"])
	assert.Equal(t, "lamp", f.checkout.got.ProductSlug)
	assert.Equal(t, dompayment.ModeHosted, f.checkout.got.Mode)
	assert.Equal(t, 2, f.checkout.got.Quantity)
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
}

func TestCheckoutSessionIntent(t *testing.T) {
	f := newFixture()
	f.checkout.res = &appcheckout.StartCheckoutResult{
		Order:   sampleOrder(t0Number),
		Session: &apppayment.SessionHandle{Mode: dompayment.ModeIntent, SessionID: "pi_1", ClientSecret: "pi_1_secret"},
	}

	rec := f.serve(newCheckoutRequest("intent"))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "pi_1_secret", body["clientSecret"])
	assert.Equal(t, "pi_1", body["paymentIntentId"])
	assert.Equal(t, t0Number, body["orderNumber"])
	assert.NotContains(t, body, "url")
}

func TestCheckoutSessionErrors(t *testing.T) {
	cases := []struct {
		name   string
		req    *http.Request
		err    error
		status int
		code   string
	}{
		{"bad mode", newCheckoutRequest("wire"), nil, http.StatusBadRequest, "invalid_input"},
		{"malformed", httptest.NewRequest(http.MethodPost, "/checkout/session", strings.NewReader("{")), nil, http.StatusBadRequest, "invalid_input"},
		{"unknown field", httptest.NewRequest(http.MethodPost, "/checkout/session", strings.NewReader(`{"slug":"lamp"}`)), nil, http.StatusBadRequest, "invalid_input"},
		{"not found", newCheckoutRequest(""), apperr.Wrap(apperr.ErrNotFound, domcatalog.ErrNotFound), http.StatusNotFound, "not_found"},
		{"provider down", newCheckoutRequest(""), apperr.Wrap(apperr.ErrProviderUnavailable, dompayment.ErrProviderUnavailable), http.StatusServiceUnavailable, "unavailable"},
		{"provider rejected", newCheckoutRequest(""), dompayment.ErrProviderRejected, http.StatusBadGateway, "provider_rejected"},
		{"internal", newCheckoutRequest(""), errors.New("db exploded"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.checkout.err = tc.err

			rec := f.serve(tc.req)

			assert.Equal(t, tc.status, rec.Code)
			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body.Code)
			assert.NotContains(t, body.Error, "db exploded")
		})
	}
}

func orderFormRequest(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func validForm() url.Values {
	return url.Values{
		"productSlug": {"lamp"},
		"quantity":    {"2"},
		"name":        {"Ada"},
		"email":       {"ada@example.com"},
		"line1":       {"1 Main St"},
		"city":        {"Springfield"},
		"country":     {"US"},
	}
}

func TestSubmitOrderRedirectsToThankYou(t *testing.T) {
	f := newFixture()

	rec := f.serve(orderFormRequest(validForm()))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/thank-you", loc.Path)
	assert.Equal(t, t0Number, loc.Query().Get("orderNumber"))
	assert.Equal(t, "tok-"+t0Number, loc.Query().Get("token"))
	assert.Equal(t, 2, f.orders.got.Quantity)
	assert.Equal(t, "ada@example.com", f.orders.got.Customer.Email)
	assert.Equal(t, "US", f.orders.got.ShippingAddress.Country)
}

func TestSubmitOrderAcceptsJSON(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(strings.Replace(checkoutBody, `,"mode":"%s"`, "", 1)))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	rec := f.serve(req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "lamp", f.orders.got.ProductSlug)
}

func TestSubmitOrderRedirectsBackWithErrorCode(t *testing.T) {
	badQty := validForm()
	badQty.Set("quantity", "two")

	cases := []struct {
		name string
		form url.Values
		err  error
		code string
	}{
		{"quantity not a number", badQty, nil, "invalid_input"},
		{"not found", validForm(), apperr.Wrap(apperr.ErrNotFound, domcatalog.ErrNotFound), "not_found"},
		{"invalid", validForm(), apperr.Wrap(apperr.ErrInvalidInput, domorder.ErrInvalidCustomer), "invalid_input"},
		{"unavailable", validForm(), apperr.Wrap(apperr.ErrProviderUnavailable, errors.New("down")), "unavailable"},
		{"internal", validForm(), errors.New("boom"), "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.orders.err = tc.err

			rec := f.serve(orderFormRequest(tc.form))

			require.Equal(t, http.StatusSeeOther, rec.Code)
			loc, err := url.Parse(rec.Header().Get("Location"))
			require.NoError(t, err)
			assert.Equal(t, "/marketplace/lamp/checkout", loc.Path)
			assert.Equal(t, tc.code, loc.Query().Get("error"))
		})
	}
}

func TestGetOrderRequiresValidToken(t *testing.T) {
	f := newFixture()

	ok := f.serve(httptest.NewRequest(http.MethodGet, "/orders/"+t0Number+"?token=tok-"+t0Number, nil))
	require.Equal(t, http.StatusOK, ok.Code)
	var view orderView
	require.NoError(t, json.Unmarshal(ok.Body.Bytes(), &view))
	assert.Equal(t, t0Number, view.OrderNumber)
	assert.Equal(t, "pending", view.Status)
	assert.Equal(t, "unpaid", view.PaymentStatus)
	assert.Equal(t, "258.00", view.Total)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "129.00", view.Items[0].UnitPrice)

	for _, target := range []string{
		"/orders/" + t0Number,
		"/orders/" + t0Number + "?token=tok-ORD-OTHER",
	} {
		rec := f.serve(httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
	}
}

func TestGetOrderUnknownNumber(t *testing.T) {
	f := newFixture()
	f.deps.OrderView = stubOrderView{err: apperr.Wrap(apperr.ErrNotFound, domorder.ErrNotFound)}

	rec := f.serve(httptest.NewRequest(http.MethodGet, "/orders/ORD-X?token=tok-ORD-X", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentWebhook(t *testing.T) {
	cases := []struct {
		name    string
		res     *appwebhook.ReconcileResult
		err     error
		status  int
		outcome string
	}{
		{"applied", &appwebhook.ReconcileResult{Outcome: appwebhook.OutcomeApplied}, nil, http.StatusOK, "applied"},
		{"dropped", &appwebhook.ReconcileResult{Outcome: appwebhook.OutcomeDropped}, nil, http.StatusOK, "dropped"},
		{"bad signature", nil, apperr.Wrap(apperr.ErrAuthentication, dompayment.ErrSignatureMismatch), http.StatusBadRequest, ""},
		{"malformed", nil, apperr.Wrap(apperr.ErrInvalidInput, dompayment.ErrMalformedEvent), http.StatusBadRequest, ""},
		{"order not visible", nil, appwebhook.ErrOrderNotVisible, http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.webhooks.res, f.webhooks.err = tc.res, tc.err
			payload := `{"id":"evt_1","type":"checkout.session.completed"}`
			req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(payload))
			req.Header.Set(HeaderPaymentSignature, "t=1,v1=abc")

			rec := f.serve(req)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, payload, string(f.webhooks.got.Payload))
			assert.Equal(t, "t=1,v1=abc", f.webhooks.got.Signature)
			if tc.outcome != "" {
				var body webhookResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.True(t, body.Received)
				assert.Equal(t, tc.outcome, body.Outcome)
			}
		})
	}
}

func TestPaymentWebhookRejectsOversizedPayload(t *testing.T) {
	f := newFixture()
	f.deps.MaxBodyBytes = 8

	rec := f.serve(httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(`{"id":"evt_1"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpsertProduct(t *testing.T) {
	body := `{"name":"Lamp","description":"Warm light","price":"129.00","inventory":10,"status":"active","manuallyVerified":true,"validationStatus":"checked"}`

	t.Run("open when no admin token", func(t *testing.T) {
		f := newFixture()
		rec := f.serve(httptest.NewRequest(http.MethodPut, "/admin/products/lamp", strings.NewReader(body)))

		require.Equal(t, http.StatusOK, rec.Code)
		var view productView
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
		assert.Equal(t, "lamp", view.Slug)
		assert.Equal(t, "129.00", view.Price)
		assert.Equal(t, "checked", view.Validation.Status)
		assert.True(t, view.Purchasable)

		require.NotNil(t, f.products.got.Inventory)
		assert.Equal(t, 10, *f.products.got.Inventory)
		require.NotNil(t, f.products.got.ManuallyVerified)
		assert.True(t, *f.products.got.ManuallyVerified)
		assert.Equal(t, domcatalog.ValidationChecked, f.products.got.ValidationStatus)
	})

	t.Run("bearer token enforced", func(t *testing.T) {
		f := newFixture()
		f.deps.AdminToken = "s3cret"

		denied := f.serve(httptest.NewRequest(http.MethodPut, "/admin/products/lamp", strings.NewReader(body)))
		assert.Equal(t, http.StatusUnauthorized, denied.Code)

		req := httptest.NewRequest(http.MethodPut, "/admin/products/lamp", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer s3cret")
		assert.Equal(t, http.StatusOK, f.serve(req).Code)
	})
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture()

	health := f.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, health.Code)
	assert.JSONEq(t, `{"status":"ok"}`, health.Body.String())

	metrics := f.serve(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, metrics.Code)
	assert.Equal(t, "# metrics", metrics.Body.String())
}

func TestRequestIDIsEchoed(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(headerRequestID, "req-42")

	rec := f.serve(req)

	assert.Equal(t, "req-42", rec.Header().Get(headerRequestID))
}

func TestUnknownMethodIsRejected(t *testing.T) {
	f := newFixture()

	rec := f.serve(httptest.NewRequest(http.MethodGet, "/checkout/session", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
