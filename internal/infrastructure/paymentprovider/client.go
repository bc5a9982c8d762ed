// Package paymentprovider talks to a Stripe compatible payment API: it creates
// hosted checkout sessions and payment intents, and verifies signed webhooks.
package paymentprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	domain "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/payment"
)

var _ domain.Provider = (*Client)(nil)

const (
	DefaultAPIBase = "https://api.stripe.com"
	defaultTimeout = 15 * time.Second
	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

type Config struct {
	APIBase   string
	SecretKey string
	Timeout   time.Duration
}

// Client creates payment sessions over the provider's form encoded REST API.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.APIBase, "/"),
		secretKey:  cfg.SecretKey,
		httpClient: httpClient,
	}
}

type sessionResponse struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	ClientSecret string `json:"client_secret"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateCheckoutSession creates a hosted payment page for one line item.
func (c *Client) CreateCheckoutSession(ctx context.Context, req domain.SessionRequest) (*domain.Session, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("line_items[0][quantity]", strconv.Itoa(req.Quantity))
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.UnitAmount, 10))
	form.Set("line_items[0][price_data][product_data][name]", req.ProductName)
	if req.Description != "" {
		form.Set("line_items[0][price_data][product_data][description]", req.Description)
	}
	if req.CustomerEmail != "" {
		form.Set("customer_email", req.CustomerEmail)
	}
	for k, v := range req.Correlation.Metadata() {
		form.Set("metadata["+k+"]", v)
		// Copied onto the intent so payment_intent events correlate too.
		form.Set("payment_intent_data[metadata]["+k+"]", v)
	}

	var out sessionResponse
	if err := c.post(ctx, "/v1/checkout/sessions", idempotencyKey(req), form, &out); err != nil {
		return nil, err
	}
	if out.ID == "" || out.URL == "" {
		return nil, fmt.Errorf("%w: checkout session without id or url", domain.ErrProviderUnavailable)
	}
	return &domain.Session{ID: out.ID, Mode: domain.ModeHosted, URL: out.URL}, nil
}

// CreatePaymentIntent creates an intent confirmed client side with the returned secret.
func (c *Client) CreatePaymentIntent(ctx context.Context, req domain.SessionRequest) (*domain.Session, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.TotalAmount, 10))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("automatic_payment_methods[enabled]", "true")
	if req.CustomerEmail != "" {
		form.Set("receipt_email", req.CustomerEmail)
	}
	if req.ProductName != "" {
		form.Set("description", fmt.Sprintf("%s x%d", req.ProductName, req.Quantity))
	}
	for k, v := range req.Correlation.Metadata() {
		form.Set("metadata["+k+"]", v)
	}

	var out sessionResponse
	if err := c.post(ctx, "/v1/payment_intents", idempotencyKey(req), form, &out); err != nil {
		return nil, err
	}
	if out.ID == "" || out.ClientSecret == "" {
		return nil, fmt.Errorf("%w: payment intent without id or client secret", domain.ErrProviderUnavailable)
	}
	return &domain.Session{ID: out.ID, Mode: domain.ModeIntent, ClientSecret: out.ClientSecret}, nil
}

// idempotencyKey lets a retried request for the same order reuse the first session.
func idempotencyKey(req domain.SessionRequest) string {
	if req.Correlation.OrderID == "" {
		return ""
	}
	return req.Correlation.OrderID + ":" + string(req.Mode)
}

func (c *Client) post(ctx context.Context, path, idemKey string, form url.Values, out any) error {
	if c.secretKey == "" {
		return fmt.Errorf("%w: secret key not configured", domain.ErrProviderUnavailable)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if idemKey != "" {
		httpReq.Header.Set("Idempotency-Key", idemKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, ctxErr)
		}
		return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %w", domain.ErrProviderUnavailable, err)
		}
		return nil
	}
	return statusError(resp)
}

// statusError maps throttling and server failures to ErrProviderUnavailable
// and any other refusal to ErrProviderRejected.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var er errorResponse
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &er) == nil && er.Error.Message != "" {
		msg = er.Error.Message
	}
	kind := domain.ErrProviderRejected
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		kind = domain.ErrProviderUnavailable
	}
	return &StatusError{Kind: kind, StatusCode: resp.StatusCode, Code: er.Error.Code, Message: msg}
}

// StatusError is a non-2xx provider answer.
type StatusError struct {
	Kind       error
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment provider status %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("payment provider status %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error { return e.Kind }
