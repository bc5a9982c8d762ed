// Package moderation asks an OpenAI compatible chat completions endpoint to
// review product listings.
package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domcatalog "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/catalog"
)

var _ domcatalog.Classifier = (*Classifier)(nil)

var ErrUnavailable = errors.New("moderation: classifier unavailable")

const (
	DefaultModel = "gpt-4o-mini"
	maxErrorBody = 16 << 10
)

const systemPrompt = `You are a product validation system for an online marketplace. Decide whether a listing should be:
- "blocked": it violates policy (prohibited items, inappropriate content)
- "checked": it is safe and appropriate for sale
- "needs_review": it is unclear and needs a human
Respond with only one of: blocked, checked, needs_review`

type Config struct {
	APIBase string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type Classifier struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

func New(cfg Config, httpClient *http.Client) *Classifier {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Classifier{
		endpoint:   strings.TrimRight(cfg.APIBase, "/") + "/v1/chat/completions",
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: httpClient,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Classify returns the model's verdict. An answer outside the known set maps
// to needs_review; transport failures return ErrUnavailable.
func (c *Classifier) Classify(ctx context.Context, p *domcatalog.Product) (domcatalog.ValidationStatus, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: api key not configured", ErrUnavailable)
	}
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: describe(p)},
		},
		MaxTokens: 10,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode: %w", ErrUnavailable, err)
	}
	if len(out.Choices) == 0 {
		return domcatalog.ValidationNeedsReview, nil
	}
	return ParseVerdict(out.Choices[0].Message.Content), nil
}

func describe(p *domcatalog.Product) string {
	desc := p.Description
	if strings.TrimSpace(desc) == "" {
		desc = "No description"
	}
	return fmt.Sprintf("Validate this product:\nName: %s\nDescription: %s\nPrice: %s %s",
		p.Name, desc, p.Price.StringFixed(2), p.CurrencyOrDefault())
}

// ParseVerdict normalises a free text answer to a validation status.
func ParseVerdict(answer string) domcatalog.ValidationStatus {
	a := strings.ToLower(strings.Trim(strings.TrimSpace(answer), `"'.`))
	switch a {
	case "blocked":
		return domcatalog.ValidationBlocked
	case "checked":
		return domcatalog.ValidationChecked
	}
	return domcatalog.ValidationNeedsReview
}
