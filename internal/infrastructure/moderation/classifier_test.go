package moderation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	domcatalog "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/catalog"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerdict(t *testing.T) {
	cases := map[string]domcatalog.ValidationStatus{
		"blocked":       domcatalog.ValidationBlocked,
		" Checked. ":    domcatalog.ValidationChecked,
		`"checked"`:     domcatalog.ValidationChecked,
		"needs_review":  domcatalog.ValidationNeedsReview,
		"I am not sure": domcatalog.ValidationNeedsReview,
		"":              domcatalog.ValidationNeedsReview,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseVerdict(in), in)
	}
}

func TestClassifyCallsChatCompletions(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"blocked"}}]}`))
	}))
	defer srv.Close()

	c := New(Config{APIBase: srv.URL, APIKey: "key"}, srv.Client())
	verdict, err := c.Classify(context.Background(), &domcatalog.Product{Name: "Lamp", Price: decimal.NewFromInt(5)})
	require.NoError(t, err)
	assert.Equal(t, domcatalog.ValidationBlocked, verdict)
	assert.Equal(t, DefaultModel, got.Model)
	require.Len(t, got.Messages, 2)
	assert.Contains(t, got.Messages[1].Content, "Name: Lamp")
	assert.Contains(t, got.Messages[1].Content, "No description")
}

func TestClassifyFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(Config{APIBase: srv.URL, APIKey: "key"}, srv.Client()).Classify(context.Background(), &domcatalog.Product{})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = New(Config{APIBase: srv.URL}, srv.Client()).Classify(context.Background(), &domcatalog.Product{})
	assert.ErrorIs(t, err, ErrUnavailable)
}
