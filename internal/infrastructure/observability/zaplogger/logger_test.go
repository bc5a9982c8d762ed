package zaplogger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromZapCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core)).With(observability.F("service", "checkout"))

	l.Warn("webhook_signature_rejected", observability.F("error", errors.New("bad mac")), observability.F("attempt", 2))

	entries := logs.All()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, zapcore.WarnLevel, e.Level)
	assert.Equal(t, "webhook_signature_rejected", e.Message)
	fields := e.ContextMap()
	assert.Equal(t, "checkout", fields["service"])
	assert.Equal(t, "bad mac", fields["error"])
	assert.EqualValues(t, 2, fields["attempt"])
}

func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkout.log")
	l, sync, err := New(Options{Level: "debug", File: path, MaxSizeMB: 1}, observability.F("env", "test"))
	require.NoError(t, err)

	l.Info("http_access", observability.F("status", 200))
	_ = sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"http_access"`)
	assert.Contains(t, string(data), `"env":"test"`)
	assert.Contains(t, string(data), `"level":"info"`)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, _, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}
