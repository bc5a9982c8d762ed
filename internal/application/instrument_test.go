package application_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/Zhima-Mochi/marketplace-checkout/internal/application"
	infraobs "github.com/Zhima-Mochi/marketplace-checkout/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTelemetry(t *testing.T) (observability.Observability, *observer.ObservedLogs, *prometrics.Metrics) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	m, err := prometrics.New("")
	require.NoError(t, err)
	return infraobs.New(observability.NopTracer(), zaplogger.FromZap(zap.New(core)), m), logs, m
}

func scrape(t *testing.T, m *prometrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	b, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(b)
}

func TestRunLogsOneLineWithOutcome(t *testing.T) {
	tel, logs, m := newTelemetry(t)
	inst := application.NewInstrument("webhook-service", "webhook.reconcile", tel)

	_, run := inst.Start(context.Background(), "Reconcile")
	run.Outcome("replay")
	run.Status("ALREADY_PAID")
	run.Note(observability.F("order_number", "ORD-1"))
	run.End(nil)

	entries := logs.FilterMessage("use_case_done").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "replay", fields["outcome"])
	assert.Equal(t, "ALREADY_PAID", fields["status"])
	assert.Equal(t, "ORD-1", fields["order_number"])
	assert.Equal(t, "webhook.reconcile", fields["use_case"])
	assert.Equal(t, "webhook-service", fields["service"])

	assert.Contains(t, scrape(t, m), `usecase_requests_total{outcome="replay",use_case="webhook.reconcile"} 1`)
}

func TestRunEndWithErrorMarksFailure(t *testing.T) {
	tel, logs, _ := newTelemetry(t)
	inst := application.NewInstrument("order-service", "order.create", tel)

	_, run := inst.Start(context.Background(), "CreateOrder")
	run.End(errors.New("db down"))

	entries := logs.FilterMessage("use_case_done").All()
	require.Len(t, entries, 1)
	assert.Equal(t, application.OutcomeError, entries[0].ContextMap()["outcome"])
	assert.Equal(t, "ERROR", entries[0].ContextMap()["status"])
	assert.Equal(t, "db down", entries[0].ContextMap()["error"])
}

func TestExternalRecordsOutcome(t *testing.T) {
	tel, _, m := newTelemetry(t)
	boom := errors.New("timeout")

	assert.NoError(t, application.External(tel.Metrics(), "kafka", "order.paid", func() error { return nil }))
	assert.ErrorIs(t, application.External(tel.Metrics(), "kafka", "order.paid", func() error { return boom }), boom)
	assert.NoError(t, application.External(nil, "mail", "send", func() error { return nil }))

	body := scrape(t, m)
	assert.Contains(t, body, `external_requests_total{endpoint="order.paid",outcome="success",peer="kafka"} 1`)
	assert.Contains(t, body, `external_requests_total{endpoint="order.paid",outcome="error",peer="kafka"} 1`)
}
