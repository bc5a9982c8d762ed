package application

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	SpanPrefix = "UC."

	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Instrument holds the span, RED metrics and base logger of one use case.
type Instrument struct {
	useCase string
	log     observability.Logger
	tracer  observability.Tracer
	req     observability.Counter // usecase_requests_total{use_case,outcome}
	dur     observability.Histogram
	metrics observability.Metrics
}

func NewInstrument(service, useCase string, tel observability.Observability) Instrument {
	tel = observability.Or(tel)
	m := tel.Metrics()
	return Instrument{
		useCase: useCase,
		log:     tel.Logger().With(observability.F("service", service)),
		tracer:  tel.Tracer(),
		req:     m.Counter(observability.MUsecaseRequests),
		dur:     m.Histogram(observability.MUsecaseDuration),
		metrics: m,
	}
}

func (i Instrument) Logger() observability.Logger   { return i.log }
func (i Instrument) Metrics() observability.Metrics { return i.metrics }

// Run tracks a single execution. Callers update outcome and status as the flow
// progresses and call End from a defer.
type Run struct {
	ctx     context.Context
	useCase string
	span    trace.Span
	start   time.Time
	logger  observability.Logger
	req     observability.Counter
	dur     observability.Histogram
	outcome string
	status  string
	fields  []observability.Field
}

func (i Instrument) Start(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, *Run) {
	logger := logctx.FromOr(ctx, i.log).With(observability.F("use_case", i.useCase))
	attrs = append([]attribute.KeyValue{attribute.String("use_case", i.useCase)}, attrs...)
	ctx, span := i.tracer.Start(ctx, SpanPrefix+spanName, attrs...)
	return ctx, &Run{
		ctx:     ctx,
		useCase: i.useCase,
		span:    span,
		start:   time.Now(),
		logger:  logger,
		req:     i.req,
		dur:     i.dur,
		outcome: OutcomeSuccess,
		status:  "OK",
	}
}

func (r *Run) Logger() observability.Logger { return r.logger }
func (r *Run) Span() trace.Span             { return r.span }

// Fail marks the run as failed with a stable status code.
func (r *Run) Fail(status string) {
	r.outcome, r.status = OutcomeError, status
}

// Status records a notable status without changing the outcome.
func (r *Run) Status(status string) {
	r.status = status
}

// Outcome overrides the outcome label, e.g. "replay" or "dropped".
func (r *Run) Outcome(outcome string) {
	r.outcome = outcome
}

func (r *Run) Note(fields ...observability.Field) {
	r.fields = append(r.fields, fields...)
}

func (r *Run) Event(name string, attrs ...attribute.KeyValue) {
	if r.span != nil {
		r.span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}

func (r *Run) End(err error) {
	lat := time.Since(r.start).Seconds()
	if err != nil && r.outcome == OutcomeSuccess {
		r.outcome = OutcomeError
		if r.status == "OK" {
			r.status = "ERROR"
		}
	}

	if r.span != nil {
		if err != nil {
			r.span.RecordError(err)
			r.span.SetStatus(codes.Error, r.status)
		} else {
			r.span.SetStatus(codes.Ok, r.status)
		}
		r.span.End()
	}

	if r.req != nil {
		r.req.Add(1,
			observability.L("use_case", r.useCase),
			observability.L("outcome", r.outcome),
		)
	}
	if r.dur != nil {
		r.dur.Observe(lat, observability.L("use_case", r.useCase))
	}

	fields := []observability.Field{
		observability.F("outcome", r.outcome),
		observability.F("status", r.status),
		observability.F("latency_seconds", lat),
	}
	fields = append(fields, observability.TraceFields(r.ctx)...)
	fields = append(fields, r.fields...)
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	r.logger.Info("use_case_done", fields...)
}

// External times one call to an outside collaborator and records
// external_requests_total and external_request_duration_seconds.
func External(m observability.Metrics, peer, endpoint string, call func() error) error {
	if m == nil {
		m = observability.NopMetrics()
	}
	start := time.Now()
	err := call()
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.Counter(observability.MExternalRequests).Add(1,
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	m.Histogram(observability.MExternalRequestDuration).Observe(time.Since(start).Seconds(),
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
	)
	return err
}
