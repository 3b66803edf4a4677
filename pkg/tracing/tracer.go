package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	AttrHTTPStatusCode = "http.status_code"

	AttrMessagingSystem      = "messaging.system"
	AttrMessagingDestination = "messaging.destination"

	AttrWebhookKey         = "webhook.key"
	AttrVerificationSource = "verification.source"
)

// Tracer wraps an OpenTelemetry tracer with span helpers shared by the
// handler, dispatcher and producer layers.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new tracer instance
func NewTracer(tracer trace.Tracer) *Tracer {
	return &Tracer{
		tracer: tracer,
	}
}

// StartServerSpan creates a new server span
func (t *Tracer) StartServerSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.startSpan(ctx, operation, trace.SpanKindServer, attrs...)
}

// StartClientSpan creates a new client span
func (t *Tracer) StartClientSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.startSpan(ctx, operation, trace.SpanKindClient, attrs...)
}

// startSpan is a helper to start a span with given kind and attributes
func (t *Tracer) startSpan(ctx context.Context, operation string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, operation,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(kind),
	)
	return ctx, span
}

// RecordError records an error on the span
func (t *Tracer) RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddAttributes adds attributes to span
func (t *Tracer) AddAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// GetTracer returns the global tracer
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
