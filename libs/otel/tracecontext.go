package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	headerTraceparent = "traceparent"
	headerTracestate  = "tracestate"
)

// TraceHeaders renders the active span context as W3C header values so it can be stored
// next to an outbox row.
func TraceHeaders(ctx context.Context) (traceparent, tracestate string) {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier.Get(headerTraceparent), carrier.Get(headerTracestate)
}

// WithTraceHeaders restores a span context captured by TraceHeaders.
func WithTraceHeaders(ctx context.Context, traceparent, tracestate string) context.Context {
	if traceparent == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{headerTraceparent: traceparent}
	if tracestate != "" {
		carrier.Set(headerTracestate, tracestate)
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
