package otelx

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestSampleRatio(t *testing.T) {
	cases := map[string]float64{
		"0.25": 0.25,
		"0":    0,
		"1.5":  1,
		"-1":   1,
		"abc":  1,
	}
	for raw, want := range cases {
		if got := sampleRatio(raw); got != want {
			t.Fatalf("%q: expected %v, got %v", raw, want, got)
		}
	}
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02},
		SpanID:     trace.SpanID{0x03},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	parent, _ := TraceHeaders(ctx)
	if parent == "" {
		t.Fatal("expected traceparent")
	}
	got := trace.SpanContextFromContext(WithTraceHeaders(context.Background(), parent, ""))
	if got.TraceID() != sc.TraceID() || got.SpanID() != sc.SpanID() {
		t.Fatalf("trace context lost: %v", got)
	}
}

func TestWithTraceHeadersEmpty(t *testing.T) {
	ctx := context.Background()
	if WithTraceHeaders(ctx, "", "") != ctx {
		t.Fatal("expected context unchanged")
	}
}
