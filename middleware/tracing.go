package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/scribe/entry"
)

// tracerName is the instrumentation scope name for scribe tracing.
const tracerName = "github.com/xraph/scribe"

// Tracing returns middleware that wraps each invocation in an OpenTelemetry
// span. If no TracerProvider is configured globally, the default noop tracer
// is used and this middleware becomes a pass-through with zero overhead.
//
// Span attributes include: scribe.invocation.id, scribe.entry,
// scribe.handler, scribe.kind, scribe.tick. On error, the span status is
// set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, inv *entry.Invocation, next Handler) error {
		ctx, span := tracer.Start(ctx, "scribe.invocation.run",
			trace.WithAttributes(
				attribute.String("scribe.invocation.id", inv.ID.String()),
				attribute.String("scribe.entry", inv.Entry),
				attribute.String("scribe.handler", inv.Spec.Display()),
				attribute.String("scribe.kind", string(inv.Kind)),
				attribute.Int64("scribe.tick", inv.Tick),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
