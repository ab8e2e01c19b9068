package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/scribe/entry"
)

// meterName is the instrumentation scope name for scribe metrics.
const meterName = "github.com/xraph/scribe"

// Metrics returns middleware that records per-invocation metrics using
// the global OTel MeterProvider. If no MeterProvider is configured, noop
// instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - scribe.invocation.duration (Float64Histogram): execution time in
//     seconds, with attributes: entry, handler, kind, status ("ok" or "error")
//   - scribe.invocation.total (Int64Counter): total invocations,
//     with attributes: entry, handler, kind, status ("ok" or "error")
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Create instruments once at middleware construction time.
	// OTel instruments are safe for concurrent use. On error, the API
	// returns noop instruments so the middleware degrades gracefully.
	duration, dErr := meter.Float64Histogram(
		"scribe.invocation.duration",
		metric.WithDescription("Duration of handler invocations in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	total, tErr := meter.Int64Counter(
		"scribe.invocation.total",
		metric.WithDescription("Total number of handler invocations"),
		metric.WithUnit("{invocation}"),
	)
	_ = tErr // noop fallback guaranteed by OTel API contract

	return func(ctx context.Context, inv *entry.Invocation, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("entry", inv.Entry),
			attribute.String("handler", inv.Spec.Display()),
			attribute.String("kind", string(inv.Kind)),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		total.Add(ctx, 1, attrs)

		return err
	}
}
