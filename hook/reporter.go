package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/scribe/handler"
)

// Compile-time interface checks.
var (
	_ Hook             = (*Reporter)(nil)
	_ InvocationFailed = (*Reporter)(nil)
	_ DeliveryFailed   = (*Reporter)(nil)
	_ Drained          = (*Reporter)(nil)
)

// Reporter is the default side-channel consumer: it writes failure
// reports to a structured logger. A Recorder always carries one so
// contained failures are visible somewhere even with no custom hooks.
type Reporter struct {
	logger *slog.Logger
}

// NewReporter creates a Reporter over the given logger.
func NewReporter(logger *slog.Logger) *Reporter {
	return &Reporter{logger: logger}
}

// Name implements Hook.
func (r *Reporter) Name() string { return "log-reporter" }

// OnInvocationFailed logs one contained handler failure.
func (r *Reporter) OnInvocationFailed(_ context.Context, f *handler.Failure) error {
	r.logger.Warn("handler failed",
		slog.String("entry", f.Entry),
		slog.String("handler", f.Handler),
		slog.String("kind", string(f.Kind)),
		slog.String("invocation_id", f.Invocation.String()),
		slog.Time("at", f.At),
		slog.String("error", f.Err.Error()),
	)
	return nil
}

// OnDeliveryFailed logs one undeliverable invocation.
func (r *Reporter) OnDeliveryFailed(_ context.Context, f *handler.Failure) error {
	r.logger.Warn("invocation not delivered",
		slog.String("entry", f.Entry),
		slog.String("handler", f.Handler),
		slog.String("kind", string(f.Kind)),
		slog.String("invocation_id", f.Invocation.String()),
		slog.String("error", f.Err.Error()),
	)
	return nil
}

// OnDrained logs the waited duration.
func (r *Reporter) OnDrained(_ context.Context, waited time.Duration) error {
	r.logger.Info("drain complete", slog.Duration("waited", waited))
	return nil
}
