package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/scribe/entry"
)

// Logging returns middleware that logs invocation start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, inv *entry.Invocation, next Handler) error {
		logger.Debug("invocation started",
			slog.String("entry", inv.Entry),
			slog.String("handler", inv.Spec.Display()),
			slog.String("kind", string(inv.Kind)),
			slog.String("invocation_id", inv.ID.String()),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("invocation failed",
				slog.String("entry", inv.Entry),
				slog.String("handler", inv.Spec.Display()),
				slog.String("invocation_id", inv.ID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Debug("invocation completed",
				slog.String("entry", inv.Entry),
				slog.String("handler", inv.Spec.Display()),
				slog.String("invocation_id", inv.ID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
