package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/scribe/entry"
	"github.com/xraph/scribe/handler"
	"github.com/xraph/scribe/hook"
	"github.com/xraph/scribe/middleware"
)

// Invoker runs a single invocation through middleware and the handler,
// then converts any failure into a side-channel report. It never lets a
// handler error escape to the caller.
type Invoker struct {
	handlers *handler.Registry
	hooks    *hook.Registry
	mw       middleware.Middleware
	logger   *slog.Logger

	mu   sync.RWMutex
	root string
}

// NewInvoker creates an Invoker with the given dependencies.
func NewInvoker(
	handlers *handler.Registry,
	hooks *hook.Registry,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Invoker {
	return &Invoker{
		handlers: handlers,
		hooks:    hooks,
		mw:       middleware.Chain(mws...),
		logger:   logger,
	}
}

// SetRoot sets the output directory handed to handlers.
func (iv *Invoker) SetRoot(root string) {
	iv.mu.Lock()
	iv.root = root
	iv.mu.Unlock()
}

// Root returns the configured output directory.
func (iv *Invoker) Root() string {
	iv.mu.RLock()
	defer iv.mu.RUnlock()
	return iv.root
}

// Invoke runs an invocation through the middleware chain and handler.
// On success it emits InvocationCompleted. On failure it builds a Failure
// report, emits InvocationFailed, and returns the report so callers can
// observe it; the error itself is contained and never propagated.
func (iv *Invoker) Invoke(ctx context.Context, inv *entry.Invocation) *handler.Failure {
	fn := inv.Spec.Func
	if fn == nil {
		var ok bool
		fn, ok = iv.handlers.Get(inv.Spec.Name)
		if !ok {
			return iv.fail(ctx, inv, fmt.Errorf("%w: %q", handler.ErrNotRegistered, inv.Spec.Name))
		}
	}

	iv.hooks.EmitInvocationStarted(ctx, inv)

	start := time.Now()
	rec := inv.Record(iv.Root())

	// The terminal handler that calls the entry's handler function.
	terminal := func(ctx context.Context) error {
		return fn(ctx, rec)
	}

	err := iv.mw(ctx, inv, terminal)
	elapsed := time.Since(start)

	if err != nil {
		return iv.fail(ctx, inv, err)
	}

	iv.hooks.EmitInvocationCompleted(ctx, inv, elapsed)
	return nil
}

// fail builds the failure report and hands it to the side channel.
func (iv *Invoker) fail(ctx context.Context, inv *entry.Invocation, err error) *handler.Failure {
	f := &handler.Failure{
		Invocation: inv.ID,
		Entry:      inv.Entry,
		Handler:    inv.Spec.Display(),
		Kind:       inv.Kind,
		Err:        err,
		At:         time.Now().UTC(),
	}

	iv.logger.Debug("invocation contained a failure",
		slog.String("invocation_id", inv.ID.String()),
		slog.String("entry", inv.Entry),
		slog.String("handler", f.Handler),
		slog.String("error", err.Error()),
	)

	iv.hooks.EmitInvocationFailed(ctx, f)
	return f
}
