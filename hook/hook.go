// Package hook defines the reporting side channel of the dispatch core.
// Hooks are notified of lifecycle events (entry declared, invocation
// completed, invocation failed, drain finished, etc.) and can react to
// them — logging, metrics, test capture.
//
// Handler failures are never raised to the pushing goroutine; this
// side channel is the only place they surface. Each lifecycle hook is
// a separate interface so hooks opt in only to the events they care
// about.
package hook

import (
	"context"
	"time"

	"github.com/xraph/scribe/entry"
	"github.com/xraph/scribe/handler"
)

// Hook is the base interface all hooks must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// ──────────────────────────────────────────────────
// Entry lifecycle hooks
// ──────────────────────────────────────────────────

// EntryDeclared is called after an entry is successfully declared.
type EntryDeclared interface {
	OnEntryDeclared(ctx context.Context, e *entry.Entry) error
}

// ──────────────────────────────────────────────────
// Invocation lifecycle hooks
// ──────────────────────────────────────────────────

// InvocationStarted is called when a backend begins executing an invocation.
type InvocationStarted interface {
	OnInvocationStarted(ctx context.Context, inv *entry.Invocation) error
}

// InvocationCompleted is called after an invocation finishes successfully.
type InvocationCompleted interface {
	OnInvocationCompleted(ctx context.Context, inv *entry.Invocation, elapsed time.Duration) error
}

// InvocationFailed is called when a handler returns an error or panics.
// The failure is contained: this hook is the only visibility callers get.
type InvocationFailed interface {
	OnInvocationFailed(ctx context.Context, f *handler.Failure) error
}

// DeliveryFailed is called when an invocation could not reach its
// backend — typically a payload that would not serialize across the
// process boundary. The handler never ran.
type DeliveryFailed interface {
	OnDeliveryFailed(ctx context.Context, f *handler.Failure) error
}

// ──────────────────────────────────────────────────
// Recorder lifecycle hooks
// ──────────────────────────────────────────────────

// Drained is called after a wait completes, with the waited duration.
type Drained interface {
	OnDrained(ctx context.Context, waited time.Duration) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
