package hook

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/scribe/entry"
	"github.com/xraph/scribe/handler"
)

// Named entry types pair a hook implementation with the hook name
// captured at registration time. This avoids type-asserting back to
// Hook inside the emit methods.
type entryDeclaredEntry struct {
	name string
	hook EntryDeclared
}

type invocationStartedEntry struct {
	name string
	hook InvocationStarted
}

type invocationCompletedEntry struct {
	name string
	hook InvocationCompleted
}

type invocationFailedEntry struct {
	name string
	hook InvocationFailed
}

type deliveryFailedEntry struct {
	name string
	hook DeliveryFailed
}

type drainedEntry struct {
	name string
	hook Drained
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered hooks and dispatches lifecycle events to
// them. It type-caches hooks at registration time so emit calls iterate
// only over hooks that implement the relevant event.
//
// Emit methods log (and swallow) hook errors: a broken hook must not
// take the side channel down with it.
//
// Registration can happen at any time, including while pool workers are
// emitting, so the caches are read under a lock. Emitters snapshot the
// slice header and release the lock before calling into hooks, so a hook
// that registers another hook cannot deadlock.
type Registry struct {
	logger *slog.Logger

	mu    sync.RWMutex
	hooks []Hook

	// Type-cached slices for each lifecycle event.
	entryDeclared       []entryDeclaredEntry
	invocationStarted   []invocationStartedEntry
	invocationCompleted []invocationCompletedEntry
	invocationFailed    []invocationFailedEntry
	deliveryFailed      []deliveryFailedEntry
	drained             []drainedEntry
	shutdown            []shutdownEntry
}

// NewRegistry creates a hook registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds a hook and type-asserts it into all applicable event
// caches. Hooks are notified in registration order.
func (r *Registry) Register(h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hooks = append(r.hooks, h)
	name := h.Name()

	if hk, ok := h.(EntryDeclared); ok {
		r.entryDeclared = append(r.entryDeclared, entryDeclaredEntry{name, hk})
	}
	if hk, ok := h.(InvocationStarted); ok {
		r.invocationStarted = append(r.invocationStarted, invocationStartedEntry{name, hk})
	}
	if hk, ok := h.(InvocationCompleted); ok {
		r.invocationCompleted = append(r.invocationCompleted, invocationCompletedEntry{name, hk})
	}
	if hk, ok := h.(InvocationFailed); ok {
		r.invocationFailed = append(r.invocationFailed, invocationFailedEntry{name, hk})
	}
	if hk, ok := h.(DeliveryFailed); ok {
		r.deliveryFailed = append(r.deliveryFailed, deliveryFailedEntry{name, hk})
	}
	if hk, ok := h.(Drained); ok {
		r.drained = append(r.drained, drainedEntry{name, hk})
	}
	if hk, ok := h.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, hk})
	}
}

// Hooks returns a snapshot of all registered hooks.
func (r *Registry) Hooks() []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Hook, len(r.hooks))
	copy(out, r.hooks)
	return out
}

// ──────────────────────────────────────────────────
// Emitters
// ──────────────────────────────────────────────────

// EmitEntryDeclared notifies all hooks that implement EntryDeclared.
func (r *Registry) EmitEntryDeclared(ctx context.Context, e *entry.Entry) {
	r.mu.RLock()
	hooks := r.entryDeclared
	r.mu.RUnlock()
	for _, h := range hooks {
		if err := h.hook.OnEntryDeclared(ctx, e); err != nil {
			r.logHookError("OnEntryDeclared", h.name, err)
		}
	}
}

// EmitInvocationStarted notifies all hooks that implement InvocationStarted.
func (r *Registry) EmitInvocationStarted(ctx context.Context, inv *entry.Invocation) {
	r.mu.RLock()
	hooks := r.invocationStarted
	r.mu.RUnlock()
	for _, h := range hooks {
		if err := h.hook.OnInvocationStarted(ctx, inv); err != nil {
			r.logHookError("OnInvocationStarted", h.name, err)
		}
	}
}

// EmitInvocationCompleted notifies all hooks that implement InvocationCompleted.
func (r *Registry) EmitInvocationCompleted(ctx context.Context, inv *entry.Invocation, elapsed time.Duration) {
	r.mu.RLock()
	hooks := r.invocationCompleted
	r.mu.RUnlock()
	for _, h := range hooks {
		if err := h.hook.OnInvocationCompleted(ctx, inv, elapsed); err != nil {
			r.logHookError("OnInvocationCompleted", h.name, err)
		}
	}
}

// EmitInvocationFailed notifies all hooks that implement InvocationFailed.
func (r *Registry) EmitInvocationFailed(ctx context.Context, f *handler.Failure) {
	r.mu.RLock()
	hooks := r.invocationFailed
	r.mu.RUnlock()
	for _, h := range hooks {
		if err := h.hook.OnInvocationFailed(ctx, f); err != nil {
			r.logHookError("OnInvocationFailed", h.name, err)
		}
	}
}

// EmitDeliveryFailed notifies all hooks that implement DeliveryFailed.
func (r *Registry) EmitDeliveryFailed(ctx context.Context, f *handler.Failure) {
	r.mu.RLock()
	hooks := r.deliveryFailed
	r.mu.RUnlock()
	for _, h := range hooks {
		if err := h.hook.OnDeliveryFailed(ctx, f); err != nil {
			r.logHookError("OnDeliveryFailed", h.name, err)
		}
	}
}

// EmitDrained notifies all hooks that implement Drained.
func (r *Registry) EmitDrained(ctx context.Context, waited time.Duration) {
	r.mu.RLock()
	hooks := r.drained
	r.mu.RUnlock()
	for _, h := range hooks {
		if err := h.hook.OnDrained(ctx, waited); err != nil {
			r.logHookError("OnDrained", h.name, err)
		}
	}
}

// EmitShutdown notifies all hooks that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	hooks := r.shutdown
	r.mu.RUnlock()
	for _, h := range hooks {
		if err := h.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", h.name, err)
		}
	}
}

func (r *Registry) logHookError(event, name string, err error) {
	r.logger.Warn("hook error",
		slog.String("event", event),
		slog.String("hook", name),
		slog.String("error", err.Error()),
	)
}
