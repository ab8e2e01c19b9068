package handler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotRegistered is returned when a named handler lookup fails.
var ErrNotRegistered = errors.New("scribe: handler not registered")

// Registry maps handler names to functions. Named handlers are what
// ProcessPool entries dispatch to: the parent sends the name, the child
// resolves it against its own Registry, so both processes must register
// the same names. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Func
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Func)}
}

// Register adds a handler under the given name, replacing any previous
// registration.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = fn
}

// Get returns the handler for the given name.
// Returns false if no handler is registered.
func (r *Registry) Get(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[name]
	return fn, ok
}

// Names returns all registered handler names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// Definition is a typed handler definition. T is the payload type the
// handler expects; pushes whose payload cannot convert to T fail the
// invocation (contained, like any handler error).
type Definition[T any] struct {
	// Name is the unique identifier for this handler.
	Name string

	// Handler processes the typed payload.
	Handler func(ctx context.Context, rec Record, payload T) error
}

// NewDefinition creates a typed handler definition.
func NewDefinition[T any](name string, fn func(ctx context.Context, rec Record, payload T) error) *Definition[T] {
	return &Definition[T]{Name: name, Handler: fn}
}

// RegisterDefinition registers a typed handler definition. The generic
// handler is wrapped in a closure that converts the payload to T before
// calling the typed handler.
//
// In-process payloads convert by type assertion. Payloads that crossed
// the process-pool codec arrive as decoded generic values (maps,
// numbers) and convert through a msgpack round trip.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterDefinition[T any](r *Registry, def *Definition[T]) {
	wrapped := func(ctx context.Context, rec Record) error {
		t, err := convert[T](rec.Payload)
		if err != nil {
			return fmt.Errorf("convert payload for handler %q: %w", def.Name, err)
		}
		return def.Handler(ctx, rec, t)
	}
	r.Register(def.Name, wrapped)
}

// convert coerces a payload into T, directly when possible and through
// a msgpack round trip otherwise.
func convert[T any](payload any) (T, error) {
	var t T
	if payload == nil {
		return t, nil
	}
	if direct, ok := payload.(T); ok {
		return direct, nil
	}

	raw, err := msgpack.Marshal(payload)
	if err != nil {
		return t, err
	}
	if err := msgpack.Unmarshal(raw, &t); err != nil {
		return t, err
	}
	return t, nil
}
