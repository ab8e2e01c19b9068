// Package handler defines the handler model: the function signature
// handlers implement, the Record they receive, handler Specs with
// bound arguments, the named Registry that lets handlers cross process
// boundaries, and the Failure report delivered on the side channel
// when a handler fails.
package handler

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"time"

	"github.com/xraph/scribe/id"
	"github.com/xraph/scribe/store"
)

// Kind identifies which entry operation triggered an invocation.
type Kind string

const (
	// KindPush means the invocation was triggered by a push.
	KindPush Kind = "push"
	// KindReset means the invocation was triggered by a reset.
	KindReset Kind = "reset"
	// KindDump means the invocation was triggered by a dump.
	KindDump Kind = "dump"
)

// Args is an immutable set of arguments bound to a handler at
// declaration time and merged into every Record it receives.
type Args map[string]any

// String returns the string value for key, or fallback if absent or
// not a string.
func (a Args) String(key, fallback string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return fallback
}

// Record is what a handler receives on each invocation: the triggering
// operation, the pushed payload, the declaration-time bound arguments,
// and a snapshot of the entry's series taken at dispatch time.
//
// The snapshot is what makes reset handlers see pre-clear data and
// keeps ProcessPool handlers independent of a shared live store.
type Record struct {
	// Entry is the raw entry name, separators and all.
	Entry string `json:"entry" msgpack:"entry"`

	// Kind is the operation that triggered this invocation.
	Kind Kind `json:"kind" msgpack:"kind"`

	// Tick is the data key of the triggering push. Zero for reset/dump.
	Tick int64 `json:"tick" msgpack:"tick"`

	// Payload is the pushed value. Nil for reset/dump invocations.
	Payload any `json:"payload" msgpack:"payload"`

	// Args are the bound arguments captured at declaration.
	Args Args `json:"args,omitempty" msgpack:"args,omitempty"`

	// Root is the recorder's root path, for handlers that write to disk.
	Root string `json:"root,omitempty" msgpack:"root,omitempty"`

	// Series is the entry's data snapshot, ordered by tick.
	Series []store.Point `json:"series,omitempty" msgpack:"series,omitempty"`
}

// Last returns the most recent point of the series snapshot.
// The second return is false when the snapshot is empty.
func (r Record) Last() (store.Point, bool) {
	if len(r.Series) == 0 {
		return store.Point{}, false
	}
	return r.Series[len(r.Series)-1], true
}

// Func is the handler signature. Handlers report failure by returning
// an error (or panicking); either way the failure is contained and
// reported on the side channel, never propagated to the pusher.
type Func func(ctx context.Context, rec Record) error

// Spec pairs a handler with its bound arguments. A Spec references the
// handler either directly (Func) or by registered name (Name). Entries
// dispatched to a ProcessPool must use named handlers: only the name
// and the bound arguments cross the process boundary.
type Spec struct {
	// Name is the registered handler name. Required for ProcessPool.
	Name string

	// Func is the handler function. Ignored when Name is set and a
	// registry lookup succeeds.
	Func Func

	// Args are bound once at declaration time.
	Args Args
}

// Use builds a Spec around a direct handler function.
func Use(fn Func, args Args) Spec {
	return Spec{Func: fn, Args: args}
}

// Named builds a Spec referencing a registered handler by name.
func Named(name string, args Args) Spec {
	return Spec{Name: name, Args: args}
}

// Display returns the handler identity for logs and failure reports:
// the registered name when present, otherwise the function's symbol name.
func (s Spec) Display() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Func == nil {
		return "<nil>"
	}
	if fn := runtime.FuncForPC(reflect.ValueOf(s.Func).Pointer()); fn != nil {
		return fn.Name()
	}
	return "<func>"
}

// Failure is a side-channel report of one failed (or undeliverable)
// invocation.
type Failure struct {
	// Invocation identifies the failed invocation.
	Invocation id.InvocationID

	// Entry is the entry the invocation belonged to.
	Entry string

	// Handler is the handler identity (Spec.Display).
	Handler string

	// Kind is the triggering operation.
	Kind Kind

	// Err is the contained error.
	Err error

	// At is when the failure was recorded.
	At time.Time
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return fmt.Sprintf("scribe: handler %s of entry %q failed on %s: %v", f.Handler, f.Entry, f.Kind, f.Err)
}

// Unwrap exposes the contained error for errors.Is/As.
func (f *Failure) Unwrap() error { return f.Err }
