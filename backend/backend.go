// Package backend provides the execution backends that run handler
// invocations — inline on the caller's goroutine, on a pool of worker
// goroutines, or in child worker processes — plus the drain controller
// that waits for all of them to go idle.
package backend

import (
	"context"
	"errors"

	"github.com/xraph/scribe/entry"
)

var (
	// ErrClosed is returned by Submit after a backend has been closed.
	ErrClosed = errors.New("scribe: backend closed")

	// ErrNotSerializable marks an invocation whose payload could not be
	// encoded for delivery to a worker process.
	ErrNotSerializable = errors.New("scribe: payload not serializable")

	// ErrUnnamedHandler marks an invocation whose handler has no registered
	// name. Only named handlers can cross the process boundary.
	ErrUnnamedHandler = errors.New("scribe: process delivery requires a registered handler name")
)

// Backend accepts invocations and runs them. Implementations differ in
// where the handler executes; all of them contain handler failures and
// report them through the hook side channel instead of returning them.
//
// Submit returns an error only for backend-level problems (closed backend,
// cancelled context). A handler that runs and fails is not a Submit error.
type Backend interface {
	// Mode reports which dispatch mode this backend implements.
	Mode() entry.Mode

	// Submit schedules one invocation. Inline backends run it before
	// returning; pooled backends enqueue it and return immediately,
	// blocking only when the queue is full.
	Submit(ctx context.Context, inv *entry.Invocation) error

	// Pending reports invocations accepted but not yet started.
	Pending() int

	// InFlight reports invocations currently executing.
	InFlight() int

	// Idle reports whether Pending and InFlight are both zero.
	Idle() bool

	// WaitIdle blocks until the backend is idle or ctx is done.
	WaitIdle(ctx context.Context) error

	// Close stops the backend, draining accepted work within the
	// context deadline. After Close, Submit returns ErrClosed.
	Close(ctx context.Context) error
}

// tracker maintains the pending/in-flight counts shared by the pooled
// backends. The count is incremented at Submit and only decremented once
// the invocation has fully finished, so an invocation that has been
// dequeued but not yet run can never make the backend look idle.
type tracker struct {
	// guarded by the owning backend's mutex
	pending  int
	inFlight int
	idleCh   chan struct{}
}

func newTracker() *tracker {
	ch := make(chan struct{})
	close(ch) // idle at start
	return &tracker{idleCh: ch}
}

func (t *tracker) submitted() {
	if t.pending+t.inFlight == 0 {
		t.idleCh = make(chan struct{})
	}
	t.pending++
}

func (t *tracker) started() {
	t.pending--
	t.inFlight++
}

func (t *tracker) finished() {
	t.inFlight--
	if t.pending+t.inFlight == 0 {
		close(t.idleCh)
	}
}

// dropped abandons an invocation that was submitted but never started.
func (t *tracker) dropped() {
	t.pending--
	if t.pending+t.inFlight == 0 {
		close(t.idleCh)
	}
}
