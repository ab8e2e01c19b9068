package backend

import (
	"context"
	"sync/atomic"

	"github.com/xraph/scribe/entry"
)

// Inline runs every invocation on the caller's goroutine. Submit does not
// return until the handler has finished, so the backend is idle whenever
// no Submit call is executing.
type Inline struct {
	invoker *Invoker
	closed  atomic.Bool
}

// NewInline creates the synchronous backend.
func NewInline(invoker *Invoker) *Inline {
	return &Inline{invoker: invoker}
}

var _ Backend = (*Inline)(nil)

func (b *Inline) Mode() entry.Mode { return entry.ModeSync }

func (b *Inline) Submit(ctx context.Context, inv *entry.Invocation) error {
	if b.closed.Load() {
		return ErrClosed
	}
	// Failure reports go through the hook side channel; the caller only
	// sees backend-level errors.
	b.invoker.Invoke(ctx, inv)
	return nil
}

func (b *Inline) Pending() int  { return 0 }
func (b *Inline) InFlight() int { return 0 }
func (b *Inline) Idle() bool    { return true }

func (b *Inline) WaitIdle(_ context.Context) error { return nil }

func (b *Inline) Close(_ context.Context) error {
	b.closed.Store(true)
	return nil
}
