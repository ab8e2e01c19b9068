package hook

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/xraph/scribe/handler"
	"github.com/xraph/scribe/id"
)

// Compile-time interface checks.
var (
	_ Hook             = (*Tap)(nil)
	_ InvocationFailed = (*Tap)(nil)
	_ DeliveryFailed   = (*Tap)(nil)
)

// DefaultTapBuffer is the default failure buffer size for a Tap.
const DefaultTapBuffer = 256

// Tap is a bounded in-memory feed of failure reports. Register it on
// the hook registry and read failures as values from C() — the usual
// way tests and supervisors observe contained failures.
//
// Delivery is non-blocking: when the buffer is full the report is
// dropped and counted, never stalling the dispatch core.
type Tap struct {
	id      id.TapID
	dropped atomic.Int64

	// mu orders send against Close so a worker delivering a report can
	// never hit a channel closed between its check and its send.
	mu     sync.Mutex
	ch     chan *handler.Failure
	closed bool
}

// NewTap creates a Tap with the given buffer size.
// A non-positive size uses DefaultTapBuffer.
func NewTap(buffer int) *Tap {
	if buffer <= 0 {
		buffer = DefaultTapBuffer
	}
	return &Tap{
		id: id.NewTapID(),
		ch: make(chan *handler.Failure, buffer),
	}
}

// Name implements Hook.
func (t *Tap) Name() string { return "tap-" + t.id.String() }

// ID returns the tap identifier.
func (t *Tap) ID() id.TapID { return t.id }

// C returns the read-only failure channel.
func (t *Tap) C() <-chan *handler.Failure { return t.ch }

// Dropped returns how many reports were discarded on a full buffer.
func (t *Tap) Dropped() int64 { return t.dropped.Load() }

// Close closes the failure channel. Reports arriving afterwards are
// counted as dropped. Safe to call concurrently with deliveries.
func (t *Tap) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.ch)
	}
}

// OnInvocationFailed implements InvocationFailed.
func (t *Tap) OnInvocationFailed(_ context.Context, f *handler.Failure) error {
	t.send(f)
	return nil
}

// OnDeliveryFailed implements DeliveryFailed.
func (t *Tap) OnDeliveryFailed(_ context.Context, f *handler.Failure) error {
	t.send(f)
	return nil
}

func (t *Tap) send(f *handler.Failure) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		t.dropped.Add(1)
		return
	}
	// The send never blocks, so holding mu here is fine.
	select {
	case t.ch <- f:
	default:
		t.dropped.Add(1)
	}
}
