package entry

import (
	"time"

	"github.com/xraph/scribe/handler"
	"github.com/xraph/scribe/id"
	"github.com/xraph/scribe/store"
)

// Invocation is one scheduled execution of one handler against one
// payload. Created when push/reset/dump resolves an entry; destroyed
// once its side effect completes or fails; never retried.
type Invocation struct {
	// ID uniquely identifies this invocation in logs and reports.
	ID id.InvocationID

	// Entry is the raw name of the entry that scheduled this invocation.
	Entry string

	// Kind is the triggering operation.
	Kind handler.Kind

	// Tick is the data key of the triggering push. Zero for reset/dump.
	Tick int64

	// Payload is the pushed value. Nil for reset/dump.
	Payload any

	// Spec is the handler to run, with its bound arguments.
	Spec handler.Spec

	// Series is the entry's data snapshot taken at dispatch time.
	Series []store.Point

	// SubmittedAt is when the invocation was created.
	SubmittedAt time.Time
}

// NewInvocation creates an invocation for one handler spec.
func NewInvocation(entryName string, kind handler.Kind, tick int64, payload any, spec handler.Spec, series []store.Point) *Invocation {
	return &Invocation{
		ID:          id.NewInvocationID(),
		Entry:       entryName,
		Kind:        kind,
		Tick:        tick,
		Payload:     payload,
		Spec:        spec,
		Series:      series,
		SubmittedAt: time.Now().UTC(),
	}
}

// Record builds the handler-facing view of this invocation.
func (inv *Invocation) Record(root string) handler.Record {
	return handler.Record{
		Entry:   inv.Entry,
		Kind:    inv.Kind,
		Tick:    inv.Tick,
		Payload: inv.Payload,
		Args:    inv.Spec.Args,
		Root:    root,
		Series:  inv.Series,
	}
}
