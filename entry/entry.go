// Package entry defines log entries — named, independently configured
// channels with their own handler lists and dispatch mode — the
// registry that holds them, and the Invocation unit of work the
// dispatch core schedules.
package entry

import (
	"time"

	"github.com/xraph/scribe/handler"
)

// Mode determines where and when an entry's handlers execute relative
// to the caller.
type Mode string

const (
	// ModeSync runs handlers on the calling goroutine before push returns.
	ModeSync Mode = "sync"
	// ModeThread runs handlers on the shared goroutine pool.
	ModeThread Mode = "thread"
	// ModeProcess runs handlers on the shared pool of worker processes.
	ModeProcess Mode = "process"
)

// Entry is a registered logging channel. Its mode and handler lists are
// fixed at declaration and never change afterwards.
type Entry struct {
	// Name is the entry identity. May contain "/" separators for
	// on-disk namespacing; the dispatch core never interprets them.
	Name string

	// Mode is where this entry's handlers execute.
	Mode Mode

	// OnPush handlers run for every pushed value.
	OnPush []handler.Spec

	// OnReset handlers run when the entry is reset, before its series
	// is cleared.
	OnReset []handler.Spec

	// OnDump handlers run when the entry is dumped.
	OnDump []handler.Spec

	// DeclaredAt is when the entry was registered.
	DeclaredAt time.Time
}

// Option configures an entry at declaration time.
type Option func(*Entry)

// WithMode sets the entry's dispatch mode. Defaults to ModeSync.
func WithMode(m Mode) Option {
	return func(e *Entry) { e.Mode = m }
}

// OnReset sets the handlers invoked on reset.
func OnReset(specs ...handler.Spec) Option {
	return func(e *Entry) { e.OnReset = specs }
}

// OnDump sets the handlers invoked on dump.
func OnDump(specs ...handler.Spec) Option {
	return func(e *Entry) { e.OnDump = specs }
}

// New builds an entry with the given on-push handlers and options.
func New(name string, onPush []handler.Spec, opts ...Option) *Entry {
	e := &Entry{
		Name:       name,
		Mode:       ModeSync,
		OnPush:     onPush,
		DeclaredAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Specs returns the handler list for the given invocation kind.
func (e *Entry) Specs(kind handler.Kind) []handler.Spec {
	switch kind {
	case handler.KindPush:
		return e.OnPush
	case handler.KindReset:
		return e.OnReset
	case handler.KindDump:
		return e.OnDump
	}
	return nil
}
