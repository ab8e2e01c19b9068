// Package store defines the series store interface — the per-entry
// accumulation of pushed data points that handlers consume. Backends
// implement it in memory (package store/memory) or on Redis (package
// store/redis) for sharing series across process boundaries.
package store

import (
	"context"
	"errors"
)

// ErrEntryNotDeclared is returned when an operation references an entry
// that DeclareEntry has not been called for.
var ErrEntryNotDeclared = errors.New("scribe/store: entry not declared")

// Point is one recorded data sample: a tick (epoch, iteration, step)
// and the value pushed at that tick.
type Point struct {
	Tick  int64 `json:"tick" msgpack:"tick"`
	Value any   `json:"value" msgpack:"value"`
}

// Store persists per-entry data series. Implementations must be safe
// for concurrent use: workers append and read from multiple goroutines
// (and, for process pools, from multiple OS processes).
//
// Ticks are keys: appending a point with an existing tick overwrites
// the previous value at that tick. Len counts appends, not distinct
// ticks, and resets to zero on Clear — it is the source of default
// ticks for pushes that don't carry one.
type Store interface {
	// DeclareEntry prepares storage for a new entry. Idempotent.
	DeclareEntry(ctx context.Context, entry string) error

	// Append records a point for the entry.
	Append(ctx context.Context, entry string, p Point) error

	// AppendNext assigns the next default tick (append count + 1),
	// records the value at it, and returns the assigned tick. The tick
	// assignment is atomic: concurrent callers never collide on a tick.
	AppendNext(ctx context.Context, entry string, value any) (int64, error)

	// Series returns all points for the entry ordered by tick.
	Series(ctx context.Context, entry string) ([]Point, error)

	// Len returns the number of appends since the last Clear.
	Len(ctx context.Context, entry string) (int, error)

	// Clear removes all points for the entry and resets its counter.
	Clear(ctx context.Context, entry string) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases store resources.
	Close() error
}
