// Package memory implements store.Store with mutex-guarded maps.
// It is the default series store: fast, process-local, suitable for
// Sync and ThreadPool entries and for tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/scribe/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// series holds the data for a single entry.
type series struct {
	points  map[int64]any
	appends int
}

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*series
}

// New returns a new empty Store.
func New() *Store {
	return &Store{entries: make(map[string]*series)}
}

// DeclareEntry prepares storage for a new entry. Idempotent.
func (m *Store) DeclareEntry(_ context.Context, entry string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[entry]; !ok {
		m.entries[entry] = &series{points: make(map[int64]any)}
	}
	return nil
}

// Append records a point. A repeated tick overwrites the previous value
// at that tick; the append counter advances either way.
func (m *Store) Append(_ context.Context, entry string, p store.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.entries[entry]
	if !ok {
		return store.ErrEntryNotDeclared
	}
	s.points[p.Tick] = p.Value
	s.appends++
	return nil
}

// AppendNext records value at the next default tick under the same lock
// that advances the counter, so concurrent callers get distinct ticks.
func (m *Store) AppendNext(_ context.Context, entry string, value any) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.entries[entry]
	if !ok {
		return 0, store.ErrEntryNotDeclared
	}
	s.appends++
	tick := int64(s.appends)
	s.points[tick] = value
	return tick, nil
}

// Series returns all points for the entry ordered by tick.
func (m *Store) Series(_ context.Context, entry string) ([]store.Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.entries[entry]
	if !ok {
		return nil, store.ErrEntryNotDeclared
	}

	out := make([]store.Point, 0, len(s.points))
	for tick, value := range s.points {
		out = append(out, store.Point{Tick: tick, Value: value})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Tick < out[k].Tick })
	return out, nil
}

// Len returns the number of appends since the last Clear.
func (m *Store) Len(_ context.Context, entry string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.entries[entry]
	if !ok {
		return 0, store.ErrEntryNotDeclared
	}
	return s.appends, nil
}

// Clear removes all points for the entry and resets its counter.
func (m *Store) Clear(_ context.Context, entry string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.entries[entry]
	if !ok {
		return store.ErrEntryNotDeclared
	}
	s.points = make(map[int64]any)
	s.appends = 0
	return nil
}

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }
