package entry

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrDuplicate is returned when declaring a name already in use.
	ErrDuplicate = errors.New("scribe: duplicate entry")

	// ErrNotFound is returned when an operation references an entry
	// that was never declared.
	ErrNotFound = errors.New("scribe: unknown entry")
)

// Registry maps entry names to their declarations. Declaration order is
// preserved for operations that walk all entries (dump-all).
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	order   []string
}

// NewRegistry creates an empty entry registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Declare registers an entry. The existing entry is left untouched when
// the name is already in use.
func (r *Registry) Declare(e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[e.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicate, e.Name)
	}
	r.entries[e.Name] = e
	r.order = append(r.order, e.Name)
	return nil
}

// Get returns the entry with the given name.
func (r *Registry) Get(name string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return e, nil
}

// Names returns all declared entry names in declaration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of declared entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Empty reports whether no entry has been declared yet. Pool and path
// configuration is only allowed while the registry is empty.
func (r *Registry) Empty() bool { return r.Len() == 0 }
