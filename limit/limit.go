// Package limit provides per-entry dispatch limits for asynchronous
// modes: a token-bucket rate limit and a concurrency cap applied by
// pool workers around each invocation. Entries without a configured
// limit run unconstrained (pool-wide concurrency still applies).
package limit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config defines the limits for a single entry.
type Config struct {
	// Entry is the entry name (must match the invocation's entry).
	Entry string

	// MaxInFlight caps how many invocations for this entry may run
	// simultaneously across the pool. Zero means no cap.
	MaxInFlight int

	// RateLimit is the maximum sustained invocations per second.
	// Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// entryState tracks runtime state for a single entry.
type entryState struct {
	config  Config
	limiter *rate.Limiter
	active  int
}

// Manager controls per-entry rate limiting and concurrency.
// It is safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entryState
}

// NewManager creates a Manager with the given entry configurations.
// Entries not listed here have no limits.
func NewManager(configs ...Config) *Manager {
	m := &Manager{entries: make(map[string]*entryState, len(configs))}
	for _, cfg := range configs {
		m.entries[cfg.Entry] = newEntryState(cfg)
	}
	return m
}

func newEntryState(cfg Config) *entryState {
	es := &entryState{config: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		es.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return es
}

// Acquire checks the rate limit and concurrency cap for the entry.
// If the invocation is allowed to proceed it increments the active
// counter and returns true. The caller MUST call Release when the
// invocation completes.
func (m *Manager) Acquire(entry string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	es := m.entries[entry]
	if es == nil {
		return true
	}

	if es.limiter != nil && !es.limiter.Allow() {
		return false
	}
	if es.config.MaxInFlight > 0 && es.active >= es.config.MaxInFlight {
		return false
	}

	es.active++
	return true
}

// Release decrements the active count for the entry.
func (m *Manager) Release(entry string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if es := m.entries[entry]; es != nil && es.active > 0 {
		es.active--
	}
}

// SetConfig dynamically updates (or creates) an entry configuration.
func (m *Manager) SetConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.entries[cfg.Entry]
	es := newEntryState(cfg)

	// Preserve current active count if reconfiguring.
	if existing != nil {
		es.active = existing.active
	}
	m.entries[cfg.Entry] = es
}

// ActiveCount returns the current number of active invocations for
// an entry.
func (m *Manager) ActiveCount(entry string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if es := m.entries[entry]; es != nil {
		return es.active
	}
	return 0
}
