package backend

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/scribe/hook"
)

// Controller tracks every backend in use and provides the drain barrier:
// Wait blocks until all of them are idle or the context deadline passes.
//
// Wait is not a fence against concurrent producers. Work submitted while
// a Wait is in progress may extend the wait or escape it entirely; the
// guarantee only covers invocations accepted before Wait returned.
type Controller struct {
	hooks  *hook.Registry
	logger *slog.Logger

	mu       sync.Mutex
	backends []Backend
	lastWait time.Time
}

// NewController creates a drain controller over the given backends.
func NewController(hooks *hook.Registry, logger *slog.Logger, backends ...Backend) *Controller {
	return &Controller{
		hooks:    hooks,
		logger:   logger,
		backends: backends,
		lastWait: time.Now(),
	}
}

// Add registers another backend with the controller.
func (c *Controller) Add(b Backend) {
	c.mu.Lock()
	c.backends = append(c.backends, b)
	c.mu.Unlock()
}

// Pending sums queued invocations across all backends.
func (c *Controller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, b := range c.backends {
		total += b.Pending()
	}
	return total
}

// InFlight sums executing invocations across all backends.
func (c *Controller) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, b := range c.backends {
		total += b.InFlight()
	}
	return total
}

// Idle reports whether every backend is idle.
func (c *Controller) Idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, b := range c.backends {
		if !b.Idle() {
			return false
		}
	}
	return true
}

// Wait blocks until every backend is idle or the context deadline passes.
// It returns how long it waited. Hitting the deadline is a normal return,
// not an error: the caller asked to wait at most that long.
func (c *Controller) Wait(ctx context.Context) (time.Duration, error) {
	c.mu.Lock()
	backends := make([]Backend, len(c.backends))
	copy(backends, c.backends)
	sinceLast := time.Since(c.lastWait)
	c.mu.Unlock()

	c.logger.Debug("draining backends",
		slog.Int("backends", len(backends)),
		slog.Duration("since_last_wait", sinceLast),
	)

	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for _, b := range backends {
		g.Go(func() error {
			return b.WaitIdle(gctx)
		})
	}
	err := g.Wait()
	waited := time.Since(start)

	c.mu.Lock()
	c.lastWait = time.Now()
	c.mu.Unlock()

	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		c.logger.Warn("drain deadline reached with work outstanding",
			slog.Duration("waited", waited),
		)
		return waited, nil
	}
	if err != nil {
		return waited, err
	}

	c.logger.Info("all backends drained",
		slog.Duration("waited", waited),
		slog.Duration("since_last_wait", sinceLast),
	)

	c.hooks.EmitDrained(ctx, waited)
	return waited, nil
}

// Close closes every backend, draining within the context deadline.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	backends := make([]Backend, len(c.backends))
	copy(backends, c.backends)
	c.mu.Unlock()

	var firstErr error
	for _, b := range backends {
		if err := b.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
