package backend

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/scribe/backoff"
	"github.com/xraph/scribe/entry"
	"github.com/xraph/scribe/limit"
)

const (
	// DefaultThreadWorkers matches the historical default worker count.
	DefaultThreadWorkers = 5

	// DefaultQueueBound is the default dispatch queue capacity. Submit
	// blocks once this many invocations are queued.
	DefaultQueueBound = 1024
)

// ThreadPool runs invocations on a fixed set of worker goroutines fed by
// a bounded queue. Submit returns as soon as the invocation is queued and
// blocks only when the queue is full.
type ThreadPool struct {
	invoker   *Invoker
	limits    *limit.Manager
	limitPoll backoff.Strategy
	logger    *slog.Logger

	workers    int
	queueBound int
	queue      chan *entry.Invocation

	mu      sync.Mutex
	track   *tracker
	running bool
	closed  bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// ThreadPoolOption configures a ThreadPool.
type ThreadPoolOption func(*ThreadPool)

// WithWorkers sets the number of worker goroutines.
func WithWorkers(n int) ThreadPoolOption {
	return func(p *ThreadPool) { p.workers = n }
}

// WithQueueBound sets the dispatch queue capacity.
func WithQueueBound(n int) ThreadPoolOption {
	return func(p *ThreadPool) { p.queueBound = n }
}

// WithLimits sets the per-entry rate and concurrency manager.
func WithLimits(m *limit.Manager) ThreadPoolOption {
	return func(p *ThreadPool) { p.limits = m }
}

// NewThreadPool creates a worker-goroutine backend.
func NewThreadPool(invoker *Invoker, logger *slog.Logger, opts ...ThreadPoolOption) *ThreadPool {
	p := &ThreadPool{
		invoker:    invoker,
		limitPoll:  backoff.NewConstant(10 * time.Millisecond),
		logger:     logger,
		workers:    DefaultThreadWorkers,
		queueBound: DefaultQueueBound,
		track:      newTracker(),
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.queue = make(chan *entry.Invocation, p.queueBound)
	return p
}

var _ Backend = (*ThreadPool)(nil)

func (p *ThreadPool) Mode() entry.Mode { return entry.ModeThread }

// Start launches the worker goroutines. It returns immediately.
func (p *ThreadPool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	p.logger.Info("thread pool starting",
		slog.Int("workers", p.workers),
		slog.Int("queue_bound", p.queueBound),
	)

	for range p.workers {
		p.wg.Add(1)
		go p.workLoop()
	}

	return nil
}

// Submit queues an invocation for execution. It blocks while the queue is
// full and returns once the invocation has been accepted.
func (p *ThreadPool) Submit(ctx context.Context, inv *entry.Invocation) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.track.submitted()
	p.mu.Unlock()

	select {
	case p.queue <- inv:
		return nil
	case <-ctx.Done():
		p.mu.Lock()
		p.track.dropped()
		p.mu.Unlock()
		return ctx.Err()
	case <-p.stopCh:
		p.mu.Lock()
		p.track.dropped()
		p.mu.Unlock()
		return ErrClosed
	}
}

func (p *ThreadPool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.track.pending
}

func (p *ThreadPool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.track.inFlight
}

func (p *ThreadPool) Idle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.track.pending+p.track.inFlight == 0
}

// WaitIdle blocks until every accepted invocation has finished or ctx is
// done.
func (p *ThreadPool) WaitIdle(ctx context.Context) error {
	for {
		p.mu.Lock()
		if p.track.pending+p.track.inFlight == 0 {
			p.mu.Unlock()
			return nil
		}
		ch := p.track.idleCh
		p.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close drains accepted work within the context deadline, then stops the
// workers. If the deadline expires first, queued invocations are abandoned.
func (p *ThreadPool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.logger.Info("thread pool stopping")

	drainErr := p.WaitIdle(ctx)

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("thread pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("thread pool shutdown timed out, abandoning queued work")
		<-done
	}

	return drainErr
}

// workLoop is run by each worker goroutine.
func (p *ThreadPool) workLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case inv := <-p.queue:
			p.run(inv)
		}
	}
}

func (p *ThreadPool) run(inv *entry.Invocation) {
	// Check per-entry rate limit and concurrency before starting.
	if p.limits != nil {
		for attempt := 1; !p.limits.Acquire(inv.Entry); attempt++ {
			select {
			case <-p.stopCh:
				p.mu.Lock()
				p.track.dropped()
				p.mu.Unlock()
				return
			case <-time.After(p.limitPoll.Delay(attempt)):
			}
		}
		defer p.limits.Release(inv.Entry)
	}

	p.mu.Lock()
	p.track.started()
	p.mu.Unlock()

	p.invoker.Invoke(context.Background(), inv)

	p.mu.Lock()
	p.track.finished()
	p.mu.Unlock()
}
