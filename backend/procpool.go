package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/xraph/scribe/backoff"
	"github.com/xraph/scribe/entry"
	"github.com/xraph/scribe/handler"
	"github.com/xraph/scribe/hook"
	"github.com/xraph/scribe/id"
)

const (
	// workerEnvVar marks a process launched as a scribe worker.
	workerEnvVar = "SCRIBE_PROCESS_WORKER"

	// codecEnvVar tells the worker which frame codec the parent speaks.
	codecEnvVar = "SCRIBE_PROCESS_CODEC"

	// DefaultProcessWorkers is the default worker process count.
	DefaultProcessWorkers = 2
)

// ProcessPool runs invocations in child worker processes. The pool
// re-executes the current binary with an environment marker; the child is
// expected to detect the marker (see IsWorkerProcess) and call ServeWorker
// with the same handler registry the parent uses.
//
// Only named handlers can cross the process boundary, and payloads must
// serialize with the configured codec. Both are checked at Submit;
// violations are reported through the hook side channel and the handler
// never runs.
type ProcessPool struct {
	hooks   *hook.Registry
	logger  *slog.Logger
	codec   Codec
	respawn backoff.Strategy
	command []string

	workers    int
	queueBound int
	queue      chan *entry.Invocation

	mu      sync.Mutex
	track   *tracker
	root    string
	running bool
	closed  bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// ProcessPoolOption configures a ProcessPool.
type ProcessPoolOption func(*ProcessPool)

// WithProcessWorkers sets the number of worker processes.
func WithProcessWorkers(n int) ProcessPoolOption {
	return func(p *ProcessPool) { p.workers = n }
}

// WithProcessQueueBound sets the dispatch queue capacity.
func WithProcessQueueBound(n int) ProcessPoolOption {
	return func(p *ProcessPool) { p.queueBound = n }
}

// WithCodec sets the frame codec spoken on the worker pipes.
func WithCodec(c Codec) ProcessPoolOption {
	return func(p *ProcessPool) { p.codec = c }
}

// WithRespawnBackoff sets the delay strategy applied between failed
// attempts to spawn a worker process.
func WithRespawnBackoff(s backoff.Strategy) ProcessPoolOption {
	return func(p *ProcessPool) { p.respawn = s }
}

// WithWorkerCommand sets the command used to launch worker processes.
// The default re-executes the current binary, which works when the host
// program calls ServeWorker under IsWorkerProcess; a dedicated worker
// binary can be pointed at instead.
func WithWorkerCommand(path string, args ...string) ProcessPoolOption {
	return func(p *ProcessPool) { p.command = append([]string{path}, args...) }
}

// NewProcessPool creates a worker-process backend.
func NewProcessPool(hooks *hook.Registry, logger *slog.Logger, opts ...ProcessPoolOption) *ProcessPool {
	p := &ProcessPool{
		hooks:      hooks,
		logger:     logger,
		codec:      &MsgpackCodec{},
		respawn:    backoff.DefaultRespawn(),
		workers:    DefaultProcessWorkers,
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

var _ Backend = (*ProcessPool)(nil)

func (p *ProcessPool) Mode() entry.Mode { return entry.ModeProcess }

// SetRoot sets the output directory sent to worker processes.
func (p *ProcessPool) SetRoot(root string) {
	p.mu.Lock()
	p.root = root
	p.mu.Unlock()
}

// Start launches the worker goroutines; each owns one child process.
func (p *ProcessPool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	p.logger.Info("process pool starting",
		slog.Int("workers", p.workers),
		slog.String("codec", p.codec.Name()),
	)

	for range p.workers {
		p.wg.Add(1)
		go p.workLoop()
	}

	return nil
}

// Submit queues an invocation for delivery to a worker process. Handler
// name and payload serializability are checked here: a violation is
// reported as a delivery failure and Submit returns nil, because the
// failure belongs to the invocation, not the backend.
func (p *ProcessPool) Submit(ctx context.Context, inv *entry.Invocation) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	root := p.root
	p.mu.Unlock()

	if inv.Spec.Name == "" {
		p.deliveryFailed(ctx, inv, fmt.Errorf("%w: %s", ErrUnnamedHandler, inv.Spec.Display()))
		return nil
	}
	if _, err := p.codec.Encode(NewInvokeFrame(inv, root)); err != nil {
		p.deliveryFailed(ctx, inv, fmt.Errorf("%w: %v", ErrNotSerializable, err))
		return nil
	}

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

func (p *ProcessPool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.track.pending
}

func (p *ProcessPool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.track.inFlight
}

func (p *ProcessPool) Idle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.track.pending+p.track.inFlight == 0
}

// WaitIdle blocks until every accepted invocation has finished or ctx is
// done.
func (p *ProcessPool) WaitIdle(ctx context.Context) error {
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
// workers and shuts down their child processes.
func (p *ProcessPool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.logger.Info("process pool stopping")

	drainErr := p.WaitIdle(ctx)

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("process pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("process pool shutdown timed out")
		<-done
	}

	return drainErr
}

// procWorker is one child process with its pipe endpoints.
type procWorker struct {
	id     id.WorkerID
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Reader
}

func (p *ProcessPool) spawnWorker() (*procWorker, error) {
	argv := p.command
	if len(argv) == 0 {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("scribe: locate executable: %w", err)
		}
		argv = []string{exe}
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(),
		workerEnvVar+"=1",
		codecEnvVar+"="+p.codec.Name(),
	)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("scribe: start worker process: %w", err)
	}

	wid := id.NewWorkerID()
	p.logger.Debug("worker process started",
		slog.String("worker_id", wid.String()),
		slog.Int("pid", cmd.Process.Pid),
	)
	return &procWorker{id: wid, cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

// shutdown closes the worker's stdin so it exits on EOF, escalating to a
// kill if it does not.
func (w *procWorker) shutdown() {
	_ = w.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- w.cmd.Wait() }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = w.cmd.Process.Kill()
		<-done
	}
}

// workLoop is run by each worker goroutine. The child process is spawned
// lazily and respawned after a pipe failure, with backoff between
// consecutive failures so a crash-looping child does not spin the loop.
func (p *ProcessPool) workLoop() {
	defer p.wg.Done()

	var w *procWorker
	defer func() {
		if w != nil {
			w.shutdown()
		}
	}()

	failures := 0
	for {
		select {
		case <-p.stopCh:
			return
		case inv := <-p.queue:
			w = p.deliver(w, inv)
			if w != nil {
				failures = 0
				continue
			}
			failures++
			select {
			case <-time.After(p.respawn.Delay(failures)):
			case <-p.stopCh:
				return
			}
		}
	}
}

// deliver sends one invocation to the child process and reads the reply.
// It returns the worker to use next, nil after a pipe failure so the loop
// respawns.
func (p *ProcessPool) deliver(w *procWorker, inv *entry.Invocation) *procWorker {
	p.mu.Lock()
	p.track.started()
	root := p.root
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.track.finished()
		p.mu.Unlock()
	}()

	if w == nil {
		var err error
		w, err = p.spawnWorker()
		if err != nil {
			p.deliveryFailed(context.Background(), inv, err)
			return nil
		}
	}

	p.hooks.EmitInvocationStarted(context.Background(), inv)
	start := time.Now()

	frame := NewInvokeFrame(inv, root)
	frame.Worker = w.id.String()
	if err := WriteFrame(w.stdin, p.codec, frame); err != nil {
		p.deliveryFailed(context.Background(), inv, fmt.Errorf("scribe: write to worker %s: %w", w.id, err))
		w.shutdown()
		return nil
	}

	resp, err := ReadFrame(w.stdout, p.codec)
	if err != nil {
		p.deliveryFailed(context.Background(), inv, fmt.Errorf("scribe: read from worker %s: %w", w.id, err))
		w.shutdown()
		return nil
	}

	elapsed := time.Since(start)

	if resp.Type == FrameErr && resp.Error != nil {
		f := &handler.Failure{
			Invocation: inv.ID,
			Entry:      inv.Entry,
			Handler:    inv.Spec.Display(),
			Kind:       inv.Kind,
			Err:        errors.New(resp.Error.Message),
			At:         time.Now().UTC(),
		}
		p.hooks.EmitInvocationFailed(context.Background(), f)
		return w
	}

	p.hooks.EmitInvocationCompleted(context.Background(), inv, elapsed)
	return w
}

// deliveryFailed reports an invocation that never reached its handler.
func (p *ProcessPool) deliveryFailed(ctx context.Context, inv *entry.Invocation, err error) {
	f := &handler.Failure{
		Invocation: inv.ID,
		Entry:      inv.Entry,
		Handler:    inv.Spec.Display(),
		Kind:       inv.Kind,
		Err:        err,
		At:         time.Now().UTC(),
	}

	p.logger.Warn("invocation could not be delivered",
		slog.String("invocation_id", inv.ID.String()),
		slog.String("entry", inv.Entry),
		slog.String("error", err.Error()),
	)

	p.hooks.EmitDeliveryFailed(ctx, f)
}
