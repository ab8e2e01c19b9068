package scribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/scribe/backend"
	"github.com/xraph/scribe/entry"
	"github.com/xraph/scribe/handler"
	"github.com/xraph/scribe/hook"
	"github.com/xraph/scribe/limit"
	"github.com/xraph/scribe/middleware"
	"github.com/xraph/scribe/namepath"
	"github.com/xraph/scribe/store"
	"github.com/xraph/scribe/store/memory"
)

// Recorder is the central coordinator: it owns the entry registry, the
// series store, the execution backends, and the failure side channel.
//
// Create one with New and functional options, declare entries, then push.
// A handler that fails never makes Push/Reset/Dump fail — failures are
// reported through the hook side channel. Only caller misuse (unknown
// entry, duplicate declare, locked configuration) propagates.
type Recorder struct {
	config   Config
	logger   *slog.Logger
	store    store.Store
	entries  *entry.Registry
	handlers *handler.Registry
	hooks    *hook.Registry
	limits   *limit.Manager

	extraHooks []hook.Hook
	extraMW    []middleware.Middleware

	invoker    *backend.Invoker
	inline     *backend.Inline
	controller *backend.Controller

	mu      sync.Mutex
	threads *backend.ThreadPool
	procs   *backend.ProcessPool
	closed  bool

	silent atomic.Bool
}

// New creates a Recorder with the given options.
func New(opts ...Option) (*Recorder, error) {
	r := &Recorder{
		config:   DefaultConfig(),
		logger:   slog.Default(),
		entries:  entry.NewRegistry(),
		handlers: handler.NewRegistry(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	if r.store == nil {
		r.store = memory.New()
	}

	handler.RegisterBuiltins(r.handlers)

	r.hooks = hook.NewRegistry(r.logger)
	r.hooks.Register(hook.NewReporter(r.logger))
	for _, h := range r.extraHooks {
		r.hooks.Register(h)
	}

	mws := append(
		[]middleware.Middleware{
			middleware.Recover(r.logger),
			middleware.Logging(r.logger),
		},
		r.extraMW...,
	)
	r.invoker = backend.NewInvoker(r.handlers, r.hooks, r.logger, mws...)
	r.invoker.SetRoot(r.config.Root)

	r.inline = backend.NewInline(r.invoker)
	r.controller = backend.NewController(r.hooks, r.logger, r.inline)

	return r, nil
}

// Logger returns the recorder's logger.
func (r *Recorder) Logger() *slog.Logger { return r.logger }

// Config returns a copy of the recorder's configuration.
func (r *Recorder) Config() Config { return r.config }

// Store returns the series store.
func (r *Recorder) Store() store.Store { return r.store }

// Handlers returns the named handler registry. Programs using process-mode
// entries must register their handlers here (and serve them in the worker,
// see ServeWorker) so names resolve on both sides of the boundary.
func (r *Recorder) Handlers() *handler.Registry { return r.handlers }

// Hooks returns the reporting hook registry.
func (r *Recorder) Hooks() *hook.Registry { return r.hooks }

// Tap registers and returns a bounded failure tap. Buffer <= 0 uses the
// default. Close the tap when done consuming.
func (r *Recorder) Tap(buffer int) *hook.Tap {
	if buffer <= 0 {
		buffer = hook.DefaultTapBuffer
	}
	t := hook.NewTap(buffer)
	r.hooks.Register(t)
	return t
}

// ── Configuration (locked after the first declare) ──────────────────

// SetRoot sets the output directory. Allowed only while no entry has been
// declared.
func (r *Recorder) SetRoot(path string) error {
	if err := r.configMutable(); err != nil {
		return err
	}
	r.config.Root = path
	r.invoker.SetRoot(path)
	r.mu.Lock()
	if r.procs != nil {
		r.procs.SetRoot(path)
	}
	r.mu.Unlock()
	return nil
}

// ConfigureThreadPool sets the thread-mode pool size and queue capacity.
// Allowed only while no entry has been declared.
func (r *Recorder) ConfigureThreadPool(workers, queueBound int) error {
	if err := r.configMutable(); err != nil {
		return err
	}
	if workers > 0 {
		r.config.ThreadWorkers = workers
	}
	if queueBound > 0 {
		r.config.ThreadQueueBound = queueBound
	}
	return nil
}

// ConfigureProcessPool sets the process-mode pool size and codec.
// Allowed only while no entry has been declared.
func (r *Recorder) ConfigureProcessPool(workers int, codec string) error {
	if err := r.configMutable(); err != nil {
		return err
	}
	if workers > 0 {
		r.config.ProcessWorkers = workers
	}
	if codec != "" {
		r.config.ProcessCodec = codec
	}
	return nil
}

func (r *Recorder) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Recorder) configMutable() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRecorderClosed
	}
	if !r.entries.Empty() {
		return ErrConfigLocked
	}
	return nil
}

// ── Declare ─────────────────────────────────────────────────────────

// Declare registers an entry: a name, its on-push handlers, and options
// for mode and the on-reset/on-dump handler lists. The mode is fixed for
// the entry's lifetime. Declaring a name twice fails with
// ErrDuplicateEntry and leaves the existing entry untouched.
func (r *Recorder) Declare(ctx context.Context, name string, onPush []handler.Spec, opts ...entry.Option) error {
	if r.isClosed() {
		return ErrRecorderClosed
	}

	e := entry.New(name, onPush, opts...)

	// Process-mode handlers cross a serialization boundary, so they must
	// be registered by name. Reject bare funcs here rather than at dispatch.
	if e.Mode == entry.ModeProcess {
		for _, kind := range []handler.Kind{handler.KindPush, handler.KindReset, handler.KindDump} {
			for _, spec := range e.Specs(kind) {
				if spec.Name == "" {
					return fmt.Errorf("%w: entry %q, handler %s", ErrUnnamedHandler, name, spec.Display())
				}
			}
		}
	}

	if err := r.entries.Declare(e); err != nil {
		return err
	}
	if err := r.store.DeclareEntry(ctx, name); err != nil {
		return fmt.Errorf("scribe: declare entry %q: %w", name, err)
	}

	// Namespaced entries get their subdirectory created up front so
	// file-writing handlers need no directory logic of their own.
	if r.config.Root != "" && strings.Contains(name, "/") {
		if err := namepath.Ensure(r.config.Root, name); err != nil {
			return fmt.Errorf("scribe: create namespace dir for %q: %w", name, err)
		}
	}

	r.hooks.EmitEntryDeclared(ctx, e)

	r.logger.Info("entry declared",
		slog.String("recorder", r.config.Name),
		slog.String("entry", name),
		slog.String("mode", string(e.Mode)),
		slog.Int("on_push", len(e.OnPush)),
		slog.Int("on_reset", len(e.OnReset)),
		slog.Int("on_dump", len(e.OnDump)),
	)

	return nil
}

// ── Dispatch operations ─────────────────────────────────────────────

// Push appends a value to the entry's series at the next tick and runs
// the entry's on-push handlers according to its mode. For Sync entries
// Push returns after every handler has run; for pooled entries it returns
// once the invocations are queued.
func (r *Recorder) Push(ctx context.Context, name string, value any) error {
	if r.isClosed() {
		return ErrRecorderClosed
	}
	e, err := r.entries.Get(name)
	if err != nil {
		return err
	}
	if r.silent.Load() {
		return nil
	}

	// The store assigns the tick atomically with the append, so
	// concurrent pushes to one entry never collide on a tick.
	tick, err := r.store.AppendNext(ctx, name, value)
	if err != nil {
		return err
	}
	return r.dispatch(ctx, e, handler.KindPush, tick, value)
}

// PushAt is Push with a caller-chosen tick. Pushing an existing tick
// overwrites that point; the entry's append counter still advances.
func (r *Recorder) PushAt(ctx context.Context, name string, value any, tick int64) error {
	if r.isClosed() {
		return ErrRecorderClosed
	}
	e, err := r.entries.Get(name)
	if err != nil {
		return err
	}
	if r.silent.Load() {
		return nil
	}

	if err := r.store.Append(ctx, name, store.Point{Tick: tick, Value: value}); err != nil {
		return err
	}
	return r.dispatch(ctx, e, handler.KindPush, tick, value)
}

// Reset runs the entry's on-reset handlers and then clears its series.
// Handlers receive a snapshot of the series taken before the clear, so
// async reset handlers still see the data they are summarizing.
func (r *Recorder) Reset(ctx context.Context, name string) error {
	if r.isClosed() {
		return ErrRecorderClosed
	}
	e, err := r.entries.Get(name)
	if err != nil {
		return err
	}
	if r.silent.Load() {
		return nil
	}

	if err := r.dispatch(ctx, e, handler.KindReset, 0, nil); err != nil {
		return err
	}
	return r.store.Clear(ctx, name)
}

// Dump runs the entry's on-dump handlers against the current series.
func (r *Recorder) Dump(ctx context.Context, name string) error {
	if r.isClosed() {
		return ErrRecorderClosed
	}
	e, err := r.entries.Get(name)
	if err != nil {
		return err
	}
	if r.silent.Load() {
		return nil
	}
	return r.dispatch(ctx, e, handler.KindDump, 0, nil)
}

// DumpAll runs on-dump handlers for every declared entry, in declaration
// order.
func (r *Recorder) DumpAll(ctx context.Context) error {
	for _, name := range r.entries.Names() {
		if err := r.Dump(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// dispatch submits one invocation per handler spec, preserving handler
// registration order at enqueue time. Completion order across handlers,
// entries, and workers is unspecified.
func (r *Recorder) dispatch(ctx context.Context, e *entry.Entry, kind handler.Kind, tick int64, payload any) error {
	specs := e.Specs(kind)
	if len(specs) == 0 {
		return nil
	}

	// Snapshot at dispatch time: reset handlers see pre-clear data and
	// worker processes get a self-contained copy.
	series, err := r.store.Series(ctx, e.Name)
	if err != nil && !errors.Is(err, store.ErrEntryNotDeclared) {
		return err
	}

	b, err := r.backendFor(ctx, e.Mode)
	if err != nil {
		return err
	}

	for _, spec := range specs {
		inv := entry.NewInvocation(e.Name, kind, tick, payload, spec, series)
		if err := b.Submit(ctx, inv); err != nil {
			return err
		}
	}
	return nil
}

// backendFor returns the backend for a mode, starting pools lazily on
// first use.
func (r *Recorder) backendFor(ctx context.Context, mode entry.Mode) (backend.Backend, error) {
	switch mode {
	case entry.ModeSync:
		return r.inline, nil
	case entry.ModeThread:
		return r.threadBackend(ctx)
	case entry.ModeProcess:
		return r.processBackend(ctx)
	default:
		return nil, fmt.Errorf("scribe: unknown dispatch mode %q", mode)
	}
}

func (r *Recorder) threadBackend(ctx context.Context) (backend.Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRecorderClosed
	}
	if r.threads == nil {
		opts := []backend.ThreadPoolOption{
			backend.WithWorkers(r.config.ThreadWorkers),
			backend.WithQueueBound(r.config.ThreadQueueBound),
		}
		if r.limits != nil {
			opts = append(opts, backend.WithLimits(r.limits))
		}
		p := backend.NewThreadPool(r.invoker, r.logger, opts...)
		if err := p.Start(ctx); err != nil {
			return nil, err
		}
		r.threads = p
		r.controller.Add(p)
	}
	return r.threads, nil
}

func (r *Recorder) processBackend(ctx context.Context) (backend.Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRecorderClosed
	}
	if r.procs == nil {
		opts := []backend.ProcessPoolOption{
			backend.WithProcessWorkers(r.config.ProcessWorkers),
			backend.WithCodec(backend.GetCodec(r.config.ProcessCodec)),
		}
		if len(r.config.WorkerCommand) > 0 {
			opts = append(opts, backend.WithWorkerCommand(
				r.config.WorkerCommand[0], r.config.WorkerCommand[1:]...))
		}
		p := backend.NewProcessPool(r.hooks, r.logger, opts...)
		p.SetRoot(r.config.Root)
		if err := p.Start(ctx); err != nil {
			return nil, err
		}
		r.procs = p
		r.controller.Add(p)
	}
	return r.procs, nil
}

// ── Drain, readout, lifecycle ───────────────────────────────────────

// Wait blocks until every backend has finished its accepted invocations
// or ctx's deadline passes, and returns how long it waited. Hitting the
// deadline is a normal return. Wait is not a fence: work pushed
// concurrently by other goroutines may extend the wait or escape it.
func (r *Recorder) Wait(ctx context.Context) (time.Duration, error) {
	return r.controller.Wait(ctx)
}

// Series returns the entry's data points ordered by tick.
func (r *Recorder) Series(ctx context.Context, name string) ([]store.Point, error) {
	if _, err := r.entries.Get(name); err != nil {
		return nil, err
	}
	return r.store.Series(ctx, name)
}

// Len returns how many values have been appended to the entry since its
// declaration or last reset.
func (r *Recorder) Len(ctx context.Context, name string) (int, error) {
	if _, err := r.entries.Get(name); err != nil {
		return 0, err
	}
	return r.store.Len(ctx, name)
}

// Silent toggles silent mode. While silent, Push/PushAt/Reset/Dump drop
// everything: no series bookkeeping, no handler runs, no reports.
func (r *Recorder) Silent(on bool) {
	r.silent.Store(on)
	r.logger.Info("silent mode changed",
		slog.String("recorder", r.config.Name),
		slog.Bool("silent", on),
	)
}

// Close drains the pools within ShutdownTimeout (or ctx's own deadline if
// it has one), emits the Shutdown hook, and closes the store. After Close
// every operation fails with ErrRecorderClosed.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.ShutdownTimeout)
		defer cancel()
	}

	drainErr := r.controller.Close(ctx)

	r.hooks.EmitShutdown(ctx)

	if err := r.store.Close(); err != nil {
		r.logger.Error("store close error", slog.String("error", err.Error()))
		if drainErr == nil {
			drainErr = err
		}
	}

	r.logger.Info("recorder closed", slog.String("recorder", r.config.Name))
	return drainErr
}

// ── Worker process plumbing ─────────────────────────────────────────

// IsWorkerProcess reports whether this process was launched as a scribe
// worker by a process-mode pool.
func IsWorkerProcess() bool { return backend.IsWorkerProcess() }

// ServeWorker runs the worker loop against this recorder's handler
// registry. Programs with process-mode entries call it from main when
// IsWorkerProcess reports true, before any other work:
//
//	rec, _ := scribe.New()
//	registerHandlers(rec.Handlers())
//	if scribe.IsWorkerProcess() {
//	    if err := rec.ServeWorker(); err != nil {
//	        log.Fatal(err)
//	    }
//	    return
//	}
func (r *Recorder) ServeWorker() error {
	return backend.ServeWorker(r.handlers)
}
