package scribe

import (
	"log/slog"

	"github.com/xraph/scribe/hook"
	"github.com/xraph/scribe/limit"
	"github.com/xraph/scribe/middleware"
	"github.com/xraph/scribe/store"
)

// Option configures a Recorder.
type Option func(*Recorder) error

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(r *Recorder) error {
		r.config = cfg
		return nil
	}
}

// WithName sets the recorder's name used in logs.
func WithName(name string) Option {
	return func(r *Recorder) error {
		r.config.Name = name
		return nil
	}
}

// WithRoot sets the output directory handed to file-writing handlers.
func WithRoot(path string) Option {
	return func(r *Recorder) error {
		r.config.Root = path
		return nil
	}
}

// WithLogger sets the structured logger for the recorder.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) error {
		r.logger = l
		return nil
	}
}

// WithStore sets the series store. Defaults to the in-memory store.
func WithStore(s store.Store) Option {
	return func(r *Recorder) error {
		r.store = s
		return nil
	}
}

// WithThreadPool sets the thread-mode pool size and queue capacity.
// Zero values keep the defaults.
func WithThreadPool(workers, queueBound int) Option {
	return func(r *Recorder) error {
		if workers > 0 {
			r.config.ThreadWorkers = workers
		}
		if queueBound > 0 {
			r.config.ThreadQueueBound = queueBound
		}
		return nil
	}
}

// WithProcessPool sets the process-mode pool size and frame codec.
// Zero values keep the defaults.
func WithProcessPool(workers int, codec string) Option {
	return func(r *Recorder) error {
		if workers > 0 {
			r.config.ProcessWorkers = workers
		}
		if codec != "" {
			r.config.ProcessCodec = codec
		}
		return nil
	}
}

// WithWorkerCommand launches worker processes with the given argv
// instead of re-executing the current binary. The command must speak
// the frame protocol on stdin/stdout; see ServeWorker.
func WithWorkerCommand(path string, args ...string) Option {
	return func(r *Recorder) error {
		r.config.WorkerCommand = append([]string{path}, args...)
		return nil
	}
}

// WithHooks registers reporting hooks in addition to the default
// slog reporter.
func WithHooks(hooks ...hook.Hook) Option {
	return func(r *Recorder) error {
		r.extraHooks = append(r.extraHooks, hooks...)
		return nil
	}
}

// WithMiddleware appends invocation middleware after the built-in
// Recover and Logging middleware.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(r *Recorder) error {
		r.extraMW = append(r.extraMW, mws...)
		return nil
	}
}

// WithLimits configures per-entry rate and concurrency limits applied by
// the thread-mode pool.
func WithLimits(configs ...limit.Config) Option {
	return func(r *Recorder) error {
		r.limits = limit.NewManager(configs...)
		return nil
	}
}
