package scribe

import (
	"time"

	"github.com/xraph/scribe/backend"
)

// Config holds configuration for the Recorder.
type Config struct {
	// Name identifies this recorder in logs.
	Name string

	// Root is the output directory handed to file-writing handlers.
	// Entry names containing slashes become subdirectories of Root.
	Root string

	// ThreadWorkers is the goroutine count of the thread-mode pool.
	ThreadWorkers int

	// ThreadQueueBound is the thread pool's dispatch queue capacity.
	// Push blocks once this many invocations are queued.
	ThreadQueueBound int

	// ProcessWorkers is the child process count of the process-mode pool.
	ProcessWorkers int

	// ProcessCodec names the frame codec spoken to worker processes
	// ("msgpack" or "json").
	ProcessCodec string

	// WorkerCommand, when set, launches worker processes with this argv
	// instead of re-executing the current binary.
	WorkerCommand []string

	// ShutdownTimeout is the maximum time Close waits for graceful drain
	// when the caller's context has no deadline of its own.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Name:             "scribe",
		ThreadWorkers:    backend.DefaultThreadWorkers,
		ThreadQueueBound: backend.DefaultQueueBound,
		ProcessWorkers:   backend.DefaultProcessWorkers,
		ProcessCodec:     backend.CodecNameMsgpack,
		ShutdownTimeout:  30 * time.Second,
	}
}
