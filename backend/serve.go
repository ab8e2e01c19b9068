package backend

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/xraph/scribe/handler"
)

// IsWorkerProcess reports whether this process was launched as a worker
// by a ProcessPool. Programs using process-mode entries must check this
// early in main and call ServeWorker when it returns true.
func IsWorkerProcess() bool {
	return os.Getenv(workerEnvVar) != ""
}

// ServeWorker runs the worker loop: read invoke frames from stdin, run
// the named handler, write result frames to stdout. The registry must
// contain the same named handlers the parent registered. ServeWorker
// returns when the parent closes the pipe.
func ServeWorker(handlers *handler.Registry) error {
	codec := GetCodec(os.Getenv(codecEnvVar))
	return ServeStream(os.Stdin, os.Stdout, codec, handlers)
}

// ServeStream runs the worker loop over arbitrary pipe endpoints. It is
// the transport-agnostic core of ServeWorker.
func ServeStream(r io.Reader, w io.Writer, codec Codec, handlers *handler.Registry) error {
	in := bufio.NewReader(r)
	for {
		frame, err := ReadFrame(in, codec)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("scribe: read invoke frame: %w", err)
		}
		if frame.Type != FrameInvoke {
			continue
		}

		resp := runFrame(context.Background(), handlers, frame)
		if err := WriteFrame(w, codec, resp); err != nil {
			return fmt.Errorf("scribe: write reply frame: %w", err)
		}
	}
}

// runFrame executes one invoke frame. Handler errors and panics become
// error frames, never a worker crash.
func runFrame(ctx context.Context, handlers *handler.Registry, frame *Frame) *Frame {
	fn, ok := handlers.Get(frame.Handler)
	if !ok {
		return NewErrorFrame(frame.ID, fmt.Errorf("%w: %q", handler.ErrNotRegistered, frame.Handler))
	}

	err := func() (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				retErr = fmt.Errorf("panic in handler %s: %v", frame.Handler, r)
			}
		}()
		return fn(ctx, frame.Record())
	}()

	if err != nil {
		return NewErrorFrame(frame.ID, err)
	}
	return NewResultFrame(frame.ID)
}
