package backend

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/xraph/scribe/entry"
	"github.com/xraph/scribe/handler"
	"github.com/xraph/scribe/store"
)

// FrameType identifies the frame category.
type FrameType string

const (
	FrameInvoke FrameType = "invoke"
	FrameResult FrameType = "result"
	FrameErr    FrameType = "error"
)

// Frame is the message envelope exchanged between the parent process and
// its worker processes. Every message on the worker pipe is a Frame.
type Frame struct {
	// ID carries the invocation ID for invoke frames and echoes it back
	// on result and error frames.
	ID string `json:"id" msgpack:"id"`

	// Type categorizes the frame.
	Type FrameType `json:"type" msgpack:"type"`

	// Entry is the raw entry name.
	Entry string `json:"entry,omitempty" msgpack:"entry,omitempty"`

	// Kind is the triggering operation (push, reset, dump).
	Kind string `json:"kind,omitempty" msgpack:"kind,omitempty"`

	// Tick is the data key of the triggering push.
	Tick int64 `json:"tick,omitempty" msgpack:"tick,omitempty"`

	// Handler is the registered handler name to run.
	Handler string `json:"handler,omitempty" msgpack:"handler,omitempty"`

	// Args carries the handler's bound arguments.
	Args map[string]any `json:"args,omitempty" msgpack:"args,omitempty"`

	// Payload is the pushed value.
	Payload any `json:"payload,omitempty" msgpack:"payload,omitempty"`

	// Series is the entry's data snapshot taken at dispatch time.
	Series []store.Point `json:"series,omitempty" msgpack:"series,omitempty"`

	// Root is the output directory for file-writing handlers.
	Root string `json:"root,omitempty" msgpack:"root,omitempty"`

	// Worker identifies the worker process the frame was addressed to,
	// for correlating wire traffic with pool logs.
	Worker string `json:"worker,omitempty" msgpack:"worker,omitempty"`

	// Error carries error details for error frames.
	Error *ErrorDetail `json:"error,omitempty" msgpack:"error,omitempty"`

	// Timestamp records when this frame was created.
	Timestamp time.Time `json:"ts" msgpack:"ts"`
}

// ErrorDetail describes a handler failure in an error frame.
type ErrorDetail struct {
	Message string `json:"message" msgpack:"message"`
}

// NewInvokeFrame builds the wire form of an invocation.
func NewInvokeFrame(inv *entry.Invocation, root string) *Frame {
	return &Frame{
		ID:        inv.ID.String(),
		Type:      FrameInvoke,
		Entry:     inv.Entry,
		Kind:      string(inv.Kind),
		Tick:      inv.Tick,
		Handler:   inv.Spec.Name,
		Args:      inv.Spec.Args,
		Payload:   inv.Payload,
		Series:    inv.Series,
		Root:      root,
		Timestamp: time.Now().UTC(),
	}
}

// NewResultFrame acknowledges a completed invocation.
func NewResultFrame(id string) *Frame {
	return &Frame{
		ID:        id,
		Type:      FrameResult,
		Timestamp: time.Now().UTC(),
	}
}

// NewErrorFrame reports a failed invocation.
func NewErrorFrame(id string, err error) *Frame {
	return &Frame{
		ID:        id,
		Type:      FrameErr,
		Error:     &ErrorDetail{Message: err.Error()},
		Timestamp: time.Now().UTC(),
	}
}

// Record rebuilds the handler-facing view on the worker side.
func (f *Frame) Record() handler.Record {
	return handler.Record{
		Entry:   f.Entry,
		Kind:    handler.Kind(f.Kind),
		Tick:    f.Tick,
		Payload: f.Payload,
		Args:    handler.Args(f.Args),
		Root:    f.Root,
		Series:  f.Series,
	}
}

// maxFrameSize bounds a single frame on the worker pipe.
const maxFrameSize = 64 << 20

// ErrFrameTooLarge is returned for frames exceeding the size bound.
var ErrFrameTooLarge = errors.New("scribe: frame exceeds size limit")

// WriteFrame encodes a frame and writes it with a 4-byte big-endian
// length prefix.
func WriteFrame(w io.Writer, codec Codec, f *Frame) error {
	data, err := codec.Encode(f)
	if err != nil {
		return fmt.Errorf("scribe: encode frame: %w", err)
	}
	if len(data) > maxFrameSize {
		return ErrFrameTooLarge
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(data)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ReadFrame reads one length-prefixed frame.
func ReadFrame(r io.Reader, codec Codec) (*Frame, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(prefix[:])
	if size > maxFrameSize {
		return nil, ErrFrameTooLarge
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return codec.Decode(data)
}
