package backend_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/xraph/scribe/backend"
	"github.com/xraph/scribe/entry"
	"github.com/xraph/scribe/handler"
	"github.com/xraph/scribe/id"
	"github.com/xraph/scribe/store"
)

func TestFrame_RoundTrip(t *testing.T) {
	codecs := []backend.Codec{&backend.JSONCodec{}, &backend.MsgpackCodec{}}

	for _, codec := range codecs {
		t.Run(codec.Name(), func(t *testing.T) {
			spec := handler.Named("save-json", handler.Args{"dir": "out"})
			series := []store.Point{{Tick: 1, Value: "a"}, {Tick: 2, Value: "b"}}
			inv := entry.NewInvocation("train/loss", handler.KindPush, 2, "b", spec, series)
			frame := backend.NewInvokeFrame(inv, "/data/run")

			var buf bytes.Buffer
			if err := backend.WriteFrame(&buf, codec, frame); err != nil {
				t.Fatalf("WriteFrame: %v", err)
			}

			got, err := backend.ReadFrame(&buf, codec)
			if err != nil {
				t.Fatalf("ReadFrame: %v", err)
			}

			if got.ID != inv.ID.String() {
				t.Errorf("ID = %q, want %q", got.ID, inv.ID.String())
			}
			if got.Type != backend.FrameInvoke {
				t.Errorf("Type = %q, want %q", got.Type, backend.FrameInvoke)
			}
			if got.Entry != "train/loss" || got.Handler != "save-json" {
				t.Errorf("Entry/Handler = %q/%q", got.Entry, got.Handler)
			}
			if got.Tick != 2 {
				t.Errorf("Tick = %d, want 2", got.Tick)
			}
			if got.Root != "/data/run" {
				t.Errorf("Root = %q, want %q", got.Root, "/data/run")
			}
			if len(got.Series) != 2 || got.Series[1].Tick != 2 {
				t.Errorf("Series = %+v", got.Series)
			}

			rec := got.Record()
			if rec.Kind != handler.KindPush {
				t.Errorf("Record kind = %q, want %q", rec.Kind, handler.KindPush)
			}
			if rec.Args.String("dir", "") != "out" {
				t.Errorf("Record args dir = %q, want %q", rec.Args.String("dir", ""), "out")
			}
		})
	}
}

func TestFrame_ErrorFrame(t *testing.T) {
	codec := &backend.MsgpackCodec{}
	frame := backend.NewErrorFrame("inv_123", errors.New("handler exploded"))

	var buf bytes.Buffer
	if err := backend.WriteFrame(&buf, codec, frame); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := backend.ReadFrame(&buf, codec)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}

	if got.Type != backend.FrameErr {
		t.Errorf("Type = %q, want %q", got.Type, backend.FrameErr)
	}
	if got.Error == nil || got.Error.Message != "handler exploded" {
		t.Errorf("Error = %+v", got.Error)
	}
}

func TestFrame_MultipleOnOneStream(t *testing.T) {
	codec := &backend.JSONCodec{}
	var buf bytes.Buffer

	for i := range 3 {
		spec := handler.Named("echo-last", nil)
		inv := entry.NewInvocation("e", handler.KindPush, int64(i), i, spec, nil)
		if err := backend.WriteFrame(&buf, codec, backend.NewInvokeFrame(inv, "")); err != nil {
			t.Fatalf("WriteFrame %d: %v", i, err)
		}
	}

	for i := range 3 {
		got, err := backend.ReadFrame(&buf, codec)
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if got.Tick != int64(i) {
			t.Errorf("frame %d tick = %d", i, got.Tick)
		}
	}
}

func TestGetCodec(t *testing.T) {
	if got := backend.GetCodec("json").Name(); got != backend.CodecNameJSON {
		t.Errorf("GetCodec(json) = %q", got)
	}
	if got := backend.GetCodec("msgpack").Name(); got != backend.CodecNameMsgpack {
		t.Errorf("GetCodec(msgpack) = %q", got)
	}
	// Unknown and empty names fall back to msgpack.
	if got := backend.GetCodec("").Name(); got != backend.CodecNameMsgpack {
		t.Errorf("GetCodec(\"\") = %q", got)
	}
	if got := backend.GetCodec("protobuf").Name(); got != backend.CodecNameMsgpack {
		t.Errorf("GetCodec(protobuf) = %q", got)
	}
}

func TestMsgpack_RejectsUnserializablePayload(t *testing.T) {
	codec := &backend.MsgpackCodec{}
	spec := handler.Named("echo-last", nil)
	inv := entry.NewInvocation("e", handler.KindPush, 1, make(chan int), spec, nil)

	if _, err := codec.Encode(backend.NewInvokeFrame(inv, "")); err == nil {
		t.Fatal("expected encode error for channel payload")
	}
}

// pushFrame is a test helper that runs one invoke frame through the worker
// serve loop using in-memory pipes.
func serveOneFrame(t *testing.T, handlers *handler.Registry, frame *backend.Frame) *backend.Frame {
	t.Helper()
	codec := &backend.MsgpackCodec{}

	var in, out bytes.Buffer
	if err := backend.WriteFrame(&in, codec, frame); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	if err := backend.ServeStream(&in, &out, codec, handlers); err != nil {
		t.Fatalf("serve: %v", err)
	}

	resp, err := backend.ReadFrame(&out, codec)
	if err != nil {
		t.Fatalf("ReadFrame reply: %v", err)
	}
	return resp
}

func TestServe_RunsNamedHandler(t *testing.T) {
	handlers := handler.NewRegistry()
	var got any
	handlers.Register("capture", func(_ context.Context, rec handler.Record) error {
		got = rec.Payload
		return nil
	})

	spec := handler.Named("capture", nil)
	inv := entry.NewInvocation("e", handler.KindPush, 1, "payload", spec, nil)
	resp := serveOneFrame(t, handlers, backend.NewInvokeFrame(inv, ""))

	if resp.Type != backend.FrameResult {
		t.Fatalf("reply type = %q, want %q", resp.Type, backend.FrameResult)
	}
	if got != "payload" {
		t.Errorf("payload = %v, want %q", got, "payload")
	}
}

func TestServe_ReportsHandlerError(t *testing.T) {
	handlers := handler.NewRegistry()
	handlers.Register("failing", func(_ context.Context, _ handler.Record) error {
		return errors.New("no luck")
	})

	spec := handler.Named("failing", nil)
	inv := entry.NewInvocation("e", handler.KindPush, 1, nil, spec, nil)
	resp := serveOneFrame(t, handlers, backend.NewInvokeFrame(inv, ""))

	if resp.Type != backend.FrameErr {
		t.Fatalf("reply type = %q, want %q", resp.Type, backend.FrameErr)
	}
	if resp.Error == nil || resp.Error.Message != "no luck" {
		t.Errorf("Error = %+v", resp.Error)
	}
}

func TestServe_ContainsPanic(t *testing.T) {
	handlers := handler.NewRegistry()
	handlers.Register("panicky", func(_ context.Context, _ handler.Record) error {
		panic("worker panic")
	})

	spec := handler.Named("panicky", nil)
	inv := entry.NewInvocation("e", handler.KindPush, 1, nil, spec, nil)
	resp := serveOneFrame(t, handlers, backend.NewInvokeFrame(inv, ""))

	if resp.Type != backend.FrameErr {
		t.Fatalf("reply type = %q, want %q", resp.Type, backend.FrameErr)
	}
}

func TestServe_UnknownHandler(t *testing.T) {
	spec := handler.Named("nobody-home", nil)
	inv := entry.NewInvocation("e", handler.KindPush, 1, nil, spec, nil)
	resp := serveOneFrame(t, handler.NewRegistry(), backend.NewInvokeFrame(inv, ""))

	if resp.Type != backend.FrameErr {
		t.Fatalf("reply type = %q, want %q", resp.Type, backend.FrameErr)
	}
}

func TestFrame_CarriesWorkerID(t *testing.T) {
	spec := handler.Named("save-json", nil)
	inv := entry.NewInvocation("train/loss", handler.KindPush, 1, 0.5, spec, nil)
	frame := backend.NewInvokeFrame(inv, "")
	frame.Worker = id.NewWorkerID().String()

	var buf bytes.Buffer
	codec := &backend.MsgpackCodec{}
	if err := backend.WriteFrame(&buf, codec, frame); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := backend.ReadFrame(&buf, codec)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}

	if got.Worker != frame.Worker {
		t.Errorf("worker = %q, want %q", got.Worker, frame.Worker)
	}
	if _, err := id.ParseWorkerID(got.Worker); err != nil {
		t.Errorf("worker %q does not parse as a worker ID: %v", got.Worker, err)
	}
}
