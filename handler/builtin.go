package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/xraph/scribe/namepath"
)

// Stock handler names, registered by RegisterBuiltins. These are the
// handlers safe to use from ProcessPool entries: they rebuild all their
// state from the Record alone.
const (
	NameEcho         = "echo-last"
	NameSaveJSON     = "save-json"
	NameSaveJSONLast = "save-json-last"
	NameSaveText     = "save-text"
	NameSaveTextLast = "save-text-last"
	NameSaveMsgpack  = "save-msgpack"
)

// RegisterBuiltins registers the stock handlers on the registry.
// Call it in both the host process and (for ProcessPool entries) in
// the worker process before serving.
func RegisterBuiltins(r *Registry) {
	r.Register(NameEcho, EchoTo(os.Stdout))
	r.Register(NameSaveJSON, SaveJSON)
	r.Register(NameSaveJSONLast, SaveJSONLast)
	r.Register(NameSaveText, SaveText)
	r.Register(NameSaveTextLast, SaveTextLast)
	r.Register(NameSaveMsgpack, SaveMsgpack)
}

// EchoTo returns a handler that prints the last point to w as
// "entry at tick: value".
func EchoTo(w io.Writer) Func {
	return func(_ context.Context, rec Record) error {
		p, ok := rec.Last()
		if !ok {
			return nil
		}
		_, err := fmt.Fprintf(w, "%s at %d: %v\n", rec.Entry, p.Tick, p.Value)
		return err
	}
}

// LogLast returns a handler that logs the last point at the given level.
func LogLast(logger *slog.Logger, level slog.Level) Func {
	return func(ctx context.Context, rec Record) error {
		p, ok := rec.Last()
		if !ok {
			return nil
		}
		logger.Log(ctx, level, "entry value",
			slog.String("entry", rec.Entry),
			slog.Int64("tick", p.Tick),
			slog.Any("value", p.Value),
		)
		return nil
	}
}

// SaveJSON writes the whole series snapshot to <root>/<entry>.json as a
// tick→value object.
func SaveJSON(_ context.Context, rec Record) error {
	byTick := make(map[string]any, len(rec.Series))
	for _, p := range rec.Series {
		byTick[fmt.Sprintf("%d", p.Tick)] = p.Value
	}
	data, err := json.Marshal(byTick)
	if err != nil {
		return fmt.Errorf("save-json %q: %w", rec.Entry, err)
	}
	return writeEntryFile(rec, "json", data)
}

// SaveJSONLast writes the last value of the series to <root>/<entry>.json.
func SaveJSONLast(_ context.Context, rec Record) error {
	p, ok := rec.Last()
	if !ok {
		return nil
	}
	data, err := json.Marshal(p.Value)
	if err != nil {
		return fmt.Errorf("save-json-last %q: %w", rec.Entry, err)
	}
	return writeEntryFile(rec, "json", data)
}

// SaveText writes the whole series snapshot to <root>/<entry>.txt,
// one "tick: value" line per point.
func SaveText(_ context.Context, rec Record) error {
	var buf []byte
	for _, p := range rec.Series {
		buf = append(buf, fmt.Sprintf("%d: %v\n", p.Tick, p.Value)...)
	}
	return writeEntryFile(rec, "txt", buf)
}

// SaveTextLast writes the last value of the series to <root>/<entry>.txt.
func SaveTextLast(_ context.Context, rec Record) error {
	p, ok := rec.Last()
	if !ok {
		return nil
	}
	return writeEntryFile(rec, "txt", []byte(fmt.Sprintf("%v\n", p.Value)))
}

// SaveMsgpack writes the whole series snapshot to <root>/<entry>.msgpack.
func SaveMsgpack(_ context.Context, rec Record) error {
	data, err := msgpack.Marshal(rec.Series)
	if err != nil {
		return fmt.Errorf("save-msgpack %q: %w", rec.Entry, err)
	}
	return writeEntryFile(rec, "msgpack", data)
}

func writeEntryFile(rec Record, ext string, data []byte) error {
	if err := namepath.Ensure(rec.Root, rec.Entry); err != nil {
		return err
	}
	path := namepath.File(rec.Root, rec.Entry, ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	return nil
}
