// Package scribe provides a data/event recorder for long-running
// experiments. Callers declare named entries, each with an ordered list
// of handlers and a dispatch mode, then push values; handlers persist,
// plot, or aggregate them either synchronously in the caller's goroutine
// or asynchronously on a bounded pool of worker goroutines or worker
// processes.
//
// Scribe is a library, not a service. Import it, declare entries, push.
//
// # Quick Start
//
//	rec, err := scribe.New(
//	    scribe.WithRoot("/data/run-42"),
//	    scribe.WithThreadPool(8, 1024),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rec.Close(context.Background())
//
//	err = rec.Declare(ctx, "train/loss",
//	    []handler.Spec{handler.Named("save-json", nil)},
//	    entry.WithMode(entry.ModeThread),
//	)
//	rec.Push(ctx, "train/loss", 0.93)
//
// # Containment
//
// A failing handler never makes Push, Reset, or Dump fail. Failures are
// reported through the hook side channel (a slog reporter by default;
// use Recorder.Tap to consume them as values). Only caller misuse —
// unknown entry, duplicate declare, configuration changed after the
// first declare — propagates as an error.
//
// # Dispatch modes
//
// Each entry fixes its mode at declaration: Sync runs handlers on the
// caller's goroutine in registration order; Thread queues one invocation
// per handler onto a goroutine pool; Process delivers invocations to
// re-executed child worker processes over a length-prefixed msgpack (or
// JSON) pipe, which requires registered handler names and serializable
// payloads.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package scribe
