// Package redis implements store.Store backed by Redis. Each entry's
// series is a Redis Hash keyed by tick with msgpack-encoded values, and
// a separate counter key tracks appends. Use it when ProcessPool workers
// in separate OS processes need to see the same series, or when several
// experiment processes share one recorder namespace.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client, redisstore.WithNamespace("exp42"))
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/xraph/scribe/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithNamespace sets the key namespace. Defaults to "scribe".
// Two stores with different namespaces on the same Redis never collide.
func WithNamespace(ns string) Option {
	return func(s *Store) { s.namespace = ns }
}

// Store implements store.Store backed by Redis.
type Store struct {
	client    redis.Cmdable
	namespace string
	logger    *slog.Logger
}

// New creates a Redis-backed series store. The caller owns the Redis
// client lifecycle.
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, namespace: "scribe", logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.Cmdable { return s.client }

func (s *Store) dataKey(entry string) string {
	return s.namespace + ":entry:" + entry + ":data"
}

func (s *Store) countKey(entry string) string {
	return s.namespace + ":entry:" + entry + ":count"
}

func (s *Store) entriesKey() string {
	return s.namespace + ":entries"
}

// DeclareEntry registers the entry in the namespace set. Idempotent.
func (s *Store) DeclareEntry(ctx context.Context, entry string) error {
	if err := s.client.SAdd(ctx, s.entriesKey(), entry).Err(); err != nil {
		return fmt.Errorf("scribe/redis: declare entry %q: %w", entry, err)
	}
	return nil
}

// Append encodes the value with msgpack and stores it in the entry's
// hash keyed by tick, then advances the append counter.
func (s *Store) Append(ctx context.Context, entry string, p store.Point) error {
	if err := s.declared(ctx, entry); err != nil {
		return err
	}

	raw, err := msgpack.Marshal(p.Value)
	if err != nil {
		return fmt.Errorf("scribe/redis: encode value for %q: %w", entry, err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.dataKey(entry), strconv.FormatInt(p.Tick, 10), raw)
	pipe.Incr(ctx, s.countKey(entry))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("scribe/redis: append to %q: %w", entry, err)
	}
	return nil
}

// AppendNext claims the next tick with an atomic INCR on the counter,
// then stores the value at it. Concurrent callers (including other OS
// processes on the same namespace) always get distinct ticks.
func (s *Store) AppendNext(ctx context.Context, entry string, value any) (int64, error) {
	if err := s.declared(ctx, entry); err != nil {
		return 0, err
	}

	raw, err := msgpack.Marshal(value)
	if err != nil {
		return 0, fmt.Errorf("scribe/redis: encode value for %q: %w", entry, err)
	}

	tick, err := s.client.Incr(ctx, s.countKey(entry)).Result()
	if err != nil {
		return 0, fmt.Errorf("scribe/redis: claim tick for %q: %w", entry, err)
	}
	if err := s.client.HSet(ctx, s.dataKey(entry), strconv.FormatInt(tick, 10), raw).Err(); err != nil {
		return 0, fmt.Errorf("scribe/redis: append to %q: %w", entry, err)
	}
	return tick, nil
}

// Series fetches and decodes all points for the entry, ordered by tick.
func (s *Store) Series(ctx context.Context, entry string) ([]store.Point, error) {
	if err := s.declared(ctx, entry); err != nil {
		return nil, err
	}

	fields, err := s.client.HGetAll(ctx, s.dataKey(entry)).Result()
	if err != nil {
		return nil, fmt.Errorf("scribe/redis: read series %q: %w", entry, err)
	}

	out := make([]store.Point, 0, len(fields))
	for field, raw := range fields {
		tick, parseErr := strconv.ParseInt(field, 10, 64)
		if parseErr != nil {
			s.logger.Warn("skipping series field with non-integer tick",
				slog.String("entry", entry),
				slog.String("field", field),
			)
			continue
		}
		var value any
		if err := msgpack.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("scribe/redis: decode value at tick %d of %q: %w", tick, entry, err)
		}
		out = append(out, store.Point{Tick: tick, Value: value})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Tick < out[k].Tick })
	return out, nil
}

// Len returns the number of appends since the last Clear.
func (s *Store) Len(ctx context.Context, entry string) (int, error) {
	if err := s.declared(ctx, entry); err != nil {
		return 0, err
	}

	n, err := s.client.Get(ctx, s.countKey(entry)).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("scribe/redis: read counter %q: %w", entry, err)
	}
	return n, nil
}

// Clear deletes the entry's hash and counter.
func (s *Store) Clear(ctx context.Context, entry string) error {
	if err := s.declared(ctx, entry); err != nil {
		return err
	}

	if err := s.client.Del(ctx, s.dataKey(entry), s.countKey(entry)).Err(); err != nil {
		return fmt.Errorf("scribe/redis: clear %q: %w", entry, err)
	}
	return nil
}

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op — the caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }

// declared checks membership in the namespace entry set.
func (s *Store) declared(ctx context.Context, entry string) error {
	ok, err := s.client.SIsMember(ctx, s.entriesKey(), entry).Result()
	if err != nil {
		return fmt.Errorf("scribe/redis: check entry %q: %w", entry, err)
	}
	if !ok {
		return store.ErrEntryNotDeclared
	}
	return nil
}
