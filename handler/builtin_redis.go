package handler

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// PublishRedis returns a handler that publishes the last point to a
// Redis channel, msgpack-encoded. The channel defaults to the entry
// name and can be overridden with the bound argument "channel".
func PublishRedis(client redis.Cmdable) Func {
	return func(ctx context.Context, rec Record) error {
		p, ok := rec.Last()
		if !ok {
			return nil
		}

		channel := rec.Args.String("channel", rec.Entry)
		raw, err := msgpack.Marshal(p)
		if err != nil {
			return fmt.Errorf("publish-redis %q: encode: %w", rec.Entry, err)
		}
		if err := client.Publish(ctx, channel, raw).Err(); err != nil {
			return fmt.Errorf("publish-redis %q: %w", rec.Entry, err)
		}
		return nil
	}
}
