package middleware

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// RedisCounter shares fixed-window counters between processes.
type RedisCounter struct {
	client redis.Cmdable
	prefix string
}

func NewRedisCounter(client redis.Cmdable, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisCounter{client: client, prefix: prefix}
}

func (r *RedisCounter) Hit(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	full := r.prefix + key
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, full)
	pipe.ExpireNX(ctx, full, window)
	ttl := pipe.PTTL(ctx, full)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, errors.Wrap(err, "rate counter")
	}
	resetIn := ttl.Val()
	if resetIn < 0 {
		resetIn = window
	}
	return int(incr.Val()), resetIn, nil
}
