package jobstore

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for the shared store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient opens a client and verifies connectivity.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "connect redis %s", cfg.Addr)
	}
	return client, nil
}

// RedisStore shares job state between processes. Expiry is handled by Redis.
type RedisStore struct {
	client     redis.Cmdable
	prefix     string
	defaultTTL time.Duration
}

// NewRedisStore wraps client. Keys are stored under prefix.
func NewRedisStore(client redis.Cmdable, prefix string, defaultTTL time.Duration) *RedisStore {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &RedisStore{client: client, prefix: prefix, defaultTTL: defaultTTL}
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return errors.Wrapf(err, "redis set %s", key)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "redis get %s", key)
	}
	return val, true, nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return errors.Wrapf(err, "redis del %s", key)
	}
	return nil
}

func (r *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	full := r.prefix + key
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, full)
	pipe.ExpireNX(ctx, full, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errors.Wrapf(err, "redis incr %s", key)
	}
	return incr.Val(), nil
}

// Ping reports whether Redis answers.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
