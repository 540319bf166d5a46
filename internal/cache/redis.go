package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("filevault-cache")

// Redis is a Cache backed by a Redis server. Keys are namespaced with prefix.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Redis{client: client, prefix: "filevault:"}, nil
}

func (rc *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, span := tracer.Start(ctx, "redis.get", trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	data, err := rc.client.Get(ctx, rc.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		span.SetAttributes(attribute.String("cache_status", "miss"))
		return nil, false, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("failed to get from cache: %w", err)
	}

	span.SetAttributes(attribute.String("cache_status", "hit"))
	return data, true, nil
}

func (rc *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, span := tracer.Start(ctx, "redis.set", trace.WithAttributes(
		attribute.String("cache.key", key),
		attribute.Int("cache.value_bytes", len(value)),
		attribute.Int64("ttl_seconds", int64(ttl.Seconds())),
	))
	defer span.End()

	if err := rc.client.Set(ctx, rc.prefix+key, value, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

func (rc *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "redis.delete", trace.WithAttributes(attribute.StringSlice("cache.keys", keys)))
	defer span.End()

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = rc.prefix + k
	}
	if err := rc.client.Del(ctx, prefixed...).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return nil
}

// Ping reports whether the server is reachable.
func (rc *Redis) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *Redis) Close() error {
	return rc.client.Close()
}
