//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// RedisContainer is a shared Redis instance backing the transaction lock suites.
type RedisContainer struct {
	Container testcontainers.Container
	URL       string
	Client    *redis.Client
	opts      *redis.Options
}

func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	abort := func(format string, args ...any) {
		_ = container.Terminate(ctx)
		t.Fatalf(format, args...)
	}

	url, err := container.ConnectionString(ctx)
	if err != nil {
		abort("redis connection string: %v", err)
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		abort("parse redis url %q: %v", url, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		abort("ping redis: %v", err)
	}
	return &RedisContainer{Container: container, URL: url, Client: client, opts: opts}
}

// NewClient opens an independent connection pool, closed when t finishes. Lock tests use
// it to model separate server processes contending for one key.
func (r *RedisContainer) NewClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(r.opts)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// FlushAll drops every key so each test starts without leftover locks.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}
