package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"feedesk/pkg/platform/sentinel"
)

const (
	keyPrefix      = "feedesk:txlock:"
	DefaultTTL     = 5 * time.Minute
	releaseTimeout = 2 * time.Second
)

// releaseScript deletes the key only when it still holds our token, so a lock that expired
// and was taken by another request is not released by the late owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis locks transaction IDs across processes sharing one Redis. The TTL bounds how long a
// crashed holder blocks resubmission.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

type RedisOption func(*Redis)

func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) RedisOption {
	return func(r *Redis) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) TryLock(ctx context.Context, transactionID string) (func(), error) {
	key := keyPrefix + transactionID
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock transaction %s: %w: %v", transactionID, sentinel.ErrUnavailable, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock transaction %s: %w", transactionID, sentinel.ErrAlreadyUsed)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The request context may already be cancelled when the lock is released.
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
			defer cancel()
			if err := releaseScript.Run(rctx, r.client, []string{key}, token).Err(); err != nil {
				r.logger.WarnContext(rctx, "failed to release transaction lock",
					"transaction_id", transactionID,
					"error", err,
				)
			}
		})
	}, nil
}
