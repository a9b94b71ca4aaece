package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// The first hit of a window sets its expiry, so counters never outlive it.
var allowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// A lock is only deleted by the holder whose token it still carries.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisLimiter shares counters between all service replicas.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: "ratelimit:"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	ms := window.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	n, err := allowScript.Run(ctx, l.client, []string{l.prefix + key}, ms).Int64()
	if err != nil {
		return false, fmt.Errorf("redis rate limit failed: %w", err)
	}
	return n <= int64(limit), nil
}

func (l *RedisLimiter) Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, bool, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lock failed: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{lockKey}, token).Err(); err != nil {
			return fmt.Errorf("redis unlock failed: %w", err)
		}
		return nil
	}
	return release, true, nil
}
