package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisLimiter(t *testing.T) (*RedisLimiter, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLimiter(client), mr
}

func TestMemoryLimiter_Window(t *testing.T) {
	l := NewMemoryLimiter(time.Minute)
	defer l.Stop()

	now := time.Now()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "k", 3, time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "k", 3, time.Second)
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "other", 3, time.Second)
	assert.True(t, ok, "keys are independent")

	now = now.Add(time.Second)
	ok, _ = l.Allow(ctx, "k", 3, time.Second)
	assert.True(t, ok, "window resets")
}

func TestMemoryLimiter_SingleTokenUnderContention(t *testing.T) {
	l := NewMemoryLimiter(time.Minute)
	defer l.Stop()

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow(context.Background(), "http:user:u1", 1, time.Minute); ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), granted.Load())
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	l := NewMemoryLimiter(5 * time.Millisecond)
	defer l.Stop()

	_, err := l.Allow(context.Background(), "k", 1, time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return len(l.windows) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestRedisLimiter_Window(t *testing.T) {
	l, mr := setupRedisLimiter(t)
	ctx := context.Background()

	ok, err := l.Allow(ctx, "http:user:u1", 1, 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Allow(ctx, "http:user:u1", 1, 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	ttl := mr.TTL("ratelimit:http:user:u1")
	assert.True(t, ttl > 0 && ttl <= 10*time.Second, "ttl %s", ttl)

	mr.FastForward(11 * time.Second)
	ok, err = l.Allow(ctx, "http:user:u1", 1, 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiter_Unavailable(t *testing.T) {
	l, mr := setupRedisLimiter(t)
	mr.Close()

	_, err := l.Allow(context.Background(), "k", 1, time.Second)
	assert.ErrorContains(t, err, "redis rate limit failed")
}

func TestMemoryLimiter_LockReleasedForNextHolder(t *testing.T) {
	l := NewMemoryLimiter(time.Minute)
	defer l.Stop()
	ctx := context.Background()

	release, ok, err := l.Acquire(ctx, "cart-merge:u1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.Acquire(ctx, "cart-merge:u1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held")

	require.NoError(t, release(ctx))
	again, ok, err := l.Acquire(ctx, "cart-merge:u1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "released")
	require.NoError(t, again(ctx))
}

func TestMemoryLimiter_ExpiredLockIsNotReleasedByOldHolder(t *testing.T) {
	l := NewMemoryLimiter(time.Minute)
	defer l.Stop()
	ctx := context.Background()
	now := time.Now()
	l.now = func() time.Time { return now }

	stale, ok, _ := l.Acquire(ctx, "k", time.Second)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok, _ = l.Acquire(ctx, "k", time.Second)
	require.True(t, ok, "expired lock is free")

	require.NoError(t, stale(ctx))
	_, ok, _ = l.Acquire(ctx, "k", time.Second)
	assert.False(t, ok, "new holder keeps the lock")
}

func TestMemoryLimiter_LockUnderContention(t *testing.T) {
	l := NewMemoryLimiter(time.Minute)
	defer l.Stop()

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := l.Acquire(context.Background(), "cart-merge:u1", time.Minute); ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), granted.Load())
}

func TestRedisLimiter_Lock(t *testing.T) {
	l, mr := setupRedisLimiter(t)
	ctx := context.Background()

	release, ok, err := l.Acquire(ctx, "cart-merge:u1", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ttl := mr.TTL("ratelimit:lock:cart-merge:u1")
	assert.True(t, ttl > 0 && ttl <= 10*time.Second, "ttl %s", ttl)

	_, ok, err = l.Acquire(ctx, "cart-merge:u1", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists("ratelimit:lock:cart-merge:u1"))

	_, ok, err = l.Acquire(ctx, "cart-merge:u1", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiter_StaleReleaseKeepsNewHolder(t *testing.T) {
	l, mr := setupRedisLimiter(t)
	ctx := context.Background()

	stale, ok, err := l.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = l.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, stale(ctx))
	assert.True(t, mr.Exists("ratelimit:lock:k"))
}

func TestRedisLimiter_LockUnavailable(t *testing.T) {
	l, mr := setupRedisLimiter(t)
	mr.Close()

	_, _, err := l.Acquire(context.Background(), "k", time.Second)
	assert.ErrorContains(t, err, "redis lock failed")
}
