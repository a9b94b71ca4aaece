// Package ratelimit provides fixed-window counters and single-holder locks
// keyed by arbitrary strings. Counters guard HTTP mutations; locks serialize
// cart merges per user.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter reports whether another hit on key fits into limit hits per window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// ReleaseFunc frees a lock taken by Acquire. It does nothing once the lock
// expired and another holder took it.
type ReleaseFunc func(ctx context.Context) error

// Locker grants a key to one holder at a time. The ttl bounds how long a
// holder that never releases keeps the key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, bool, error)
}

// MemoryLimiter is a single-process Limiter and Locker with background
// cleanup. Call Stop on shutdown.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*counter
	locks   map[string]heldLock
	tokens  uint64
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

type heldLock struct {
	token     uint64
	expiresAt time.Time
}

type counter struct {
	hits    int
	resetAt time.Time
}

func NewMemoryLimiter(cleanupInterval time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		windows: make(map[string]*counter),
		locks:   make(map[string]heldLock),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go l.cleanup(cleanupInterval)
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.windows[key]
	if !ok || !now.Before(c.resetAt) {
		c = &counter{resetAt: now.Add(window)}
		l.windows[key] = c
	}
	c.hits++
	return c.hits <= limit, nil
}

func (l *MemoryLimiter) Acquire(_ context.Context, key string, ttl time.Duration) (ReleaseFunc, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.locks[key]; ok && now.Before(held.expiresAt) {
		return nil, false, nil
	}
	l.tokens++
	token := l.tokens
	l.locks[key] = heldLock{token: token, expiresAt: now.Add(ttl)}

	release := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if held, ok := l.locks[key]; ok && held.token == token {
			delete(l.locks, key)
		}
		return nil
	}
	return release, true, nil
}

// Stop terminates the background cleanup goroutine.
func (l *MemoryLimiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func (l *MemoryLimiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := l.now()
			for key, c := range l.windows {
				if !now.Before(c.resetAt) {
					delete(l.windows, key)
				}
			}
			for key, held := range l.locks {
				if !now.Before(held.expiresAt) {
					delete(l.locks, key)
				}
			}
			l.mu.Unlock()
		}
	}
}
