package cache

import (
	"context"
	"errors"

	"github.com/klawrenceboxx/postergenius2025-sub000/internal/domain"
	"github.com/klawrenceboxx/postergenius2025-sub000/pkg/circuitbreaker"
)

// BreakerCache stops calling a failing cache backend until it recovers.
// Misses are not failures.
type BreakerCache struct {
	next CartCache
	cb   *circuitbreaker.Breaker[*domain.Cart]
}

func NewBreakerCache(next CartCache, cfg circuitbreaker.Config) *BreakerCache {
	cfg.Ignore = func(err error) bool { return errors.Is(err, ErrCacheMiss) }
	return &BreakerCache{
		next: next,
		cb:   circuitbreaker.New[*domain.Cart](cfg),
	}
}

func (b *BreakerCache) Get(ctx context.Context, owner domain.Owner) (*domain.Cart, error) {
	return b.cb.Execute(func() (*domain.Cart, error) {
		return b.next.Get(ctx, owner)
	})
}

func (b *BreakerCache) Set(ctx context.Context, cart *domain.Cart) error {
	_, err := b.cb.Execute(func() (*domain.Cart, error) {
		return nil, b.next.Set(ctx, cart)
	})
	return err
}

func (b *BreakerCache) Delete(ctx context.Context, owner domain.Owner) error {
	_, err := b.cb.Execute(func() (*domain.Cart, error) {
		return nil, b.next.Delete(ctx, owner)
	})
	return err
}
