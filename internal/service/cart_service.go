package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/klawrenceboxx/postergenius2025-sub000/internal/cache"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/domain"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/repository"
	"golang.org/x/sync/singleflight"
)

// maxSaveAttempts bounds retries of a mutation that lost an optimistic race.
const maxSaveAttempts = 3

type CartService struct {
	repo        repository.CartRepository
	cache       cache.CartCache
	sfg         singleflight.Group // Prevents cache stampede
	maxQuantity int
	now         func() time.Time
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, maxQuantity int) *CartService {
	return &CartService{
		repo:        repo,
		cache:       cache,
		maxQuantity: maxQuantity,
		now:         time.Now,
	}
}

func (s *CartService) GetCart(ctx context.Context, owner domain.Owner) (*domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(owner.Key(), func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, owner)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			slog.WarnContext(ctx, "cache get error", "owner", owner.Key(), "error", err)
		}

		cart, err = s.repo.GetCart(ctx, owner)
		if errors.Is(err, repository.ErrCartNotFound) {
			return domain.NewCart(owner, s.now()), nil
		}
		if err != nil {
			return nil, err
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := s.cache.Set(ctx, cart); err != nil {
				slog.Warn("cache set error", "owner", owner.Key(), "error", err)
			}
		}()

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddItem adds item to the cart, summing with a line of the same identity.
func (s *CartService) AddItem(ctx context.Context, owner domain.Owner, item domain.LineItem) (*domain.Cart, error) {
	return s.mutate(ctx, owner, func(c *domain.Cart, now time.Time) error {
		return c.Add(item, now)
	})
}

// UpdateQuantity sets the quantity of the line under key; zero removes it.
func (s *CartService) UpdateQuantity(ctx context.Context, owner domain.Owner, key string, quantity int) (*domain.Cart, error) {
	return s.mutate(ctx, owner, func(c *domain.Cart, now time.Time) error {
		return c.SetQuantity(key, quantity, now)
	})
}

func (s *CartService) RemoveItem(ctx context.Context, owner domain.Owner, key string) (*domain.Cart, error) {
	return s.mutate(ctx, owner, func(c *domain.Cart, now time.Time) error {
		return c.Remove(key, now)
	})
}

// ReplaceItems overwrites the cart with the normalized form of entries.
func (s *CartService) ReplaceItems(ctx context.Context, owner domain.Owner, entries map[string]domain.Entry) (*domain.Cart, error) {
	return s.mutate(ctx, owner, func(c *domain.Cart, now time.Time) error {
		c.Replace(entries, now)
		return nil
	})
}

// ClearCart deletes the cart. A missing cart is not an error.
func (s *CartService) ClearCart(ctx context.Context, owner domain.Owner) error {
	if err := owner.Validate(); err != nil {
		return err
	}

	err := s.repo.DeleteCart(ctx, owner)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		slog.ErrorContext(ctx, "repo delete cart error", "owner", owner.Key(), "error", err)
		return err
	}

	invalidateCache(ctx, s.cache, owner)
	return nil
}

// mutate applies fn to the stored cart and saves it, reloading when another
// writer got there first.
func (s *CartService) mutate(ctx context.Context, owner domain.Owner, fn func(*domain.Cart, time.Time) error) (*domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		cart, err := s.repo.GetCart(ctx, owner)
		if errors.Is(err, repository.ErrCartNotFound) {
			cart = domain.NewCart(owner, s.now())
		} else if err != nil {
			return nil, fmt.Errorf("failed to load cart: %w", err)
		}

		if err := fn(cart, s.now()); err != nil {
			return nil, err
		}
		s.clampQuantities(cart)

		err = s.repo.SaveCart(ctx, cart)
		if err == nil {
			invalidateCache(ctx, s.cache, owner)
			return cart, nil
		}
		if !errors.Is(err, domain.ErrConcurrentUpdate) || attempt == maxSaveAttempts {
			slog.ErrorContext(ctx, "repo save cart error", "owner", owner.Key(), "attempt", attempt, "error", err)
			return nil, err
		}
	}
}

func (s *CartService) clampQuantities(cart *domain.Cart) {
	if s.maxQuantity <= 0 {
		return
	}
	for key, item := range cart.Items {
		if item.Quantity > s.maxQuantity {
			item.Quantity = s.maxQuantity
			cart.Items[key] = item
		}
	}
}

func invalidateCache(ctx context.Context, c cache.CartCache, owner domain.Owner) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := c.Delete(ctx, owner); err != nil {
		slog.WarnContext(ctx, "cache invalidate error", "owner", owner.Key(), "error", err)
	}
}
