package service

import (
	"context"
	"strconv"
	"sync"

	"github.com/klawrenceboxx/postergenius2025-sub000/internal/cache"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/domain"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/events"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/repository"
)

// mockRepository keeps carts by owner key and enforces versions like the
// Mongo implementation.
type mockRepository struct {
	m             sync.RWMutex
	carts         map[string]*domain.Cart
	nextID        int
	getErr        error
	saveErr       error
	deleteErr     error
	conflicts     int // SaveCart calls that fail with ErrConcurrentUpdate
	transactional bool
	saves         int
	deletes       int
}

func newMockRepository() *mockRepository {
	return &mockRepository{carts: map[string]*domain.Cart{}}
}

func cloneCart(c *domain.Cart) *domain.Cart {
	out := *c
	out.Items = make(domain.Items, len(c.Items))
	for k, v := range c.Items {
		out.Items[k] = v
	}
	out.MergedCarts = append([]string(nil), c.MergedCarts...)
	return &out
}

func (m *mockRepository) put(c *domain.Cart) {
	m.m.Lock()
	defer m.m.Unlock()
	m.nextID++
	c = cloneCart(c)
	c.ID = strconv.Itoa(m.nextID)
	c.Version = 1
	m.carts[c.Owner.Key()] = c
}

func (m *mockRepository) stored(owner domain.Owner) *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	c, ok := m.carts[owner.Key()]
	if !ok {
		return nil
	}
	return cloneCart(c)
}

func (m *mockRepository) GetCart(_ context.Context, owner domain.Owner) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.carts[owner.Key()]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return cloneCart(c), nil
}

func (m *mockRepository) SaveCart(_ context.Context, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.conflicts > 0 {
		m.conflicts--
		return domain.ErrConcurrentUpdate
	}

	current, exists := m.carts[cart.Owner.Key()]
	switch {
	case cart.ID == "" && exists:
		return domain.ErrConcurrentUpdate
	case cart.ID == "":
		m.nextID++
		cart.ID = strconv.Itoa(m.nextID)
		cart.Version = 1
	case !exists || current.Version != cart.Version:
		return domain.ErrConcurrentUpdate
	default:
		cart.Version++
	}
	m.carts[cart.Owner.Key()] = cloneCart(cart)
	return nil
}

func (m *mockRepository) DeleteCart(_ context.Context, owner domain.Owner) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.deletes++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.carts[owner.Key()]; !ok {
		return repository.ErrCartNotFound
	}
	delete(m.carts, owner.Key())
	return nil
}

// RunInTransaction snapshots the store and restores it when fn fails.
func (m *mockRepository) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) (bool, error) {
	if !m.transactional {
		return false, fn(ctx)
	}

	m.m.Lock()
	snapshot := make(map[string]*domain.Cart, len(m.carts))
	for k, v := range m.carts {
		snapshot[k] = cloneCart(v)
	}
	m.m.Unlock()

	err := fn(ctx)
	if err != nil {
		m.m.Lock()
		m.carts = snapshot
		m.m.Unlock()
	}
	return true, err
}

type mockCache struct {
	m       sync.RWMutex
	carts   map[string]*domain.Cart
	err     error
	deleted []string
}

func newMockCache() *mockCache {
	return &mockCache{carts: map[string]*domain.Cart{}}
}

func (c *mockCache) Get(_ context.Context, owner domain.Owner) (*domain.Cart, error) {
	c.m.RLock()
	defer c.m.RUnlock()
	if c.err != nil {
		return nil, c.err
	}
	cart, ok := c.carts[owner.Key()]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cart, nil
}

func (c *mockCache) Set(_ context.Context, cart *domain.Cart) error {
	c.m.Lock()
	defer c.m.Unlock()
	c.carts[cart.Owner.Key()] = cart
	return c.err
}

func (c *mockCache) Delete(_ context.Context, owner domain.Owner) error {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.carts, owner.Key())
	c.deleted = append(c.deleted, owner.Key())
	return c.err
}

func (c *mockCache) getCart(owner domain.Owner) *domain.Cart {
	c.m.RLock()
	defer c.m.RUnlock()
	return c.carts[owner.Key()]
}

func (c *mockCache) deletedKeys() []string {
	c.m.RLock()
	defer c.m.RUnlock()
	return append([]string(nil), c.deleted...)
}

type mockPublisher struct {
	m      sync.Mutex
	events []events.CartMerged
	err    error
}

func (p *mockPublisher) PublishCartMerged(_ context.Context, e events.CartMerged) error {
	p.m.Lock()
	defer p.m.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *mockPublisher) published() []events.CartMerged {
	p.m.Lock()
	defer p.m.Unlock()
	return append([]events.CartMerged(nil), p.events...)
}
