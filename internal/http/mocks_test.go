package http

import (
	"context"
	"sync"
	"time"

	"github.com/klawrenceboxx/postergenius2025-sub000/internal/domain"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/service"
)

// cartServiceMock applies cart operations to in-memory carts.
type cartServiceMock struct {
	m     sync.RWMutex
	carts map[string]*domain.Cart
	err   error
}

func newCartServiceMock() *cartServiceMock {
	return &cartServiceMock{carts: map[string]*domain.Cart{}}
}

func (s *cartServiceMock) cart(owner domain.Owner) *domain.Cart {
	c, ok := s.carts[owner.Key()]
	if !ok {
		c = domain.NewCart(owner, time.Now())
		s.carts[owner.Key()] = c
	}
	return c
}

func (s *cartServiceMock) stored(owner domain.Owner) (*domain.Cart, bool) {
	s.m.RLock()
	defer s.m.RUnlock()
	c, ok := s.carts[owner.Key()]
	return c, ok
}

func (s *cartServiceMock) GetCart(_ context.Context, owner domain.Owner) (*domain.Cart, error) {
	s.m.Lock()
	defer s.m.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.cart(owner), nil
}

func (s *cartServiceMock) AddItem(_ context.Context, owner domain.Owner, item domain.LineItem) (*domain.Cart, error) {
	s.m.Lock()
	defer s.m.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	c := s.cart(owner)
	if err := c.Add(item, time.Now()); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *cartServiceMock) UpdateQuantity(_ context.Context, owner domain.Owner, key string, quantity int) (*domain.Cart, error) {
	s.m.Lock()
	defer s.m.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	c := s.cart(owner)
	if err := c.SetQuantity(key, quantity, time.Now()); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *cartServiceMock) RemoveItem(_ context.Context, owner domain.Owner, key string) (*domain.Cart, error) {
	s.m.Lock()
	defer s.m.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	c := s.cart(owner)
	if err := c.Remove(key, time.Now()); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *cartServiceMock) ReplaceItems(_ context.Context, owner domain.Owner, entries map[string]domain.Entry) (*domain.Cart, error) {
	s.m.Lock()
	defer s.m.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	c := s.cart(owner)
	c.Replace(entries, time.Now())
	return c, nil
}

func (s *cartServiceMock) ClearCart(_ context.Context, owner domain.Owner) error {
	s.m.Lock()
	defer s.m.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.carts, owner.Key())
	return nil
}

type mergerMock struct {
	m       sync.Mutex
	calls   [][2]string
	result  service.MergeResult
	err     error
	claimed int
}

func (m *mergerMock) MergeGuestCart(_ context.Context, userID, guestID string) (service.MergeResult, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.calls = append(m.calls, [2]string{userID, guestID})
	return m.result, m.err
}

func (m *mergerMock) ClaimGuestOrders(_ context.Context, userID, guestID string) (int, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.calls = append(m.calls, [2]string{userID, guestID})
	return m.claimed, m.err
}

func (m *mergerMock) recorded() [][2]string {
	m.m.Lock()
	defer m.m.Unlock()
	return append([][2]string(nil), m.calls...)
}

type ordersMock struct {
	orders []*domain.Order
}

func (o *ordersMock) ListOrders(_ context.Context, owner domain.Owner) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, order := range o.orders {
		if order.Owner() == owner {
			out = append(out, order)
		}
	}
	return out, nil
}
