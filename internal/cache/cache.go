package cache

import (
	"context"
	"errors"

	"github.com/klawrenceboxx/postergenius2025-sub000/internal/domain"
)

// CartCache is a read-through cache of carts keyed by owner. Entries drop the
// merge marker and version, so writers always read from the repository.
type CartCache interface {
	Get(ctx context.Context, owner domain.Owner) (*domain.Cart, error)
	Set(ctx context.Context, cart *domain.Cart) error
	Delete(ctx context.Context, owner domain.Owner) error
}

var ErrCacheMiss = errors.New("cache miss")
