package repository

import (
	"context"
	"errors"

	"github.com/klawrenceboxx/postergenius2025-sub000/internal/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// CartRepository defines cart persistence. Consumers depend on this
// interface, not on the MongoDB implementation.
type CartRepository interface {
	GetCart(ctx context.Context, owner domain.Owner) (*domain.Cart, error)
	// SaveCart writes items and merge markers in one document update. It
	// fails with domain.ErrConcurrentUpdate when cart.Version is stale and
	// creates the document when cart has never been stored.
	SaveCart(ctx context.Context, cart *domain.Cart) error
	DeleteCart(ctx context.Context, owner domain.Owner) error
	// RunInTransaction runs fn atomically when the deployment supports it
	// and reports whether it did.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) (bool, error)
}
