// Package orders stores orders placed at checkout in PostgreSQL.
package orders

import (
	"context"
	"errors"

	"github.com/klawrenceboxx/postergenius2025-sub000/internal/domain"
)

var ErrDuplicateCheckout = errors.New("order for this checkout already exists")

type Repository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	ListByOwner(ctx context.Context, owner domain.Owner) ([]*domain.Order, error)
	// ClaimGuestOrders moves orders placed under guestID that no user owns
	// yet to userID and returns how many moved.
	ClaimGuestOrders(ctx context.Context, userID, guestID string) (int, error)
}
