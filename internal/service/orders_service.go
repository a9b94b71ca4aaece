package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/klawrenceboxx/postergenius2025-sub000/internal/domain"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/orders"
)

type OrdersService struct {
	repo orders.Repository
}

func NewOrdersService(repo orders.Repository) *OrdersService {
	return &OrdersService{repo: repo}
}

// ClaimGuestOrders hands orders placed under guestID to userID. Orders a user
// already owns are never moved, so replays claim nothing.
func (s *OrdersService) ClaimGuestOrders(ctx context.Context, userID, guestID string) (int, error) {
	guestID = strings.TrimSpace(guestID)
	if guestID == "" {
		return 0, nil
	}
	user := domain.UserOwner(userID)
	if err := user.Validate(); err != nil {
		return 0, err
	}

	n, err := s.repo.ClaimGuestOrders(ctx, user.ID, guestID)
	if err != nil {
		return 0, fmt.Errorf("failed to claim guest orders: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "guest orders claimed", "user_id", user.ID, "guest_id", guestID, "count", n)
	}
	return n, nil
}

func (s *OrdersService) ListOrders(ctx context.Context, owner domain.Owner) ([]*domain.Order, error) {
	list, err := s.repo.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return list, nil
}
