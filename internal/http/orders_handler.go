package http

import (
	"context"
	"net/http"
	"time"

	"github.com/klawrenceboxx/postergenius2025-sub000/internal/domain"
)

type ordersLister interface {
	ListOrders(ctx context.Context, owner domain.Owner) ([]*domain.Order, error)
}

type OrdersHandler struct {
	orders  ordersLister
	timeout time.Duration
}

func NewOrdersHandler(orders ordersLister, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{orders: orders, timeout: timeout}
}

type ListOrdersResponseDTO struct {
	Orders []*domain.Order `json:"orders"`
}

// GET /api/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.timeout)
	defer cancel()

	owner, err := resolveOwner(r, "")
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	list, err := h.orders.ListOrders(ctx, owner)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	if list == nil {
		list = []*domain.Order{}
	}
	respondJSON(w, http.StatusOK, ListOrdersResponseDTO{Orders: list})
}
