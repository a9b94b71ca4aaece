package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/klawrenceboxx/postergenius2025-sub000/internal/domain"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/orders"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/repository"
	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// CartResponse is the wire shape of a cart. Items use the same storage keys
// the client persists under cartItems.
type CartResponse struct {
	Owner         domain.Owner    `json:"owner"`
	CartItems     domain.Items    `json:"cartItems"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TotalQuantity int             `json:"totalQuantity"`
}

func newCartResponse(cart *domain.Cart) CartResponse {
	items := cart.Items
	if items == nil {
		items = domain.Items{}
	}
	return CartResponse{
		Owner:         cart.Owner,
		CartItems:     items,
		Subtotal:      cart.Subtotal(),
		TotalQuantity: cart.TotalQuantity(),
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// handleServiceError converts service and repository errors to HTTP statuses.
func handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		status int
		code   string
	)
	switch {
	case errors.Is(err, domain.ErrMissingCartIdentifier):
		status, code = http.StatusBadRequest, "missing_cart_identifier"
	case errors.Is(err, domain.ErrInvalidItem):
		status, code = http.StatusBadRequest, "invalid_item"
	case errors.Is(err, domain.ErrInvalidGuestSession):
		status, code = http.StatusUnauthorized, "invalid_guest_session"
	case errors.Is(err, domain.ErrItemNotFound), errors.Is(err, repository.ErrCartNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrMergeInProgress):
		status, code = http.StatusConflict, "merge_in_progress"
	case errors.Is(err, domain.ErrConcurrentUpdate):
		status, code = http.StatusConflict, "concurrent_update"
	case errors.Is(err, orders.ErrDuplicateCheckout):
		status, code = http.StatusConflict, "already_exists"
	case errors.Is(err, domain.ErrGuestCartCleanup):
		status, code = http.StatusInternalServerError, "guest_cart_cleanup"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "timeout"
	default:
		status, code = http.StatusInternalServerError, "internal_error"
	}

	if status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "request failed", "error", err, "code", code)
		respondError(w, status, code, "internal server error")
		return
	}
	respondError(w, status, code, err.Error())
}
