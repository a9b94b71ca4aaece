package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/domain"
)

type cartService interface {
	GetCart(ctx context.Context, owner domain.Owner) (*domain.Cart, error)
	AddItem(ctx context.Context, owner domain.Owner, item domain.LineItem) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, owner domain.Owner, key string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, owner domain.Owner, key string) (*domain.Cart, error)
	ReplaceItems(ctx context.Context, owner domain.Owner, entries map[string]domain.Entry) (*domain.Cart, error)
	ClearCart(ctx context.Context, owner domain.Owner) error
}

type CartHandler struct {
	carts   cartService
	timeout time.Duration
}

func NewCartHandler(carts cartService, timeout time.Duration) *CartHandler {
	return &CartHandler{carts: carts, timeout: timeout}
}

type guestBody struct {
	GuestID string `json:"guestId"`
}

// ReplaceCartRequestDTO carries a full client cart. Values are numbers for
// legacy entries or line item objects.
type ReplaceCartRequestDTO struct {
	GuestID   string                     `json:"guestId"`
	CartItems map[string]json.RawMessage `json:"cartItems"`
}

// AddItemRequestDTO is a line item object plus an optional guestId. Fields
// are coerced like cart entries, so "quantity":"2" and "price":"25" are valid.
type AddItemRequestDTO map[string]json.RawMessage

func (d AddItemRequestDTO) guestID() string {
	var id string
	if raw, ok := d["guestId"]; ok {
		_ = json.Unmarshal(raw, &id)
	}
	return id
}

type UpdateQuantityRequestDTO struct {
	GuestID  string `json:"guestId"`
	Quantity *int   `json:"quantity"`
}

// GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.timeout)
	defer cancel()

	owner, err := resolveOwner(r, "")
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	cart, err := h.carts.GetCart(ctx, owner)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(cart))
}

// PUT /api/cart
func (h *CartHandler) ReplaceCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.timeout)
	defer cancel()

	var req ReplaceCartRequestDTO
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	owner, err := resolveOwner(r, req.GuestID)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	cart, err := h.carts.ReplaceItems(ctx, owner, domain.ParseEntries(req.CartItems))
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(cart))
}

// DELETE /api/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.timeout)
	defer cancel()

	var req guestBody
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	owner, err := resolveOwner(r, req.GuestID)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	if err := h.carts.ClearCart(ctx, owner); err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(domain.NewCart(owner, time.Now())))
}

// POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	owner, err := resolveOwner(r, req.guestID())
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	item := domain.ParseLineItem(req)
	if item.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}
	if item.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be positive")
		return
	}

	cart, err := h.carts.AddItem(ctx, owner, item)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusCreated, newCartResponse(cart))
}

// PATCH /api/cart/items/{key}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.timeout)
	defer cancel()

	key, ok := itemKey(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_item_key", "item key is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity == nil || *req.Quantity < 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be zero or positive")
		return
	}
	owner, err := resolveOwner(r, req.GuestID)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	cart, err := h.carts.UpdateQuantity(ctx, owner, key, *req.Quantity)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(cart))
}

// DELETE /api/cart/items/{key}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.timeout)
	defer cancel()

	key, ok := itemKey(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_item_key", "item key is required")
		return
	}

	var req guestBody
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	owner, err := resolveOwner(r, req.GuestID)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	cart, err := h.carts.RemoveItem(ctx, owner, key)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(cart))
}

func itemKey(r *http.Request) (string, bool) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}
