package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// apiClient talks to the cart service on behalf of one guest and, once a
// token is set, one signed-in user.
type apiClient struct {
	baseURL string
	guestID string
	token   string
	hc      *http.Client
}

func newAPIClient(baseURL, guestID, token string) (*apiClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		guestID: guestID,
		token:   token,
		hc:      &http.Client{Jar: jar, Timeout: 15 * time.Second},
	}, nil
}

type apiError struct {
	Status int
	Code   string `json:"code"`
	Msg    string `json:"error"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Msg)
}

type cartView struct {
	CartItems map[string]struct {
		ProductID  string   `json:"productId"`
		Quantity   int      `json:"quantity"`
		Format     *string  `json:"format"`
		Dimensions *string  `json:"dimensions"`
		Title      *string  `json:"title"`
		Price      *float64 `json:"price"`
	} `json:"cartItems"`
	Subtotal      string `json:"subtotal"`
	TotalQuantity int    `json:"totalQuantity"`
}

type addItem struct {
	ProductID  string   `json:"productId"`
	Quantity   int      `json:"quantity"`
	Format     string   `json:"format,omitempty"`
	Dimensions string   `json:"dimensions,omitempty"`
	Price      *float64 `json:"price,omitempty"`
}

func (c *apiClient) GetCart(ctx context.Context) (*cartView, error) {
	var out cartView
	if err := c.do(ctx, http.MethodGet, "/api/cart", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) AddItem(ctx context.Context, item addItem) (*cartView, error) {
	var out cartView
	if err := c.do(ctx, http.MethodPost, "/api/cart/items", item, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartGuestSession obtains the signed guest cookie. The cookie jar keeps it
// for the merge and claim calls.
func (c *apiClient) StartGuestSession(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/guest/session", map[string]string{"guestId": c.guestID}, nil)
}

func (c *apiClient) Merge(ctx context.Context) (bool, error) {
	var out struct {
		Merged bool `json:"merged"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/cart/merge", nil, &out); err != nil {
		return false, err
	}
	return out.Merged, nil
}

func (c *apiClient) ClaimOrders(ctx context.Context) (int, error) {
	var out struct {
		Claimed int `json:"claimed"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/orders/claim-guest", nil, &out); err != nil {
		return 0, err
	}
	return out.Claimed, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.guestID != "" {
		req.Header.Set("x-guest-id", c.guestID)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
