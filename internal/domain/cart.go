package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// maxMergedCarts bounds the merge marker list kept on a user cart.
const maxMergedCarts = 20

type OwnerKind string

const (
	OwnerUser  OwnerKind = "user"
	OwnerGuest OwnerKind = "guest"
)

// Owner addresses a cart. A cart belongs to exactly one user or one guest.
type Owner struct {
	Kind OwnerKind `json:"kind"`
	ID   string    `json:"id"`
}

func UserOwner(id string) Owner  { return Owner{Kind: OwnerUser, ID: strings.TrimSpace(id)} }
func GuestOwner(id string) Owner { return Owner{Kind: OwnerGuest, ID: strings.TrimSpace(id)} }

// Key is used for cache keys, lock keys and log fields.
func (o Owner) Key() string {
	return string(o.Kind) + ":" + o.ID
}

func (o Owner) IsZero() bool {
	return o.ID == ""
}

func (o Owner) Validate() error {
	if o.ID == "" {
		return ErrMissingCartIdentifier
	}
	if o.Kind != OwnerUser && o.Kind != OwnerGuest {
		return ErrMissingCartIdentifier
	}
	return nil
}

// Cart is one owner's cart. MergedCarts holds the ids of guest carts already
// folded into a user cart.
type Cart struct {
	ID          string    `json:"id,omitempty"`
	Owner       Owner     `json:"owner"`
	Items       Items     `json:"cartItems"`
	MergedCarts []string  `json:"-"`
	Version     int64     `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewCart returns an empty cart for owner.
func NewCart(owner Owner, now time.Time) *Cart {
	return &Cart{
		Owner:     owner,
		Items:     Items{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Add puts item into the cart. An existing line with the same canonical
// identity keeps its storage key and fields and gains the quantity.
func (c *Cart) Add(item LineItem, now time.Time) error {
	normalized, ok := NormalizeEntry(item.ProductID, item)
	if !ok {
		return ErrInvalidItem
	}
	incoming := map[string]Entry{StorageKey(normalized): normalized}
	c.Items = MergeCartItems(c.Items.Entries(), incoming)
	c.touch(now)
	return nil
}

// SetQuantity sets the quantity of the line stored under key. A quantity of
// zero or less removes the line.
func (c *Cart) SetQuantity(key string, quantity int, now time.Time) error {
	item, ok := c.Items[key]
	if !ok {
		return ErrItemNotFound
	}
	if quantity <= 0 {
		delete(c.Items, key)
	} else {
		item.Quantity = quantity
		c.Items[key] = item
	}
	c.touch(now)
	return nil
}

func (c *Cart) Remove(key string, now time.Time) error {
	if _, ok := c.Items[key]; !ok {
		return ErrItemNotFound
	}
	delete(c.Items, key)
	c.touch(now)
	return nil
}

// Replace swaps all items for the normalized form of entries.
func (c *Cart) Replace(entries map[string]Entry, now time.Time) {
	c.Items = MergeCartItems(entries, nil)
	c.touch(now)
}

// HasMerged reports whether the guest cart with id cartID was already folded
// into this cart.
func (c *Cart) HasMerged(cartID string) bool {
	return cartID != "" && slices.Contains(c.MergedCarts, cartID)
}

// MarkMerged records the guest cart cartID as folded into this cart. A guest
// cart rebuilt under the same guest id has a new id and merges again.
func (c *Cart) MarkMerged(cartID string) {
	if cartID == "" || c.HasMerged(cartID) {
		return
	}
	c.MergedCarts = append(c.MergedCarts, cartID)
	if n := len(c.MergedCarts); n > maxMergedCarts {
		c.MergedCarts = c.MergedCarts[n-maxMergedCarts:]
	}
}

// Subtotal sums price x quantity over lines with a known price.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		if item.Price == nil {
			continue
		}
		line := decimal.NewFromFloat(*item.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(line)
	}
	return total.Round(2)
}

// TotalQuantity is the number of units in the cart.
func (c *Cart) TotalQuantity() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

func (c *Cart) touch(now time.Time) {
	if c.Items == nil {
		c.Items = Items{}
	}
	c.UpdatedAt = now
}
