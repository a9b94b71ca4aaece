package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
)

type OrderItem struct {
	ProductID  string          `json:"productId"`
	Title      string          `json:"title,omitempty"`
	Format     string          `json:"format,omitempty"`
	Dimensions string          `json:"dimensions,omitempty"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

// Order is placed either by a user or by a guest. Guest orders are claimed
// by a user after sign-in.
type Order struct {
	ID          uuid.UUID       `json:"id"`
	CheckoutID  uuid.UUID       `json:"checkoutId"`
	UserID      string          `json:"userId,omitempty"`
	GuestID     string          `json:"guestId,omitempty"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Currency    string          `json:"currency"`
	Status      OrderStatus     `json:"status"`
	Items       []OrderItem     `json:"items"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Owner reports who currently holds the order.
func (o *Order) Owner() Owner {
	if o.UserID != "" {
		return UserOwner(o.UserID)
	}
	return GuestOwner(o.GuestID)
}
