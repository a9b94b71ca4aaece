package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/domain"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/orders"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

var ErrInvalidEvent = errors.New("invalid checkout event")

// checkoutItem mirrors the item shape of the checkout outbox payload.
type checkoutItem struct {
	ProductID  string          `json:"product_id"`
	Title      string          `json:"title"`
	Format     string          `json:"format"`
	Dimensions string          `json:"dimensions"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

type CheckoutCompletedEvent struct {
	CheckoutID  string          `json:"checkout_id"`
	UserID      string          `json:"user_id"`
	GuestID     string          `json:"guest_id"`
	Items       []checkoutItem  `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
}

type OrderCreator interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
}

type CartClearer interface {
	ClearCart(ctx context.Context, owner domain.Owner) error
}

// CheckoutConsumer records completed checkouts as orders and empties the
// cart they were paid from.
type CheckoutConsumer struct {
	orders OrderCreator
	carts  CartClearer
	reader *kafka.Reader
}

func NewCheckoutConsumer(orders OrderCreator, carts CartClearer, brokers ...string) *CheckoutConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    CheckoutOutboxTopic,
		GroupID:  "cart-service",
		MaxBytes: 10e6, // 10MB
	})
	return &CheckoutConsumer{orders: orders, carts: carts, reader: reader}
}

func (c *CheckoutConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			// The reader was closed.
			if errors.Is(err, io.EOF) {
				return
			}
			if !errors.Is(err, context.Canceled) {
				slog.ErrorContext(ctx, "error reading checkout message", "error", err)
			}
			continue
		}
		if err := c.Handle(ctx, m.Value); err != nil {
			slog.ErrorContext(ctx, "failed to handle checkout message", "offset", m.Offset, "error", err)
		}
	}
}

func (c *CheckoutConsumer) Close() {
	if err := c.reader.Close(); err != nil {
		slog.Error("error closing kafka reader", "error", err)
	}
}

// Handle processes one checkout payload. Replays of the same checkout create
// no second order but still clear the cart.
func (c *CheckoutConsumer) Handle(ctx context.Context, value []byte) error {
	var event CheckoutCompletedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	order, err := event.toOrder()
	if err != nil {
		return err
	}

	if err := c.orders.CreateOrder(ctx, order); err != nil {
		if !errors.Is(err, orders.ErrDuplicateCheckout) {
			return fmt.Errorf("failed to create order for checkout %s: %w", event.CheckoutID, err)
		}
		slog.InfoContext(ctx, "order for checkout already exists, skipping", "checkout_id", event.CheckoutID)
	} else {
		slog.InfoContext(ctx, "order created", "order_id", order.ID, "checkout_id", order.CheckoutID)
	}

	if err := c.carts.ClearCart(ctx, order.Owner()); err != nil {
		return fmt.Errorf("failed to clear cart for checkout %s: %w", event.CheckoutID, err)
	}
	return nil
}

func (e CheckoutCompletedEvent) toOrder() (*domain.Order, error) {
	checkoutID, err := uuid.Parse(e.CheckoutID)
	if err != nil {
		return nil, fmt.Errorf("%w: checkout_id %q: %w", ErrInvalidEvent, e.CheckoutID, err)
	}

	userID := strings.TrimSpace(e.UserID)
	guestID := strings.TrimSpace(e.GuestID)
	if userID == "" && guestID == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, domain.ErrMissingCartIdentifier)
	}
	// A signed-in checkout belongs to the user even if a guest id rode along.
	if userID != "" {
		guestID = ""
	}

	currency := strings.ToUpper(strings.TrimSpace(e.Currency))
	if currency == "" {
		currency = "CAD"
	}

	items := make([]domain.OrderItem, 0, len(e.Items))
	for _, it := range e.Items {
		items = append(items, domain.OrderItem{
			ProductID:  it.ProductID,
			Title:      it.Title,
			Format:     it.Format,
			Dimensions: it.Dimensions,
			Quantity:   it.Quantity,
			Price:      it.UnitPrice,
		})
	}

	return &domain.Order{
		ID:          uuid.New(),
		CheckoutID:  checkoutID,
		UserID:      userID,
		GuestID:     guestID,
		TotalAmount: e.TotalAmount.Round(2),
		Currency:    currency,
		Status:      domain.OrderStatusConfirmed,
		Items:       items,
	}, nil
}
