// Package events connects the cart service to Kafka: it publishes cart
// lifecycle events and consumes completed checkouts.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	CartEventsTopic     = "cart-events"
	CheckoutOutboxTopic = "checkout-outbox"

	EventTypeCartMerged = "cart.merged"
)

// CartMerged is emitted after a guest cart was folded into a user cart.
type CartMerged struct {
	UserID    string    `json:"user_id"`
	GuestID   string    `json:"guest_id"`
	ItemCount int       `json:"item_count"`
	MergedAt  time.Time `json:"merged_at"`
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  CartEventsTopic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) PublishCartMerged(ctx context.Context, event CartMerged) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal cart merged event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.UserID), // per-user ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeCartMerged)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish cart merged event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops events; used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishCartMerged(context.Context, CartMerged) error { return nil }
