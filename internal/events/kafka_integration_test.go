package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/domain"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
)

func setupKafka(t *testing.T) string {
	if testing.Short() {
		t.Skip("skipping Kafka integration test in short mode")
	}
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	})

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func TestKafkaPublisher_CartMerged(t *testing.T) {
	broker := setupKafka(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p := NewKafkaPublisher(broker)
	defer p.Close()

	event := CartMerged{UserID: "user-1", GuestID: "guest_0123456789abcdef", ItemCount: 3, MergedAt: time.Now().UTC()}
	require.Eventually(t, func() bool {
		return p.PublishCartMerged(ctx, event) == nil
	}, 20*time.Second, 500*time.Millisecond)

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{Brokers: []string{broker}, Topic: CartEventsTopic, GroupID: "test"})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, EventTypeCartMerged, string(msg.Headers[0].Value))

	var got CartMerged
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, event.GuestID, got.GuestID)
	assert.Equal(t, 3, got.ItemCount)
}

func TestCheckoutConsumer_Run(t *testing.T) {
	broker := setupKafka(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checkoutID := uuid.New()
	data, err := json.Marshal(CheckoutCompletedEvent{CheckoutID: checkoutID.String(), UserID: "user-2"})
	require.NoError(t, err)

	w := &kafkaGo.Writer{
		Addr:                   kafkaGo.TCP(broker),
		Topic:                  CheckoutOutboxTopic,
		Balancer:               &kafkaGo.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	defer w.Close()
	require.Eventually(t, func() bool {
		return w.WriteMessages(ctx, kafkaGo.Message{Key: []byte(checkoutID.String()), Value: data}) == nil
	}, 20*time.Second, 500*time.Millisecond)

	o, c := &mockOrders{}, &mockCarts{}
	consumer := NewCheckoutConsumer(o, c, broker)
	defer consumer.Close()
	go consumer.Run(ctx)

	require.Eventually(t, func() bool {
		c.m.Lock()
		defer c.m.Unlock()
		return len(c.cleared) == 1 && c.cleared[0] == domain.UserOwner("user-2")
	}, 30*time.Second, 500*time.Millisecond)
}
