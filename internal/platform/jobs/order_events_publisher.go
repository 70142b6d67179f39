package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/freshpress/api/internal/domain"
)

// orderCreatedMessage is the JSON payload published for every new order.
type orderCreatedMessage struct {
	OrderID       string    `json:"orderId"`
	TransactionID string    `json:"transactionId"`
	CustomerEmail string    `json:"customerEmail"`
	Total         int64     `json:"total"`
	ItemCount     int       `json:"itemCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PubSubOrderPublisher publishes order lifecycle events to a Pub/Sub topic so
// downstream consumers (fulfillment, analytics) can react without polling.
type PubSubOrderPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubOrderPublisher constructs a Pub/Sub backed order event publisher.
func NewPubSubOrderPublisher(topic *pubsub.Topic) (*PubSubOrderPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub order publisher: topic is required")
	}
	return &PubSubOrderPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// OrderCreated enqueues an order.created message on the configured topic.
func (p *PubSubOrderPublisher) OrderCreated(ctx context.Context, order domain.Order) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub order publisher: not initialised")
	}

	itemCount := 0
	for _, line := range order.Items {
		itemCount += line.Quantity
	}

	data, err := p.marshal(orderCreatedMessage{
		OrderID:       order.ID,
		TransactionID: order.TransactionID,
		CustomerEmail: order.CustomerEmail,
		Total:         int64(order.Total),
		ItemCount:     itemCount,
		CreatedAt:     order.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	attrs := map[string]string{"event": "order.created"}
	setAttr(attrs, "orderId", order.ID)
	setAttr(attrs, "transactionId", order.TransactionID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
