// Package publisher dispatches order events to the external notification
// collaborator. Dispatch is fire-and-forget from the core's perspective:
// failures are logged by callers and never propagate into the triggering
// operation.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"

	"storefront/internal/domain"
)

type Event string

const (
	EventOrderConfirmed Event = "order_confirmed"
	EventOrderShipped   Event = "order_shipped"
	EventOrderDelivered Event = "order_delivered"
)

type Notifier interface {
	Notify(ctx context.Context, event Event, order *domain.Order) error
}

// orderEvent is the wire payload handed to the notification collaborator.
type orderEvent struct {
	Event        string    `json:"event"`
	OrderID      string    `json:"order_id"`
	OrderNumber  string    `json:"order_number"`
	UserID       string    `json:"user_id"`
	Status       string    `json:"status"`
	Total        float64   `json:"total"`
	CustomerName string    `json:"customer_name"`
	OccurredAt   time.Time `json:"occurred_at"`
	Items        []struct {
		ProductName string  `json:"product_name"`
		Quantity    int     `json:"quantity"`
		UnitPrice   float64 `json:"unit_price"`
	} `json:"items"`
}

// KafkaNotifier publishes order events to one topic, keyed by order id for
// ordering. A circuit breaker keeps a dead broker from stalling request
// goroutines on every status change.
type KafkaNotifier struct {
	writer  *kafka.Writer
	breaker *gobreaker.CircuitBreaker[any]
}

func NewKafkaNotifier(brokers ...string) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  "order-events",
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "order-events",
		Timeout: 30 * time.Second,
	})
	return &KafkaNotifier{writer: w, breaker: cb}
}

func (n *KafkaNotifier) Notify(ctx context.Context, event Event, order *domain.Order) error {
	payload := orderEvent{
		Event:        string(event),
		OrderID:      order.ID.String(),
		OrderNumber:  order.Number,
		UserID:       order.UserID,
		Status:       string(order.Status),
		Total:        order.Total,
		CustomerName: order.ShippingAddress.FullName,
		OccurredAt:   time.Now(),
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, struct {
			ProductName string  `json:"product_name"`
			Quantity    int     `json:"quantity"`
			UnitPrice   float64 `json:"unit_price"`
		}{item.ProductName, item.Quantity, item.UnitPrice})
	}

	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(order.ID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event)},
		},
	}

	_, err = n.breaker.Execute(func() (any, error) {
		return nil, n.writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

// Nop discards all events. Used in tests and the DB-less dev mode.
type Nop struct{}

func (Nop) Notify(context.Context, Event, *domain.Order) error { return nil }
