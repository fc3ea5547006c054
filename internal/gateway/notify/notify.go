// Package notify publishes assignment lifecycle events to the channels that
// couriers, customers and dispatch operators consume. Delivery is best
// effort: the engine never depends on a notification having arrived.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// Channels events are addressed to.
const (
	ChannelCourier  = "courier"
	ChannelCustomer = "customer"
	ChannelAdmin    = "admin"
)

// Event types.
const (
	EventAssignmentCreated  = "assignment.created"
	EventAssignmentAccepted = "assignment.accepted"
	EventAssignmentRejected = "assignment.rejected"
	EventAssignmentTimedOut = "assignment.timed_out"
	EventAssignmentStatus   = "assignment.status_changed"
	EventCourierLocation    = "courier.location_updated"
	EventDispatchExhausted  = "dispatch.reassignment_exhausted"
)

// Event is one lifecycle notification.
type Event struct {
	Channel      string            `json:"channel"`
	Type         string            `json:"type"`
	AssignmentID string            `json:"assignment_id,omitempty"`
	OrderID      string            `json:"order_id,omitempty"`
	CourierID    int64             `json:"courier_id,omitempty"`
	At           time.Time         `json:"at"`
	Payload      map[string]string `json:"payload,omitempty"`
}

// Notifier publishes lifecycle events.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// KafkaNotifier publishes events to a Kafka topic, keyed by order id so all
// events of one order land in one partition in order.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaNotifier creates a notifier over an existing producer.
func NewKafkaNotifier(producer sarama.SyncProducer, topic string) *KafkaNotifier {
	if producer == nil {
		return nil
	}
	return &KafkaNotifier{producer: producer, topic: topic}
}

// NewSyncProducer dials Kafka with the settings the notifier needs.
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Retry.Backoff = 100 * time.Millisecond
	cfg.Producer.Return.Successes = true // required for SyncProducer

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return producer, nil
}

// Notify publishes the event. The context is consulted before the send since
// sarama's sync producer does not take one.
func (n *KafkaNotifier) Notify(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", e.Type, err)
	}
	_, _, err = n.producer.SendMessage(&sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(e.OrderID),
		Value: sarama.ByteEncoder(raw),
	})
	if err != nil {
		return fmt.Errorf("publish event %s: %w", e.Type, err)
	}
	return nil
}

// Close releases the underlying producer.
func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}

// Nop is a notifier that drops every event. Used in tests and when no broker
// is configured.
type Nop struct{}

// NewNop creates a Nop notifier.
func NewNop() Nop { return Nop{} }

// Notify implements Notifier.
func (Nop) Notify(context.Context, Event) error { return nil }
