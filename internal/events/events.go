// Package events publishes order lifecycle events to Kafka.
//
// Delivery is best effort. Publish failures are logged and swallowed so
// that a broker outage never fails an order operation that has already
// committed.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/canastra/storefront/internal/domain/order"
)

const (
	TopicOrderCreated       = "order-created"
	TopicOrderStatusUpdated = "order-status-updated"
)

var _ order.Publisher = (*KafkaPublisher)(nil)

// KafkaPublisher emits order events to Kafka topics, keyed by order ID so
// events for one order stay in partition order.
type KafkaPublisher struct {
	created *kafka.Writer
	updated *kafka.Writer
	lg      *zap.Logger
}

// NewKafkaPublisher returns a publisher writing to the given brokers.
func NewKafkaPublisher(brokers []string, lg *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		created: newWriter(brokers, TopicOrderCreated),
		updated: newWriter(brokers, TopicOrderStatusUpdated),
		lg:      lg.Named("events"),
	}
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
}

// Close flushes and closes every underlying writer, even when an
// earlier one fails.
func (p *KafkaPublisher) Close() error {
	return errors.Join(p.created.Close(), p.updated.Close())
}

// OrderCreated publishes a creation event for the committed order.
func (p *KafkaPublisher) OrderCreated(ctx context.Context, o *order.Order) {
	p.publish(ctx, p.created, o, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

// OrderStatusUpdated publishes a transition event carrying both statuses.
func (p *KafkaPublisher) OrderStatusUpdated(ctx context.Context, o *order.Order, oldStatus order.Status) {
	p.publish(ctx, p.updated, o, func(e *jx.Encoder) {
		e.Field("oldStatus", func(e *jx.Encoder) { e.Str(string(oldStatus)) })
		encodeOrder(e, o)
	})
}

func (p *KafkaPublisher) publish(ctx context.Context, w *kafka.Writer, o *order.Order, fields func(*jx.Encoder)) {
	var e jx.Encoder
	e.Obj(fields)

	msg := kafka.Message{
		Key:   []byte(o.ID),
		Value: e.Bytes(),
		Time:  time.Now(),
	}
	if err := w.WriteMessages(ctx, msg); err != nil {
		p.lg.Warn("Publish failed",
			zap.String("topic", w.Topic),
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Field("orderId", func(e *jx.Encoder) { e.Str(o.ID) })
	e.Field("userId", func(e *jx.Encoder) { e.Str(o.UserID) })
	e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
	e.Field("totalPrice", func(e *jx.Encoder) { e.Int64(o.TotalPrice) })
	e.Field("occurredAt", func(e *jx.Encoder) { e.Str(time.Now().UTC().Format(time.RFC3339)) })
}
