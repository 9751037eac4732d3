// Package eventbus implements the event bus (C2): fan-out of committed
// events to projection workers with competing-consumers, at-least-once
// delivery, grounded on the teacher's producer.rabbitmq.go /
// MultiQueueConsumer pattern.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/aeroframe-io/core/internal/domain"
	"github.com/aeroframe-io/core/internal/mlog"
)

// Message is the wire envelope published for each committed event.
type Message struct {
	AggregateID string          `json:"aggregate_id"`
	Sequence    uint64          `json:"sequence"`
	EventType   domain.EventType `json:"event_type"`
	Payload     json.RawMessage `json:"payload"`
	TenantID    *string         `json:"tenant_id"`
}

// Publisher is the contract command handlers depend on. Grounded on the
// teacher's ProducerRepository interface.
type Publisher interface {
	Publish(ctx context.Context, events []domain.StoredEvent) error
}

// Connection wraps a single AMQP connection/channel pair, analogous to
// the teacher's RabbitMQConnection but updated to amqp091-go.
type Connection struct {
	url      string
	conn     *amqp.Connection
	Channel  *amqp.Channel
	Exchange string
	Queue    string
	Logger   mlog.Logger
}

func NewConnection(url, exchange, queue string, logger mlog.Logger) *Connection {
	return &Connection{url: url, Exchange: exchange, Queue: queue, Logger: logger}
}

func (c *Connection) Connect() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("eventbus: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close() //nolint:errcheck
		return fmt.Errorf("eventbus: open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(c.Exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("eventbus: declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("eventbus: declare queue: %w", err)
	}

	if err := ch.QueueBind(c.Queue, "", c.Exchange, false, nil); err != nil {
		return fmt.Errorf("eventbus: bind queue: %w", err)
	}

	// competing consumers: each worker instance gets only as many
	// unacked messages as it can handle before the next is delivered.
	if err := ch.Qos(10, 0, false); err != nil {
		return fmt.Errorf("eventbus: qos: %w", err)
	}

	c.conn = conn
	c.Channel = ch

	return nil
}

func (c *Connection) Close() error {
	if c.Channel != nil {
		_ = c.Channel.Close()
	}

	if c.conn != nil {
		return c.conn.Close()
	}

	return nil
}

// RabbitMQPublisher publishes committed events after a successful append.
// Must not reorder the batch (spec.md §4.2).
type RabbitMQPublisher struct {
	conn *Connection
}

func NewRabbitMQPublisher(conn *Connection) *RabbitMQPublisher {
	return &RabbitMQPublisher{conn: conn}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, events []domain.StoredEvent) error {
	logger := mlog.NewLoggerFromContext(ctx)

	for _, ev := range events {
		msg := Message{
			AggregateID: ev.AggregateID,
			Sequence:    ev.Sequence,
			EventType:   ev.Type,
			Payload:     json.RawMessage(ev.Payload),
			TenantID:    ev.TenantID,
		}

		body, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("eventbus: marshal message: %w", err)
		}

		err = p.conn.Channel.PublishWithContext(ctx, p.conn.Exchange, "", false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
		if err != nil {
			logger.Errorf("eventbus: publish failed for %s/%d: %v", ev.AggregateID, ev.Sequence, err)
			return fmt.Errorf("eventbus: publish: %w", err)
		}
	}

	return nil
}

// Handler processes one delivered message. Returning an error leaves the
// message unacked for redelivery; handlers must therefore be idempotent.
type Handler func(ctx context.Context, msg Message) error

// Consume runs the competing-consumer loop until ctx is cancelled.
// Grounded on the teacher's MultiQueueConsumer.Run: register a handler per
// queue, block until shutdown.
func Consume(ctx context.Context, conn *Connection, handler Handler) error {
	logger := mlog.NewLoggerFromContext(ctx)

	deliveries, err := conn.Channel.Consume(conn.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("eventbus: consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("eventbus: delivery channel closed")
			}

			var msg Message
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				logger.Errorf("eventbus: malformed message, dropping: %v", err)
				_ = d.Nack(false, false)

				continue
			}

			if err := handler(ctx, msg); err != nil {
				logger.Errorf("eventbus: handler failed for %s/%d: %v", msg.AggregateID, msg.Sequence, err)
				_ = d.Nack(false, true)

				continue
			}

			_ = d.Ack(false)
		}
	}
}
