// Package notifybus implements the notification bus (C3): ephemeral,
// lossy-by-design pub/sub of projection-complete envelopes, grounded on
// the teacher's mredis connection pattern but used for Pub/Sub rather
// than key/value.
package notifybus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Envelope is published by the projection worker on a per-entity channel
// after a read-model write succeeds.
type Envelope struct {
	EventType string          `json:"event_type"`
	Timestamp time.Time       `json:"ts"`
	Data      json.RawMessage `json:"data"`
	Meta      EnvelopeMeta    `json:"meta"`
}

type EnvelopeMeta struct {
	TenantID    *string `json:"tenant_id"`
	AggregateID string  `json:"aggregate_id"`
	Version     *uint64 `json:"version"`
}

// Bus is the contract the projection worker and the real-time gateway
// depend on.
type Bus interface {
	Publish(ctx context.Context, channel string, env Envelope) error
	Subscribe(ctx context.Context, channels ...string) Subscription
}

// Delivery pairs a received envelope with the channel it arrived on,
// since one Subscription can span several channels (the gateway's
// baseline subscriptions) and the event frame must name the channel it
// matched.
type Delivery struct {
	Channel  string
	Envelope Envelope
}

// Subscription is a live subscription; the gateway reads from Channel()
// until it closes it.
type Subscription interface {
	Channel() <-chan Delivery
	Close() error
}

// RedisBus is the C3 implementation.
type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Publish(ctx context.Context, channel string, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	return b.client.Publish(ctx, channel, body).Err()
}

type redisSubscription struct {
	ps   *redis.PubSub
	out  chan Delivery
	done chan struct{}
}

func (b *RedisBus) Subscribe(ctx context.Context, channels ...string) Subscription {
	ps := b.client.Subscribe(ctx, channels...)

	sub := &redisSubscription{ps: ps, out: make(chan Delivery, 256), done: make(chan struct{})}

	go sub.pump(ctx)

	return sub
}

func (s *redisSubscription) pump(ctx context.Context) {
	defer close(s.out)

	ch := s.ps.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				continue
			}

			select {
			case s.out <- Delivery{Channel: msg.Channel, Envelope: env}:
			default:
				// backpressure policy: drop rather than block, the bus is
				// lossy by design.
			}
		}
	}
}

func (s *redisSubscription) Channel() <-chan Delivery { return s.out }

func (s *redisSubscription) Close() error {
	close(s.done)
	return s.ps.Close()
}
