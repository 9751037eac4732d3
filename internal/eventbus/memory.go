package eventbus

import (
	"context"
	"encoding/json"

	"github.com/aeroframe-io/core/internal/domain"
)

// MemoryBus is an in-process competing-consumers stand-in used by command
// and projection worker tests. Publish enqueues; Drain lets a test pull
// everything published so far without running a goroutine loop.
type MemoryBus struct {
	messages []Message
}

func NewMemoryBus() *MemoryBus { return &MemoryBus{} }

func (b *MemoryBus) Publish(_ context.Context, events []domain.StoredEvent) error {
	for _, ev := range events {
		b.messages = append(b.messages, Message{
			AggregateID: ev.AggregateID,
			Sequence:    ev.Sequence,
			EventType:   ev.Type,
			Payload:     json.RawMessage(ev.Payload),
			TenantID:    ev.TenantID,
		})
	}

	return nil
}

func (b *MemoryBus) Drain() []Message {
	out := b.messages
	b.messages = nil

	return out
}
