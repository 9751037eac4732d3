package notifybus

import (
	"context"
	"sync"
)

// MemoryBus is an in-process fan-out used by gateway and projection tests.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[string][]chan Delivery
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: map[string][]chan Delivery{}}
}

func (b *MemoryBus) Publish(_ context.Context, channel string, env Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs[channel] {
		select {
		case ch <- Delivery{Channel: channel, Envelope: env}:
		default:
		}
	}

	return nil
}

type memorySubscription struct {
	bus      *MemoryBus
	channels []string
	out      chan Delivery
}

func (b *MemoryBus) Subscribe(_ context.Context, channels ...string) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(chan Delivery, 256)

	for _, c := range channels {
		b.subs[c] = append(b.subs[c], out)
	}

	return &memorySubscription{bus: b, channels: channels, out: out}
}

func (s *memorySubscription) Channel() <-chan Delivery { return s.out }

func (s *memorySubscription) Close() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	for _, c := range s.channels {
		subs := s.bus.subs[c]
		for i, ch := range subs {
			if ch == s.out {
				s.bus.subs[c] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}

	close(s.out)

	return nil
}
