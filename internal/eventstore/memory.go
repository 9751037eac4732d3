package eventstore

import (
	"context"
	"sync"
	"time"

	"github.com/aeroframe-io/core/internal/domain"
)

// MemoryStore is an in-memory Store used by command/query/projection unit
// tests in place of a database. Same optimistic-concurrency contract as
// PostgresStore.
type MemoryStore struct {
	mu      sync.Mutex
	streams map[string][]domain.StoredEvent
	nextID  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{streams: map[string][]domain.StoredEvent{}}
}

func (s *MemoryStore) Append(_ context.Context, streamID string, expectedVersion uint64, events []domain.NewEvent) (uint64, []domain.StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.streams[streamID]

	if uint64(len(current)) != expectedVersion {
		return 0, nil, &ErrConflict{StreamID: streamID}
	}

	committed := make([]domain.StoredEvent, 0, len(events))
	now := time.Now().UTC()

	for i, ev := range events {
		s.nextID++

		se := domain.StoredEvent{
			ID:          s.nextID,
			AggregateID: streamID,
			Sequence:    expectedVersion + uint64(i) + 1,
			Type:        ev.Type,
			Payload:     ev.Payload,
			TenantID:    ev.TenantID,
			Timestamp:   now,
		}
		committed = append(committed, se)
	}

	s.streams[streamID] = append(current, committed...)

	return s.streams[streamID][len(s.streams[streamID])-1].Sequence, committed, nil
}

func (s *MemoryStore) Load(ctx context.Context, streamID string) ([]domain.StoredEvent, error) {
	return s.LoadFrom(ctx, streamID, 0)
}

func (s *MemoryStore) LoadFrom(_ context.Context, streamID string, afterVersion uint64) ([]domain.StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.StoredEvent

	for _, e := range s.streams[streamID] {
		if e.Sequence > afterVersion {
			out = append(out, e)
		}
	}

	return out, nil
}
