// Package eventstore implements the event store (C1): a durable,
// append-only log with per-stream optimistic concurrency.
package eventstore

import (
	"context"

	"github.com/aeroframe-io/core/internal/domain"
)

// Store is the contract every command handler depends on.
type Store interface {
	// Append writes events with sequences expectedVersion+1..+len(events).
	// Atomic: all or nothing. Returns ErrConflict iff the persisted
	// version differs from expectedVersion at commit time.
	Append(ctx context.Context, streamID string, expectedVersion uint64, events []domain.NewEvent) (newVersion uint64, committed []domain.StoredEvent, err error)

	// Load returns the full stream in ascending sequence order.
	Load(ctx context.Context, streamID string) ([]domain.StoredEvent, error)

	// LoadFrom returns events starting at sequence afterVersion+1.
	LoadFrom(ctx context.Context, streamID string, afterVersion uint64) ([]domain.StoredEvent, error)
}

// ErrConflict is returned by Append when expectedVersion does not match
// the stream's persisted version. Callers may reload and retry; the
// store never retries automatically.
type ErrConflict struct {
	StreamID string
}

func (e *ErrConflict) Error() string {
	return "event store: version conflict on stream " + e.StreamID
}
