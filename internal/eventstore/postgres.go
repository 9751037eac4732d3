package eventstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aeroframe-io/core/internal/domain"
	"github.com/aeroframe-io/core/internal/mlog"
	"github.com/aeroframe-io/core/internal/telemetry"
)

// PostgresStore is the C1 implementation. Grounded on the teacher's
// account.postgresql.go repository shape: a thin wrapper over
// *sql.DB (pgx stdlib driver), raw parameterized SQL, pgconn.PgError
// inspected for constraint violations.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

// streamLockKey serializes concurrent appends to the same stream via a
// Postgres advisory transaction lock, released automatically at commit.
// The unique (aggregate_id, sequence) constraint remains the ultimate
// source of truth for conflict detection; the lock just avoids wasted
// round trips under contention.
func streamLockKey(streamID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(streamID))

	return int64(h.Sum64())
}

func (s *PostgresStore) Append(ctx context.Context, streamID string, expectedVersion uint64, events []domain.NewEvent) (uint64, []domain.StoredEvent, error) {
	logger := mlog.NewLoggerFromContext(ctx)

	if len(events) == 0 {
		return expectedVersion, nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("eventstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, streamLockKey(streamID)); err != nil {
		return 0, nil, fmt.Errorf("eventstore: advisory lock: %w", err)
	}

	var currentVersion uint64

	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(sequence), 0) FROM events WHERE aggregate_id = $1`, streamID)
	if err := row.Scan(&currentVersion); err != nil {
		return 0, nil, fmt.Errorf("eventstore: read current version: %w", err)
	}

	if currentVersion != expectedVersion {
		telemetry.AppendConflicts.WithLabelValues(streamTypeOf(streamID, events)).Inc()
		return 0, nil, &ErrConflict{StreamID: streamID}
	}

	committed := make([]domain.StoredEvent, 0, len(events))
	now := time.Now().UTC()

	for i, ev := range events {
		seq := expectedVersion + uint64(i) + 1

		var id int64

		err := tx.QueryRowContext(ctx, `
			INSERT INTO events (aggregate_id, sequence, event_type, payload, tenant_id, "timestamp")
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			streamID, seq, string(ev.Type), ev.Payload, ev.TenantID, now,
		).Scan(&id)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				telemetry.AppendConflicts.WithLabelValues(streamTypeOf(streamID, events)).Inc()
				return 0, nil, &ErrConflict{StreamID: streamID}
			}

			return 0, nil, fmt.Errorf("eventstore: insert event: %w", err)
		}

		committed = append(committed, domain.StoredEvent{
			ID:          id,
			AggregateID: streamID,
			Sequence:    seq,
			Type:        ev.Type,
			Payload:     ev.Payload,
			TenantID:    ev.TenantID,
			Timestamp:   now,
		})
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("eventstore: commit: %w", err)
	}

	logger.Debugf("eventstore: appended %d events to stream %s, new version %d", len(events), streamID, committed[len(committed)-1].Sequence)

	return committed[len(committed)-1].Sequence, committed, nil
}

// streamTypeOf labels a conflict metric by the event type being appended
// rather than the stream id, to keep cardinality bounded.
func streamTypeOf(_ string, events []domain.NewEvent) string {
	if len(events) == 0 {
		return "unknown"
	}

	return string(events[0].Type)
}

func (s *PostgresStore) Load(ctx context.Context, streamID string) ([]domain.StoredEvent, error) {
	return s.LoadFrom(ctx, streamID, 0)
}

func (s *PostgresStore) LoadFrom(ctx context.Context, streamID string, afterVersion uint64) ([]domain.StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, aggregate_id, sequence, event_type, payload, tenant_id, "timestamp"
		FROM events
		WHERE aggregate_id = $1 AND sequence > $2
		ORDER BY sequence ASC`, streamID, afterVersion)
	if err != nil {
		return nil, fmt.Errorf("eventstore: load stream %s: %w", streamID, err)
	}
	defer rows.Close()

	var out []domain.StoredEvent

	for rows.Next() {
		var (
			e        domain.StoredEvent
			evType   string
			tenantID sql.NullString
		)

		if err := rows.Scan(&e.ID, &e.AggregateID, &e.Sequence, &evType, &e.Payload, &tenantID, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("eventstore: scan event: %w", err)
		}

		e.Type = domain.EventType(evType)

		if tenantID.Valid {
			v := tenantID.String
			e.TenantID = &v
		}

		out = append(out, e)
	}

	return out, rows.Err()
}
