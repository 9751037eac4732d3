package eventstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeroframe-io/core/internal/domain"
	"github.com/aeroframe-io/core/internal/eventstore"
)

// P1: sequences form 1,2,...,N with no gaps.
func TestAppend_NoGaps(t *testing.T) {
	s := eventstore.NewMemoryStore()
	ctx := context.Background()

	v, _, err := s.Append(ctx, "stream-1", 0, []domain.NewEvent{{Type: "A"}, {Type: "B"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)

	events, err := s.Load(ctx, "stream-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(1), events[0].Sequence)
	assert.Equal(t, uint64(2), events[1].Sequence)
}

// P2: append succeeds iff current version = expected; repeated calls with
// same expected version succeed exactly once.
func TestAppend_OptimisticConcurrency(t *testing.T) {
	s := eventstore.NewMemoryStore()
	ctx := context.Background()

	_, _, err := s.Append(ctx, "stream-1", 0, []domain.NewEvent{{Type: "A"}})
	require.NoError(t, err)

	_, _, err = s.Append(ctx, "stream-1", 0, []domain.NewEvent{{Type: "A2"}})
	assert.Error(t, err)

	_, _, err = s.Append(ctx, "stream-1", 1, []domain.NewEvent{{Type: "B"}})
	assert.NoError(t, err)
}

// S3: two concurrent handlers load at version v; the loser reloads and
// retries successfully.
func TestAppend_ConcurrentWritersOneWinsOneRetries(t *testing.T) {
	s := eventstore.NewMemoryStore()
	ctx := context.Background()

	_, _, err := s.Append(ctx, "u1", 0, []domain.NewEvent{{Type: "UserRegistered"}})
	require.NoError(t, err)

	var wg sync.WaitGroup

	results := make(chan error, 2)

	attempt := func() {
		defer wg.Done()

		for try := 0; try < 2; try++ {
			events, err := s.Load(ctx, "u1")
			if err != nil {
				results <- err
				return
			}

			v := uint64(len(events))

			_, _, err = s.Append(ctx, "u1", v, []domain.NewEvent{{Type: "ApiKeyGenerated"}})

			var conflict *eventstore.ErrConflict
			if try == 0 && errors.As(err, &conflict) {
				continue // lost the race: reload and retry once
			}

			results <- err
			return
		}
	}

	wg.Add(2)
	go attempt()
	go attempt()
	wg.Wait()
	close(results)

	var errs []error
	for e := range results {
		errs = append(errs, e)
	}

	successes := 0
	for _, e := range errs {
		if e == nil {
			successes++
		}
	}
	// one writer wins on its first try; the other either also succeeds
	// first time (no overlap) or conflicts, reloads and succeeds on retry.
	assert.Equal(t, 2, successes)

	final, err := s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, final, 3)
}
