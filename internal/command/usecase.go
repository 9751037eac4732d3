// Package command implements the command handlers (C6): authorize, load,
// execute, append, publish, mutate-caches, grounded on the teacher's
// services/command UseCase aggregating repository interfaces as fields.
package command

import (
	"errors"
	"time"

	"github.com/aeroframe-io/core/internal/apperr"
	"github.com/aeroframe-io/core/internal/authcache"
	"github.com/aeroframe-io/core/internal/eventbus"
	"github.com/aeroframe-io/core/internal/eventstore"
	"github.com/aeroframe-io/core/internal/mlog"
	"github.com/aeroframe-io/core/internal/readmodel"
	"github.com/aeroframe-io/core/internal/telemetry"
)

// UseCase aggregates every dependency a command handler needs. One
// instance is built at startup and passed explicitly — no globals, per
// the "global state" design note.
type UseCase struct {
	Store        eventstore.Store
	Publisher    eventbus.Publisher
	AuthCache    authcache.Cache
	ReadModel    readmodel.Reader
	Logger       mlog.Logger
	ApiKeyPepper []byte
	AuthCacheTTL time.Duration
}

func NewUseCase(store eventstore.Store, publisher eventbus.Publisher, cache authcache.Cache, rm readmodel.Reader, logger mlog.Logger, pepper []byte, authCacheTTL time.Duration) *UseCase {
	return &UseCase{
		Store:        store,
		Publisher:    publisher,
		AuthCache:    cache,
		ReadModel:    rm,
		Logger:       logger,
		ApiKeyPepper: pepper,
		AuthCacheTTL: authCacheTTL,
	}
}

// translateStoreErr maps an eventstore.Append error onto the HTTP-facing
// taxonomy: a version conflict is Conflict/409 and retryable by the
// caller (spec.md §4.1); anything else is an I/O failure and fatal to the
// command in progress.
func translateStoreErr(err error) error {
	if err == nil {
		return nil
	}

	var conflict *eventstore.ErrConflict
	if errors.As(err, &conflict) {
		return apperr.Conflict("stream was modified concurrently, reload and retry", err)
	}

	return apperr.Internal("event store append failed", err)
}

// instrument records command-handler latency and outcome; called via
// defer with the handler's named error return.
func instrument(name string, start time.Time, errp *error) {
	outcome := "success"
	if errp != nil && *errp != nil {
		outcome = "error"
	}

	telemetry.CommandDuration.WithLabelValues(name, outcome).Observe(time.Since(start).Seconds())
}
