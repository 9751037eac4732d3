package projection_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeroframe-io/core/internal/domain"
	"github.com/aeroframe-io/core/internal/eventbus"
	"github.com/aeroframe-io/core/internal/mlog"
	"github.com/aeroframe-io/core/internal/notifybus"
	"github.com/aeroframe-io/core/internal/projection"
	"github.com/aeroframe-io/core/internal/readmodel"
)

// S4 — Projection idempotence: delivering UserRegistered(U) twice yields
// exactly one row, no error.
func TestWorker_UserRegistered_Idempotent(t *testing.T) {
	rm := readmodel.NewMemoryRepository()
	notify := notifybus.NewMemoryBus()
	w := projection.NewWorker(rm, notify, &mlog.NoneLogger{})

	payload, err := json.Marshal(domain.UserRegisteredPayload{Username: "u", Email: "u@x.test", Role: domain.RolePlatformAdmin})
	require.NoError(t, err)

	msg := eventbus.Message{AggregateID: "user-1", Sequence: 1, EventType: domain.EventUserRegistered, Payload: payload}

	require.NoError(t, w.Handle(context.Background(), msg))
	require.NoError(t, w.Handle(context.Background(), msg))

	u, err := rm.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u", u.Username)

	total, err := rm.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestWorker_ApiKeyRevoked_PublishesEnvelope(t *testing.T) {
	rm := readmodel.NewMemoryRepository()
	notify := notifybus.NewMemoryBus()
	w := projection.NewWorker(rm, notify, &mlog.NoneLogger{})

	sub := notify.Subscribe(context.Background(), "user:user-1:apikeys")
	defer sub.Close()

	payload, err := json.Marshal(domain.ApiKeyRevokedPayload{KeyID: "key_1"})
	require.NoError(t, err)

	msg := eventbus.Message{AggregateID: "user-1", Sequence: 2, EventType: domain.EventApiKeyRevoked, Payload: payload}
	require.NoError(t, w.Handle(context.Background(), msg))

	select {
	case delivery := <-sub.Channel():
		assert.Equal(t, "ApiKeyRevoked", delivery.Envelope.EventType)
	default:
		t.Fatal("expected an envelope to be published")
	}
}
