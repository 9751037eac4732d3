package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeroframe-io/core/internal/auth"
	"github.com/aeroframe-io/core/internal/domain"
)

func pilotA() auth.Principal {
	tenantA := "tenant-a"
	return auth.Principal{UserID: "p_A", Role: domain.RolePilot, TenantID: &tenantA}
}

// S5 — baseline subscriptions cover the principal's own channels.
func TestNewSession_BaselineChannels(t *testing.T) {
	sess := NewSession(pilotA(), time.Now())

	assert.True(t, sess.IsSubscribed("user:p_A:updates"))
	assert.True(t, sess.IsSubscribed("user:p_A:apikeys"))
	assert.True(t, sess.IsSubscribed("tenant:tenant-a:updates"))
	assert.False(t, sess.IsSubscribed("user:p_B:updates"))
}

// P7 — channel whitelist rejects a foreign channel.
func TestHandleInbound_SubscribeRejectsForeignChannel(t *testing.T) {
	sess := NewSession(pilotA(), time.Now())

	frame, _ := json.Marshal(map[string]any{"type": "subscribe", "channels": []string{"user:p_B:updates"}})

	outbound, mustClose := sess.HandleInbound(frame, time.Now())
	require.False(t, mustClose)
	require.Len(t, outbound, 1)

	var ack ackFrame
	require.NoError(t, json.Unmarshal(outbound[0], &ack))
	assert.Equal(t, "ack", ack.Type)
	assert.Equal(t, "subscribe", ack.Action)
	assert.Equal(t, []string{"user:p_B:updates"}, ack.Rejected)
	assert.Empty(t, ack.Accepted)
	assert.False(t, sess.IsSubscribed("user:p_B:updates"))
}

func TestHandleInbound_SubscribeAcceptsOwnChannel(t *testing.T) {
	platformAdmin := auth.Principal{UserID: "pa", Role: domain.RolePlatformAdmin}

	sess := NewSession(platformAdmin, time.Now())

	frame, _ := json.Marshal(map[string]any{"type": "subscribe", "channels": []string{"user:pa:updates"}})
	outbound, mustClose := sess.HandleInbound(frame, time.Now())
	require.False(t, mustClose)

	var ack ackFrame
	require.NoError(t, json.Unmarshal(outbound[0], &ack))
	assert.Equal(t, []string{"user:pa:updates"}, ack.Accepted)
}

func TestHandleInbound_Unsubscribe(t *testing.T) {
	sess := NewSession(pilotA(), time.Now())
	require.True(t, sess.IsSubscribed("user:p_A:apikeys"))

	frame, _ := json.Marshal(map[string]any{
		"type":     "unsubscribe",
		"channels": []string{"user:p_A:apikeys", "user:never:subscribed"},
	})

	outbound, mustClose := sess.HandleInbound(frame, time.Now())
	require.False(t, mustClose)
	require.Len(t, outbound, 1)

	var ack ackFrame
	require.NoError(t, json.Unmarshal(outbound[0], &ack))
	assert.Equal(t, "ack", ack.Type)
	assert.Equal(t, "unsubscribe", ack.Action)
	assert.Equal(t, []string{"user:p_A:apikeys"}, ack.Removed)
	assert.Equal(t, []string{"user:never:subscribed"}, ack.Missing)
	assert.False(t, sess.IsSubscribed("user:p_A:apikeys"))
}

func TestHandleInbound_Ping(t *testing.T) {
	sess := NewSession(pilotA(), time.Now())

	id := "123"
	frame, _ := json.Marshal(map[string]any{"type": "ping", "id": id})

	outbound, mustClose := sess.HandleInbound(frame, time.Now())
	require.False(t, mustClose)

	var pong pongFrame
	require.NoError(t, json.Unmarshal(outbound[0], &pong))
	assert.Equal(t, "pong", pong.Type)
	require.NotNil(t, pong.ID)
	assert.Equal(t, id, *pong.ID)
}

func TestHandleInbound_MalformedFrame(t *testing.T) {
	sess := NewSession(pilotA(), time.Now())

	outbound, mustClose := sess.HandleInbound([]byte("not json"), time.Now())
	require.False(t, mustClose)

	var ef errorFrame
	require.NoError(t, json.Unmarshal(outbound[0], &ef))
	assert.Equal(t, "invalid_message", ef.Code)
}

// P8 — sliding-window rate limit: the 11th control frame within 10s
// triggers rate_limited; after 3 such violations the connection must
// close with code 1008.
func TestHandleInbound_RateLimitThenClose(t *testing.T) {
	sess := NewSession(pilotA(), time.Now())

	base := time.Now()
	ping := func() ([][]byte, bool) {
		frame, _ := json.Marshal(map[string]any{"type": "ping"})
		return sess.HandleInbound(frame, base)
	}

	for i := 0; i < 10; i++ {
		_, mustClose := ping()
		require.False(t, mustClose)
	}

	// 11th frame within the same instant: first violation.
	outbound, mustClose := ping()
	require.False(t, mustClose)

	var ef errorFrame
	require.NoError(t, json.Unmarshal(outbound[0], &ef))
	assert.Equal(t, "rate_limited", ef.Code)

	// two more violations accumulate strikes to the close threshold.
	_, mustClose = ping()
	assert.False(t, mustClose)

	_, mustClose = ping()
	assert.True(t, mustClose)
}

func TestIdleSince(t *testing.T) {
	start := time.Now()
	sess := NewSession(pilotA(), start)

	assert.Equal(t, time.Duration(0), sess.IdleSince(start))
	assert.Equal(t, time.Minute, sess.IdleSince(start.Add(time.Minute)))
}
