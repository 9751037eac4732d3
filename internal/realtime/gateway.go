package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/aeroframe-io/core/internal/auth"
	"github.com/aeroframe-io/core/internal/authn"
	"github.com/aeroframe-io/core/internal/mlog"
	"github.com/aeroframe-io/core/internal/notifybus"
	"github.com/aeroframe-io/core/internal/telemetry"
)

const (
	heartbeatInterval = 30 * time.Second
	idleTimeout       = 90 * time.Second

	closeNormal        = 1000
	closeInternalError = 1011
)

// Gateway upgrades authenticated HTTP requests to WebSocket connections
// and runs the C9 real-time protocol over them.
type Gateway struct {
	Authenticator *authn.Authenticator
	Notify        notifybus.Bus
	Logger        mlog.Logger
}

func NewGateway(authenticator *authn.Authenticator, notify notifybus.Bus, logger mlog.Logger) *Gateway {
	return &Gateway{Authenticator: authenticator, Notify: notify, Logger: logger}
}

// Upgrade authenticates the handshake before fiber/websocket takes over
// the connection; a failure here responds 401 without upgrading, per
// spec.md §4.10 (4401 is unreachable — auth happens pre-upgrade).
func (g *Gateway) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	key := extractApiKey(c)

	principal, err := g.Authenticator.Authenticate(c.Context(), key)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	c.Locals("principal", principal)

	return websocket.New(g.handle)(c)
}

func extractApiKey(c *fiber.Ctx) string {
	if hdr := c.Get("Authorization"); len(hdr) > 7 && hdr[:7] == "Bearer " {
		return hdr[7:]
	}

	return c.Query("api_key")
}

// handle runs for the lifetime of one WebSocket connection: three
// cooperative tasks (inbound reader in this goroutine, notification
// forwarder, heartbeat ticker) share a cancellation context. When the
// reader ends, the context is cancelled and the other two stop. A write
// failure in the forwarder or the heartbeat ends only that goroutine; the
// reader keeps running until its next read fails or the idle deadline
// passes.
func (g *Gateway) handle(conn *websocket.Conn) {
	principal, _ := conn.Locals("principal").(*auth.Principal)
	if principal == nil {
		closeConn(conn, closeInternalError)
		return
	}

	sess := NewSession(*principal, time.Now())

	telemetry.RealtimeConnections.Inc()
	defer telemetry.RealtimeConnections.Dec()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := g.Notify.Subscribe(ctx, sess.Channels()...)
	defer sub.Close()

	forwarderDone := make(chan struct{})
	heartbeatDone := make(chan struct{})

	go g.forwardNotifications(ctx, conn, sub, forwarderDone)
	go g.heartbeat(ctx, conn, heartbeatDone)

	defer func() {
		cancel()
		<-forwarderDone
		<-heartbeatDone
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))

		_, raw, err := conn.ReadMessage()
		if err != nil {
			closeConn(conn, closeNormal)
			return
		}

		now := time.Now()

		outbound, mustClose := sess.HandleInbound(raw, now)
		for _, frame := range outbound {
			if werr := conn.WriteMessage(websocket.TextMessage, frame); werr != nil {
				closeConn(conn, closeInternalError)
				return
			}
		}

		if mustClose {
			closeConn(conn, CloseRateLimited)
			return
		}

		if sess.IdleSince(now) > idleTimeout {
			closeConn(conn, closeNormal)
			return
		}
	}
}

func (g *Gateway) forwardNotifications(ctx context.Context, conn *websocket.Conn, sub notifybus.Subscription, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-sub.Channel():
			if !ok {
				return
			}

			payload, err := json.Marshal(delivery.Envelope)
			if err != nil {
				continue
			}

			if err := conn.WriteMessage(websocket.TextMessage, EncodeEvent(delivery.Channel, json.RawMessage(payload))); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) heartbeat(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := conn.WriteMessage(websocket.TextMessage, EncodeHeartbeat(now)); err != nil {
				return
			}
		}
	}
}

func closeConn(conn *websocket.Conn, code int) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, ""), time.Now().Add(time.Second))
	_ = conn.Close()
}
