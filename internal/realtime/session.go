package realtime

import (
	"encoding/json"
	"time"

	"github.com/aeroframe-io/core/internal/auth"
	"github.com/aeroframe-io/core/internal/telemetry"
)

const (
	rateWindow     = 10 * time.Second
	rateMaxFrames  = 10
	rateMaxStrikes = 3

	// CloseRateLimited is the WebSocket close code for a connection shut
	// down after repeated rate-limit violations (spec.md §4.10).
	CloseRateLimited = 1008
)

// Session holds the per-connection state (spec.md §4.10) and implements
// the inbound-frame state machine independently of the transport, so it
// can be exercised without a live socket.
type Session struct {
	Principal     auth.Principal
	subscriptions map[string]bool
	window        *slidingWindow
	lastInbound   time.Time
}

func NewSession(principal auth.Principal, now time.Time) *Session {
	s := &Session{
		Principal:     principal,
		subscriptions: map[string]bool{},
		window:        newSlidingWindow(rateWindow, rateMaxFrames, rateMaxStrikes),
		lastInbound:   now,
	}

	for _, c := range baselineChannels(principal) {
		s.subscriptions[c] = true
	}

	return s
}

func (s *Session) Channels() []string {
	channels := make([]string, 0, len(s.subscriptions))
	for c := range s.subscriptions {
		channels = append(channels, c)
	}

	return channels
}

func (s *Session) IsSubscribed(channel string) bool {
	return s.subscriptions[channel]
}

func (s *Session) IdleSince(now time.Time) time.Duration {
	return now.Sub(s.lastInbound)
}

// HandleInbound processes one inbound text frame, returning zero or more
// outbound frames to send and whether the rate-limit policy now requires
// closing the connection with CloseRateLimited.
func (s *Session) HandleInbound(raw []byte, now time.Time) (outbound [][]byte, mustClose bool) {
	s.lastInbound = now

	ok, strikeClose := s.window.allow(now)
	if !ok {
		telemetry.RealtimeRateLimitViolations.Inc()
		outbound = append(outbound, encodeFrame(errorFrame{Type: "error", Code: "rate_limited", Message: "too many control frames"}))
		return outbound, strikeClose
	}

	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return [][]byte{encodeFrame(errorFrame{Type: "error", Code: "invalid_message", Message: "malformed frame"})}, false
	}

	switch frame.Type {
	case "subscribe":
		return [][]byte{s.handleSubscribe(frame.Channels)}, false
	case "unsubscribe":
		return [][]byte{s.handleUnsubscribe(frame.Channels)}, false
	case "ping":
		return [][]byte{encodeFrame(pongFrame{Type: "pong", ID: frame.ID})}, false
	default:
		return [][]byte{encodeFrame(errorFrame{Type: "error", Code: "invalid_message", Message: "unknown frame type"})}, false
	}
}

func (s *Session) handleSubscribe(channels []string) []byte {
	accepted := []string{}
	rejected := []string{}

	for _, c := range channels {
		if channelAllowed(s.Principal, c) {
			s.subscriptions[c] = true
			accepted = append(accepted, c)
		} else {
			rejected = append(rejected, c)
		}
	}

	return encodeFrame(ackFrame{Type: "ack", Action: "subscribe", Accepted: accepted, Rejected: rejected})
}

func (s *Session) handleUnsubscribe(channels []string) []byte {
	removed := []string{}
	missing := []string{}

	for _, c := range channels {
		if s.subscriptions[c] {
			delete(s.subscriptions, c)
			removed = append(removed, c)
		} else {
			missing = append(missing, c)
		}
	}

	return encodeFrame(ackFrame{Type: "ack", Action: "unsubscribe", Removed: removed, Missing: missing})
}

// EncodeEvent renders an outbound event frame for a message delivered on
// a subscribed channel.
func EncodeEvent(channel string, payload json.RawMessage) []byte {
	return encodeFrame(eventFrame{Type: "event", Channel: channel, Payload: json.RawMessage(payload)})
}

// EncodeHeartbeat renders the periodic heartbeat frame.
func EncodeHeartbeat(now time.Time) []byte {
	return encodeFrame(heartbeatFrame{Type: "heartbeat", TS: now.UTC().Format(time.RFC3339)})
}
