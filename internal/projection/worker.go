// Package projection implements the projection worker (C7): drains the
// event bus, writes idempotent read-model updates, and publishes
// notification envelopes, grounded on the teacher's MultiQueueConsumer
// handler-per-event-type pattern (bootstrap/consumer.go).
package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aeroframe-io/core/internal/domain"
	"github.com/aeroframe-io/core/internal/eventbus"
	"github.com/aeroframe-io/core/internal/mlog"
	"github.com/aeroframe-io/core/internal/notifybus"
	"github.com/aeroframe-io/core/internal/readmodel"
)

// Worker applies one eventbus.Message at a time. Handle is the function
// passed to eventbus.Consume.
type Worker struct {
	ReadModel readmodel.Writer
	Notify    notifybus.Bus
	Logger    mlog.Logger
}

func NewWorker(rm readmodel.Writer, notify notifybus.Bus, logger mlog.Logger) *Worker {
	return &Worker{ReadModel: rm, Notify: notify, Logger: logger}
}

// Handle decodes the message by event_type, applies the corresponding
// idempotent read-model write, then publishes an envelope on C3. Handlers
// are upserts throughout so replaying any prefix of a stream, including
// duplicate deliveries, yields the same terminal row (P5, S4).
func (w *Worker) Handle(ctx context.Context, msg eventbus.Message) error {
	var (
		data any
		err  error
	)

	switch msg.EventType {
	case domain.EventTenantCreated:
		data, err = w.applyTenantCreated(ctx, msg)
	case domain.EventUserRegistered:
		data, err = w.applyUserRegistered(ctx, msg)
	case domain.EventPasswordChanged:
		data, err = w.applyPasswordChanged(ctx, msg)
	case domain.EventApiKeyGenerated:
		data, err = w.applyApiKeyGenerated(ctx, msg)
	case domain.EventApiKeyRevoked:
		data, err = w.applyApiKeyRevoked(ctx, msg)
	default:
		w.Logger.Warnf("projection: unknown event type %q on stream %s, acking without effect", msg.EventType, msg.AggregateID)
		return nil
	}

	if err != nil {
		return fmt.Errorf("projection: applying %s for %s: %w", msg.EventType, msg.AggregateID, err)
	}

	return w.publishEnvelope(ctx, msg, data)
}

func (w *Worker) publishEnvelope(ctx context.Context, msg eventbus.Message, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal envelope data: %w", err)
	}

	version := msg.Sequence
	env := notifybus.Envelope{
		EventType: string(msg.EventType),
		Timestamp: time.Now().UTC(),
		Data:      body,
		Meta: notifybus.EnvelopeMeta{
			TenantID:    msg.TenantID,
			AggregateID: msg.AggregateID,
			Version:     &version,
		},
	}

	for _, channel := range channelsFor(msg) {
		if err := w.Notify.Publish(ctx, channel, env); err != nil {
			w.Logger.Errorf("projection: notify publish failed on %s: %v", channel, err)
		}
	}

	return nil
}

// channelsFor returns the channels an event's envelope should fan out to,
// matching the baseline-subscription channel names in spec.md §4.3/§4.10.
func channelsFor(msg eventbus.Message) []string {
	switch msg.EventType {
	case domain.EventTenantCreated:
		return []string{fmt.Sprintf("tenant:%s:updates", msg.AggregateID)}
	case domain.EventApiKeyGenerated, domain.EventApiKeyRevoked:
		channels := []string{fmt.Sprintf("user:%s:apikeys", msg.AggregateID)}
		if msg.TenantID != nil {
			channels = append(channels, fmt.Sprintf("tenant:%s:updates", *msg.TenantID))
		}

		return channels
	default:
		channels := []string{fmt.Sprintf("user:%s:updates", msg.AggregateID)}
		if msg.TenantID != nil {
			channels = append(channels, fmt.Sprintf("tenant:%s:updates", *msg.TenantID))
		}

		return channels
	}
}

func (w *Worker) applyTenantCreated(ctx context.Context, msg eventbus.Message) (any, error) {
	var p domain.TenantCreatedPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return nil, err
	}

	if err := w.ReadModel.UpsertTenant(ctx, readmodel.Tenant{TenantID: msg.AggregateID, Name: p.Name}); err != nil {
		return nil, err
	}

	return map[string]any{"tenant_id": msg.AggregateID, "name": p.Name}, nil
}

func (w *Worker) applyUserRegistered(ctx context.Context, msg eventbus.Message) (any, error) {
	var p domain.UserRegisteredPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return nil, err
	}

	u := readmodel.User{
		UserID:       msg.AggregateID,
		TenantID:     p.TenantID,
		Username:     p.Username,
		Email:        p.Email,
		Role:         string(p.Role),
		PasswordHash: p.PasswordHash,
	}

	if err := w.ReadModel.UpsertUser(ctx, u); err != nil {
		return nil, err
	}

	return map[string]any{"user_id": msg.AggregateID, "username": p.Username, "email": p.Email, "role": p.Role}, nil
}

func (w *Worker) applyPasswordChanged(ctx context.Context, msg eventbus.Message) (any, error) {
	var p domain.PasswordChangedPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return nil, err
	}

	if err := w.ReadModel.UpdateUserPasswordHash(ctx, msg.AggregateID, p.NewPasswordHash, time.Now().UTC()); err != nil {
		return nil, err
	}

	return map[string]any{"user_id": msg.AggregateID}, nil
}

func (w *Worker) applyApiKeyGenerated(ctx context.Context, msg eventbus.Message) (any, error) {
	var p domain.ApiKeyGeneratedPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return nil, err
	}

	k := readmodel.ApiKey{
		KeyID:      p.KeyID,
		UserID:     msg.AggregateID,
		TenantID:   msg.TenantID,
		KeyName:    p.Name,
		ApiKeyHash: p.Hash,
		CreatedAt:  p.CreatedAt,
	}

	if err := w.ReadModel.UpsertApiKey(ctx, k); err != nil {
		return nil, err
	}

	return map[string]any{"user_id": msg.AggregateID, "key_id": p.KeyID, "name": p.Name}, nil
}

func (w *Worker) applyApiKeyRevoked(ctx context.Context, msg eventbus.Message) (any, error) {
	var p domain.ApiKeyRevokedPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return nil, err
	}

	if err := w.ReadModel.RevokeApiKey(ctx, p.KeyID, time.Now().UTC()); err != nil {
		return nil, err
	}

	return map[string]any{"user_id": msg.AggregateID, "key_id": p.KeyID}, nil
}
