// Package events publishes account lifecycle events for other services.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/videotube/accounts/internal/mq"
)

// DefaultChannel is the queue/topic account events are published on.
const DefaultChannel = "account-events"

// Event types.
const (
	UserRegistered         = "user.registered"
	UserLoggedIn           = "user.logged_in"
	UserLoggedOut          = "user.logged_out"
	SessionRefreshed       = "session.refreshed"
	SessionRefreshRejected = "session.refresh_rejected"
	PasswordChanged        = "user.password_changed"
)

// Event is the JSON body of a published message.
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	UserID     string            `json:"userId,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// New returns an event of the given type stamped with a fresh id and the current time.
func New(eventType, userID string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events. Implementations never block a request on a
// broker failure for longer than the caller's context allows.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// MQPublisher publishes events on an mq.Backend. Failures are logged and dropped.
type MQPublisher struct {
	backend mq.Backend
	channel string
	logger  *slog.Logger
}

// NewMQPublisher publishes to channel on backend, DefaultChannel when empty.
func NewMQPublisher(backend mq.Backend, channel string, logger *slog.Logger) *MQPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &MQPublisher{backend: backend, channel: channel, logger: logger}
}

func (p *MQPublisher) Publish(ctx context.Context, event Event) {
	if err := p.publish(ctx, event); err != nil {
		p.logger.WarnContext(ctx, "publish account event failed",
			slog.String("type", event.Type),
			slog.String("user_id", event.UserID),
			slog.Any("error", err),
		)
	}
}

func (p *MQPublisher) publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = p.backend.Publish(ctx, p.channel, body, map[string]string{"type": event.Type})
	return err
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// Decode parses a message body produced by MQPublisher.
func Decode(msg mq.Message) (Event, error) {
	var event Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return Event{}, fmt.Errorf("decode event %s: %w", msg.ID, err)
	}
	return event, nil
}
