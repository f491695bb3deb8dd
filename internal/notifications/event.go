package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labstore-backend/pkg/enums"
)

// Event is a message handed to the dispatcher. Payload must be JSON encodable.
type Event struct {
	ID         uuid.UUID                   `json:"id"`
	Type       enums.NotificationEventType `json:"type"`
	Key        string                      `json:"key"`
	OccurredAt time.Time                   `json:"occurred_at"`
	Payload    any                         `json:"payload"`
}

// NewEvent stamps a new event with a fresh id.
func NewEvent(eventType enums.NotificationEventType, key string, payload any, at time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		Key:        key,
		OccurredAt: at.UTC(),
		Payload:    payload,
	}
}

// Sink delivers one event to its destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event Event) error
}

// Dispatcher accepts events without blocking the caller. Enqueue reports
// whether the event was accepted.
type Dispatcher interface {
	Enqueue(ctx context.Context, event Event) bool
}
