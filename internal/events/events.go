package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeJobSubmitted = "job_submitted"
)

// Event is a typed message with a JSON payload.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into v.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// New creates an event with the given type and JSON-encoded payload.
func New(eventType string, payload any) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// JobSubmitted is the payload of TypeJobSubmitted events.
type JobSubmitted struct {
	JobID  int64 `json:"job_id"`
	UserID int64 `json:"user_id"`
}

// NewJobSubmitted creates a TypeJobSubmitted event.
func NewJobSubmitted(jobID, userID int64) (*Event, error) {
	return New(TypeJobSubmitted, JobSubmitted{JobID: jobID, UserID: userID})
}

// Handler reacts to events.
type Handler interface {
	HandleEvent(ctx context.Context, event *Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent implements Handler.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// Emitter publishes events to registered handlers.
type Emitter interface {
	Emit(ctx context.Context, event *Event) error
}
