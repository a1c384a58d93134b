package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/digest-api/internal/events"
)

// DispatchEventHandler enqueues submitted jobs on a Dispatcher.
type DispatchEventHandler struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

var _ events.Handler = (*DispatchEventHandler)(nil)

// NewDispatchEventHandler creates a handler for JobSubmitted events.
func NewDispatchEventHandler(dispatcher Dispatcher, logger *slog.Logger) *DispatchEventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DispatchEventHandler{
		dispatcher: dispatcher,
		logger:     logger.With(slog.String("component", "dispatch_event_handler")),
	}
}

// HandleEvent enqueues the job named by a JobSubmitted event and ignores
// other event types.
func (h *DispatchEventHandler) HandleEvent(ctx context.Context, event *events.Event) error {
	if event.Type != events.TypeJobSubmitted {
		h.logger.DebugContext(ctx, "ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	var payload events.JobSubmitted
	if err := event.UnmarshalPayload(&payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload of event %s: %w", event.ID, err)
	}
	if payload.JobID <= 0 {
		return fmt.Errorf("event %s has invalid job ID %d", event.ID, payload.JobID)
	}

	if err := h.dispatcher.Enqueue(ctx, payload.JobID); err != nil {
		return fmt.Errorf("failed to enqueue job %d: %w", payload.JobID, err)
	}

	h.logger.InfoContext(ctx, "job dispatched",
		"job_id", payload.JobID,
		"event_id", event.ID)
	return nil
}
