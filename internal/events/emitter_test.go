package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	events []*Event
	err    error
}

func (h *recordingHandler) HandleEvent(_ context.Context, e *Event) error {
	h.events = append(h.events, e)
	return h.err
}

func TestNewJobSubmitted(t *testing.T) {
	t.Parallel()

	event, err := NewJobSubmitted(7, 3)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, TypeJobSubmitted, event.Type)

	var payload JobSubmitted
	require.NoError(t, event.UnmarshalPayload(&payload))
	assert.Equal(t, JobSubmitted{JobID: 7, UserID: 3}, payload)
}

func TestInMemoryEmitter(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("no handlers", func(t *testing.T) {
		t.Parallel()
		event, err := NewJobSubmitted(1, 1)
		require.NoError(t, err)
		assert.NoError(t, NewInMemoryEmitter(logger).Emit(context.Background(), event))
	})

	t.Run("failing handler does not stop delivery", func(t *testing.T) {
		t.Parallel()
		emitter := NewInMemoryEmitter(logger)
		failing := &recordingHandler{err: errors.New("queue full")}
		ok := &recordingHandler{}
		emitter.RegisterHandler(failing)
		emitter.RegisterHandler(ok)

		var called bool
		emitter.RegisterHandler(HandlerFunc(func(context.Context, *Event) error {
			called = true
			return nil
		}))

		event, err := NewJobSubmitted(2, 1)
		require.NoError(t, err)

		err = emitter.Emit(context.Background(), event)
		assert.ErrorContains(t, err, "queue full")
		assert.Len(t, failing.events, 1)
		assert.Equal(t, []*Event{event}, ok.events)
		assert.True(t, called)
	})
}
