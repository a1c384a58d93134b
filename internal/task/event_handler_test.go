package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/digest-api/internal/events"
)

func TestDispatchEventHandler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("enqueues submitted jobs", func(t *testing.T) {
		d := &recordingDispatcher{}
		h := NewDispatchEventHandler(d, setupTestLogger())

		event, err := events.NewJobSubmitted(12, 3)
		require.NoError(t, err)
		require.NoError(t, h.HandleEvent(ctx, event))
		assert.Equal(t, []int64{12}, d.IDs())
	})

	t.Run("ignores other event types", func(t *testing.T) {
		d := &recordingDispatcher{}
		h := NewDispatchEventHandler(d, setupTestLogger())

		event, err := events.New("user_registered", map[string]int{"user_id": 1})
		require.NoError(t, err)
		require.NoError(t, h.HandleEvent(ctx, event))
		assert.Empty(t, d.IDs())
	})

	t.Run("reports dispatch failures", func(t *testing.T) {
		d := &recordingDispatcher{err: ErrQueueFull}
		h := NewDispatchEventHandler(d, setupTestLogger())

		event, err := events.NewJobSubmitted(12, 3)
		require.NoError(t, err)
		assert.ErrorIs(t, h.HandleEvent(ctx, event), ErrQueueFull)
	})

	t.Run("rejects malformed payloads", func(t *testing.T) {
		h := NewDispatchEventHandler(&recordingDispatcher{}, setupTestLogger())
		event := &events.Event{Type: events.TypeJobSubmitted, Payload: []byte(`{"job_id":"x"}`)}
		assert.Error(t, h.HandleEvent(ctx, event))
	})
}
