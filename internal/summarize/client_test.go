package summarize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	calls       atomic.Int32
	SummarizeFn func(ctx context.Context, text string) (string, error)
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Summarize(ctx context.Context, text string) (string, error) {
	b.calls.Add(1)
	return b.SummarizeFn(ctx, text)
}

type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func newTestClient(t *testing.T, b Backend, rec *sleepRecorder) *Client {
	t.Helper()
	c, err := NewClient(b, DefaultRetryPolicy(), slog.New(slog.NewTextHandler(io.Discard, nil)), WithSleep(rec.sleep))
	require.NoError(t, err)
	return c
}

func TestClient_Success(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{SummarizeFn: func(ctx context.Context, text string) (string, error) {
		return "  Felines rested while canines sprinted.  ", nil
	}}
	rec := &sleepRecorder{}
	c := newTestClient(t, b, rec)

	summary, err := c.Summarize(context.Background(), "The cat sat. The dog ran.")
	require.NoError(t, err)
	assert.Equal(t, "Felines rested while canines sprinted.", summary)
	assert.EqualValues(t, 1, b.calls.Load())
	assert.Empty(t, rec.delays)
}

func TestClient_InvalidInput(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{SummarizeFn: func(ctx context.Context, text string) (string, error) {
		t.Fatal("backend must not be called for blank input")
		return "", nil
	}}
	c := newTestClient(t, b, &sleepRecorder{})

	for _, input := range []string{"", "   ", "\n\t"} {
		_, err := c.Summarize(context.Background(), input)
		f := AsFailure(err)
		require.NotNil(t, f)
		assert.Equal(t, KindInvalidInput, f.Kind)
		assert.Zero(t, f.Attempts)
	}
}

func TestClient_RetryExhaustion(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{SummarizeFn: func(ctx context.Context, text string) (string, error) {
		return "", fmt.Errorf("%w: status 503", ErrTransient)
	}}
	rec := &sleepRecorder{}
	c := newTestClient(t, b, rec)

	_, err := c.Summarize(context.Background(), "Some long text.")
	f := AsFailure(err)
	require.NotNil(t, f)
	assert.Equal(t, KindTransient, f.Kind)
	assert.Equal(t, 3, f.Attempts)
	assert.EqualValues(t, 3, b.calls.Load())
	assert.Equal(t, []time.Duration{4 * time.Second, 8 * time.Second}, rec.delays)
	assert.Contains(t, f.Error(), "after 3 attempts")
	assert.ErrorIs(t, err, ErrTransient)
}

func TestClient_RecoversAfterTransientFailure(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{}
	b.SummarizeFn = func(ctx context.Context, text string) (string, error) {
		if b.calls.Load() < 2 {
			return "", fmt.Errorf("%w: connection reset", ErrTransient)
		}
		return "A short paraphrase", nil
	}
	rec := &sleepRecorder{}
	c := newTestClient(t, b, rec)

	summary, err := c.Summarize(context.Background(), "Original sentence one. Original sentence two.")
	require.NoError(t, err)
	assert.Equal(t, "A short paraphrase", summary)
	assert.EqualValues(t, 2, b.calls.Load())
	assert.Equal(t, []time.Duration{4 * time.Second}, rec.delays)
}

func TestClient_PermanentFailureIsNotRetried(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{SummarizeFn: func(ctx context.Context, text string) (string, error) {
		return "", fmt.Errorf("%w: model rejected input", ErrUpstream)
	}}
	c := newTestClient(t, b, &sleepRecorder{})

	_, err := c.Summarize(context.Background(), "Text.")
	f := AsFailure(err)
	require.NotNil(t, f)
	assert.Equal(t, KindUpstream, f.Kind)
	assert.EqualValues(t, 1, b.calls.Load())
}

func TestClient_AttemptTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{SummarizeFn: func(ctx context.Context, text string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	rec := &sleepRecorder{}
	policy := RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, AttemptTimeout: 10 * time.Millisecond}
	c, err := NewClient(b, policy, nil, WithSleep(rec.sleep))
	require.NoError(t, err)

	_, err = c.Summarize(context.Background(), "Text.")
	f := AsFailure(err)
	require.NotNil(t, f)
	assert.Equal(t, KindTransient, f.Kind)
	assert.EqualValues(t, 2, b.calls.Load())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_ExtractiveGuard(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{SummarizeFn: func(ctx context.Context, text string) (string, error) {
		return "The cat sat.", nil
	}}
	c := newTestClient(t, b, &sleepRecorder{})

	_, err := c.Summarize(context.Background(), "The cat sat. The dog ran.")
	f := AsFailure(err)
	require.NotNil(t, f)
	assert.Equal(t, KindExtractive, f.Kind)
	assert.Contains(t, f.Detail, "The cat sat")
	assert.EqualValues(t, 1, b.calls.Load())
}

func TestClient_ParaphraseSharingAbbreviations(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{SummarizeFn: func(ctx context.Context, text string) (string, error) {
		return "Growth in the U.S. beat forecasts at 2.5 percent.", nil
	}}
	c := newTestClient(t, b, &sleepRecorder{})

	summary, err := c.Summarize(context.Background(),
		"The U.S. economy grew 2.5 percent last year. Analysts expected less.")
	require.NoError(t, err)
	assert.Equal(t, "Growth in the U.S. beat forecasts at 2.5 percent.", summary)
}

func TestClient_EmptySummary(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{SummarizeFn: func(ctx context.Context, text string) (string, error) {
		return "   ", nil
	}}
	c := newTestClient(t, b, &sleepRecorder{})

	_, err := c.Summarize(context.Background(), "Text.")
	assert.Equal(t, KindUpstream, AsFailure(err).Kind)
}

func TestClient_CancelledWhileWaiting(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{SummarizeFn: func(ctx context.Context, text string) (string, error) {
		return "", fmt.Errorf("%w: status 502", ErrTransient)
	}}
	c, err := NewClient(b, DefaultRetryPolicy(), nil, WithSleep(func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}))
	require.NoError(t, err)

	_, err = c.Summarize(context.Background(), "Text.")
	f := AsFailure(err)
	assert.Equal(t, KindTransient, f.Kind)
	assert.Equal(t, 1, f.Attempts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewClient_NilBackend(t *testing.T) {
	t.Parallel()

	_, err := NewClient(nil, DefaultRetryPolicy(), nil)
	assert.Error(t, err)
}

func TestAsFailure(t *testing.T) {
	t.Parallel()

	assert.Nil(t, AsFailure(nil))

	plain := errors.New("boom")
	f := AsFailure(plain)
	assert.Equal(t, KindUpstream, f.Kind)
	assert.ErrorIs(t, f, plain)

	typed := &Failure{Kind: KindExtractive, Detail: "copied"}
	assert.Same(t, typed, AsFailure(fmt.Errorf("wrapped: %w", typed)))
	assert.Equal(t, "extractive: copied", typed.Error())
}
