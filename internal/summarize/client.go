package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/phrazzld/digest-api/internal/platform/logger"
)

// Backend calls an external summarization capability once. Implementations
// wrap retryable errors with ErrTransient and permanent ones with
// ErrUpstream.
type Backend interface {
	Summarize(ctx context.Context, text string) (string, error)
	// Name identifies the backend in logs.
	Name() string
}

// Client adds validation and the retry policy on top of a Backend.
type Client struct {
	backend Backend
	policy  RetryPolicy
	limiter *rate.Limiter
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit caps outbound calls at rps per second across every caller
// sharing the client. Non-positive values disable the limit.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithSleep replaces the function used to wait between attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// NewClient creates a client for backend. A policy with fewer than one
// attempt is treated as a single attempt.
func NewClient(backend Backend, policy RetryPolicy, logger *slog.Logger, opts ...Option) (*Client, error) {
	if backend == nil {
		return nil, errors.New("summarization backend cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	c := &Client{
		backend: backend,
		policy:  policy,
		logger:  logger.With(slog.String("component", "summarizer"), slog.String("backend", backend.Name())),
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Summarize returns a validated summary of text. Any error is a *Failure:
// KindInvalidInput for blank input, KindTransient when every attempt failed
// transiently, KindUpstream for permanent backend errors, and KindExtractive
// when the summary copies an input sentence.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)

	if strings.TrimSpace(text) == "" {
		return "", &Failure{Kind: KindInvalidInput, Detail: "input text is empty"}
	}

	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.policy.Delay(attempt - 1)
			log.WarnContext(ctx, "retrying summarization after transient failure",
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", c.policy.MaxAttempts),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()))
			if err := c.sleep(ctx, delay); err != nil {
				return "", &Failure{
					Kind:     KindTransient,
					Detail:   fmt.Sprintf("cancelled while waiting to retry: %v", lastErr),
					Attempts: attempt - 1,
					Err:      err,
				}
			}
		}

		summary, err := c.attempt(ctx, text)
		if err == nil {
			return c.validate(ctx, text, summary, attempt)
		}
		lastErr = err

		if !IsTransient(err) {
			log.ErrorContext(ctx, "summarization failed permanently",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			return "", &Failure{Kind: KindUpstream, Detail: err.Error(), Attempts: attempt, Err: err}
		}
		if ctx.Err() != nil {
			return "", &Failure{Kind: KindTransient, Detail: err.Error(), Attempts: attempt, Err: err}
		}
	}

	log.ErrorContext(ctx, "summarization retries exhausted",
		slog.Int("attempts", c.policy.MaxAttempts),
		slog.String("error", lastErr.Error()))
	return "", &Failure{
		Kind:     KindTransient,
		Detail:   fmt.Sprintf("summarization service unavailable after %d attempts: %v", c.policy.MaxAttempts, lastErr),
		Attempts: c.policy.MaxAttempts,
		Err:      lastErr,
	}
}

// attempt makes one bounded backend call. Deadline and network errors are
// reported as transient.
func (c *Client) attempt(ctx context.Context, text string) (string, error) {
	if c.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.policy.AttemptTimeout)
		defer cancel()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: rate limiter: %v", ErrTransient, err)
		}
	}

	summary, err := c.backend.Summarize(ctx, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !IsTransient(err) {
			return "", fmt.Errorf("%w: %w", ErrTransient, err)
		}
		return "", err
	}
	return summary, nil
}

func (c *Client) validate(ctx context.Context, input, summary string, attempts int) (string, error) {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", &Failure{Kind: KindUpstream, Detail: "summarization service returned an empty summary", Attempts: attempts}
	}

	if copied := CopiedSentences(input, summary); len(copied) > 0 {
		logger.FromContextOrDefault(ctx, c.logger).WarnContext(ctx, "rejected extractive summary",
			slog.Int("copied_sentences", len(copied)))
		return "", &Failure{
			Kind:     KindExtractive,
			Detail:   fmt.Sprintf("summary copies input sentences verbatim: %q", copied),
			Attempts: attempts,
		}
	}

	return summary, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
