package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/digest-api/internal/config"
	"github.com/phrazzld/digest-api/internal/platform/gemini"
	"github.com/phrazzld/digest-api/internal/platform/huggingface"
	"github.com/phrazzld/digest-api/internal/platform/rabbitmq"
	"github.com/phrazzld/digest-api/internal/summarize"
	"github.com/phrazzld/digest-api/internal/task"
)

// newSummarizer builds the configured backend behind the retrying client.
func newSummarizer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*summarize.Client, error) {
	var (
		backend summarize.Backend
		err     error
	)
	switch cfg.Summarizer.Provider {
	case "huggingface":
		backend, err = huggingface.NewBackend(cfg.Summarizer, logger)
	case "gemini":
		backend, err = gemini.NewBackend(ctx, cfg.Summarizer, logger)
	default:
		return nil, fmt.Errorf("unsupported summarizer provider %q", cfg.Summarizer.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s backend: %w", cfg.Summarizer.Provider, err)
	}

	return summarize.NewClient(backend,
		summarize.PolicyFromConfig(cfg.Retry),
		logger,
		summarize.WithRateLimit(cfg.Summarizer.RequestsPerSecond))
}

// dispatch is the job queue seen from both ends.
type dispatch struct {
	dispatcher task.Dispatcher
	source     task.Source
	close      func() error
}

// newDispatch builds the configured queue. consume is false for API-only
// processes, which publish but never take deliveries.
func newDispatch(cfg *config.Config, consume bool, logger *slog.Logger) (dispatch, error) {
	switch cfg.Dispatch.Backend {
	case "memory":
		q := task.NewMemoryQueue(cfg.Dispatch.QueueSize, cfg.Dispatch.RetryDelay, logger)
		return dispatch{
			dispatcher: q,
			source:     q,
			close:      func() error { q.Close(); return nil },
		}, nil
	case "rabbitmq":
		b, err := rabbitmq.NewBroker(cfg.RabbitMQ, rabbitmq.Options{
			Prefetch:    cfg.Dispatch.WorkerCount,
			RetryDelay:  cfg.Dispatch.RetryDelay,
			PublishOnly: !consume,
		}, logger)
		if err != nil {
			return dispatch{}, err
		}
		return dispatch{dispatcher: b, source: b, close: b.Close}, nil
	default:
		return dispatch{}, fmt.Errorf("unsupported dispatch backend %q", cfg.Dispatch.Backend)
	}
}
