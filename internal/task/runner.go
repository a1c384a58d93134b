package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/store"
)

// RunnerConfig holds configuration for the Runner
type RunnerConfig struct {
	// BatchSize caps how many pending jobs one sweep enqueues.
	// If zero or negative, defaults to 500
	BatchSize int
}

// Runner puts pending jobs from the database back on the dispatcher. It
// covers jobs whose enqueue was lost, either because the process restarted
// or because dispatch failed after the job was stored.
type Runner struct {
	jobs       store.JobStore
	dispatcher Dispatcher
	batchSize  int
	now        func() time.Time
	logger     *slog.Logger
}

// NewRunner creates a new Runner
func NewRunner(jobs store.JobStore, dispatcher Dispatcher, config RunnerConfig, logger *slog.Logger) *Runner {
	if config.BatchSize <= 0 {
		config.BatchSize = 500
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		jobs:       jobs,
		dispatcher: dispatcher,
		batchSize:  config.BatchSize,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With(slog.String("component", "runner")),
	}
}

// Recover enqueues every pending job. Called once when the workers start.
func (r *Runner) Recover(ctx context.Context) (int, error) {
	return r.EnqueuePending(ctx, 0)
}

// EnqueuePending enqueues pending jobs created more than olderThan ago,
// oldest first. Jobs already queued may be delivered twice, which the
// Processor tolerates.
func (r *Runner) EnqueuePending(ctx context.Context, olderThan time.Duration) (int, error) {
	pending, err := r.jobs.ListByStatus(ctx, domain.JobStatusPending, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending jobs: %w", err)
	}

	cutoff := r.now().Add(-olderThan)
	enqueued := 0
	for _, job := range pending {
		if olderThan > 0 && !job.CreatedAt.Before(cutoff) {
			continue
		}
		if err := r.dispatcher.Enqueue(ctx, job.ID); err != nil {
			r.logger.ErrorContext(ctx, "failed to requeue pending job",
				slog.Int64("job_id", job.ID),
				slog.String("error", err.Error()))
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		r.logger.InfoContext(ctx, "requeued pending jobs",
			slog.Int("count", enqueued),
			slog.Duration("older_than", olderThan))
	}
	return enqueued, nil
}
