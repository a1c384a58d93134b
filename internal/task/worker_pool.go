package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/phrazzld/digest-api/internal/platform/logger"
)

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many jobs run concurrently.
	// If zero or negative, defaults to 1
	WorkerCount int

	// MaxAttempts bounds deliveries of a job that keeps hitting
	// infrastructure errors. After that the delivery is rejected.
	// If zero or negative, defaults to 5
	MaxAttempts int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 2,
		MaxAttempts: 5,
	}
}

// WorkerPool runs a fixed number of workers that take job IDs from a Source
// and hand each to the processor, finishing one job before taking the next.
type WorkerPool struct {
	source      Source
	processor   JobProcessor
	workerCount int
	maxAttempts int
	logger      *slog.Logger
}

// NewWorkerPool creates a new worker pool with the specified configuration
func NewWorkerPool(source Source, processor JobProcessor, config WorkerPoolConfig, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "worker_pool"))

	workerCount := config.WorkerCount
	if workerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
		workerCount = 1
	}
	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultWorkerPoolConfig().MaxAttempts
	}

	return &WorkerPool{
		source:      source,
		processor:   processor,
		workerCount: workerCount,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Run starts the workers and blocks until ctx is cancelled or the source
// closes its channel. A job already running when ctx is cancelled is
// finished before Run returns.
func (p *WorkerPool) Run(ctx context.Context) error {
	p.logger.Info("starting worker pool", "worker_count", p.workerCount)

	var wg sync.WaitGroup
	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(ctx, id)
		}(i)
	}
	wg.Wait()

	p.logger.Info("worker pool stopped")
	return nil
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	log := p.logger.With(slog.Int("worker_id", id))
	log.Debug("starting worker")

	deliveries := p.source.Deliveries()
	for {
		select {
		case <-ctx.Done():
			log.Debug("stopping worker")
			return
		case d, ok := <-deliveries:
			if !ok {
				log.Debug("delivery channel closed, stopping worker")
				return
			}
			p.handle(context.WithoutCancel(ctx), log, d)
		}
	}
}

// handle processes one delivery and settles it: acknowledged when the job
// reached an outcome, rejected when the job or its owner is missing, and
// retried on infrastructure errors until the attempt budget runs out.
func (p *WorkerPool) handle(ctx context.Context, log *slog.Logger, d Delivery) {
	log = log.With(slog.Int64("job_id", d.JobID()), slog.Int("attempt", d.Attempt()))
	ctx = logger.WithLogger(ctx, log)

	result, err := p.safeProcess(ctx, d.JobID())

	var settleErr error
	switch {
	case err == nil:
		log.Debug("job handled", slog.String("result", string(result.Status)))
		settleErr = d.Ack()
	case errors.Is(err, ErrJobNotFound), errors.Is(err, ErrUserNotFound):
		log.Warn("rejecting job delivery", slog.String("error", err.Error()))
		settleErr = d.Reject()
	case d.Attempt() >= p.maxAttempts:
		log.Error("job delivery exhausted its attempts", slog.String("error", err.Error()))
		settleErr = d.Reject()
	default:
		log.Error("job processing hit an infrastructure error; retrying", slog.String("error", err.Error()))
		settleErr = d.Retry()
	}

	if settleErr != nil {
		log.Error("failed to settle job delivery", slog.String("error", settleErr.Error()))
	}
}

// safeProcess keeps a panicking job from taking its worker down.
func (p *WorkerPool) safeProcess(ctx context.Context, jobID int64) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).Error("job processing panicked", slog.Any("panic", r))
			result, err = Result{}, errPanicked
		}
	}()
	return p.processor.Process(ctx, jobID)
}

var errPanicked = errors.New("job processing panicked")
