package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/events"
	"github.com/phrazzld/digest-api/internal/platform/logger"
	"github.com/phrazzld/digest-api/internal/store"
)

// JobService is the submission boundary and the read side of jobs.
type JobService struct {
	jobs     store.JobStore
	users    store.UserStore
	emitter  *NotificationEmitter
	events   events.Emitter
	tx       store.Transactor
	jobCost  int
	baseline int
	logger   *slog.Logger
}

// JobServiceConfig holds the pricing used at submission.
type JobServiceConfig struct {
	JobCost  int
	Baseline int
}

// NewJobService creates a JobService.
func NewJobService(
	jobs store.JobStore,
	users store.UserStore,
	emitter *NotificationEmitter,
	eventEmitter events.Emitter,
	tx store.Transactor,
	cfg JobServiceConfig,
	logger *slog.Logger,
) *JobService {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobService{
		jobs:     jobs,
		users:    users,
		emitter:  emitter,
		events:   eventEmitter,
		tx:       tx,
		jobCost:  cfg.JobCost,
		baseline: cfg.Baseline,
		logger:   logger.With(slog.String("component", "job_service")),
	}
}

// Submit admits a summarization job for the user. The user must hold at
// least one job's cost in credits; nothing is charged until the job
// completes. The job is created pending together with an info notification,
// then a JobSubmitted event hands it to the dispatcher.
//
// A failure to emit the event is logged but not returned: the job is
// already stored and is picked up by the pending-job sweep.
func (s *JobService) Submit(ctx context.Context, userID int64, text string) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	job, err := domain.NewJob(userID, text)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		user, err := s.users.WithTx(tx).GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if user.Credits < s.jobCost {
			return &InsufficientCreditsError{Balance: user.Credits, Required: s.jobCost, Baseline: s.baseline}
		}

		jobs := s.jobs.WithTx(tx)
		if err := jobs.Create(ctx, job); err != nil {
			return fmt.Errorf("failed to create job: %w", err)
		}

		position, err := jobs.CountUserJobsUpTo(ctx, userID, job.ID)
		if err != nil {
			return fmt.Errorf("failed to compute job ordinal: %w", err)
		}

		message := fmt.Sprintf("Your %s job was submitted! Credits will be deducted upon completion.",
			domain.Ordinal(position))
		_, err = s.emitter.WithTx(tx).Emit(ctx, userID, message, domain.NotificationInfo)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) || errors.Is(err, store.ErrUserNotFound) {
			log.InfoContext(ctx, "job submission rejected",
				slog.Int64("user_id", userID),
				slog.String("reason", err.Error()))
			return nil, err
		}
		log.ErrorContext(ctx, "job submission failed",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()))
		return nil, newOperationError("submit_job", "failed to store job", err)
	}

	log.InfoContext(ctx, "job submitted",
		slog.Int64("job_id", job.ID),
		slog.Int64("user_id", userID))

	event, err := events.NewJobSubmitted(job.ID, userID)
	if err == nil {
		err = s.events.Emit(ctx, event)
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to dispatch submitted job; leaving it for the pending sweep",
			slog.Int64("job_id", job.ID),
			slog.String("error", err.Error()))
	}

	return job, nil
}

// Get returns one of the user's jobs.
func (s *JobService) Get(ctx context.Context, userID, jobID int64) (*domain.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, ErrNotOwned
	}
	return job, nil
}

// List returns the user's jobs, newest first.
func (s *JobService) List(ctx context.Context, userID int64, limit, offset int) ([]*domain.Job, error) {
	jobs, err := s.jobs.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}
