package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/platform/logger"
	"github.com/phrazzld/digest-api/internal/service"
	"github.com/phrazzld/digest-api/internal/store"
	"github.com/phrazzld/digest-api/internal/summarize"
)

// Lookup errors returned by Process alongside an error Result. Workers do
// not retry them.
var (
	ErrJobNotFound  = store.ErrJobNotFound
	ErrUserNotFound = store.ErrUserNotFound
)

// InterruptedMessage is stored on jobs failed by the stuck-job reaper.
const InterruptedMessage = "processing interrupted"

// ResultStatus is the outcome of one Process call.
type ResultStatus string

// Result statuses. Skipped means another delivery owns the job.
const (
	ResultSuccess ResultStatus = "success"
	ResultError   ResultStatus = "error"
	ResultSkipped ResultStatus = "skipped"
)

// Result reports what Process did with a job.
type Result struct {
	JobID   int64        `json:"job_id"`
	Status  ResultStatus `json:"status"`
	Summary string       `json:"summary,omitempty"`
	Message string       `json:"message,omitempty"`
}

// Summarizer turns text into a validated summary. Errors are
// *summarize.Failure values.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// ProcessorConfig holds the pricing applied on completion.
type ProcessorConfig struct {
	JobCost int
}

// Processor drives jobs through pending -> processing -> completed|failed.
type Processor struct {
	jobs       store.JobStore
	users      store.UserStore
	ledger     *service.CreditLedger
	emitter    *service.NotificationEmitter
	tx         store.Transactor
	summarizer Summarizer
	jobCost    int
	now        func() time.Time
	logger     *slog.Logger
}

var _ JobProcessor = (*Processor)(nil)

// NewProcessor creates a Processor.
func NewProcessor(
	jobs store.JobStore,
	users store.UserStore,
	ledger *service.CreditLedger,
	emitter *service.NotificationEmitter,
	tx store.Transactor,
	summarizer Summarizer,
	cfg ProcessorConfig,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		jobs:       jobs,
		users:      users,
		ledger:     ledger,
		emitter:    emitter,
		tx:         tx,
		summarizer: summarizer,
		jobCost:    cfg.JobCost,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With(slog.String("component", "job_processor")),
	}
}

// Process runs the job once. A job already in a terminal state is reported
// from its stored output without side effects, and a job another worker has
// claimed is skipped, so redelivered IDs never summarize or bill twice.
//
// Summarization failures are recorded on the job and returned as an error
// Result with a nil error. The error return is reserved for ErrJobNotFound,
// ErrUserNotFound and infrastructure faults.
func (p *Processor) Process(ctx context.Context, jobID int64) (Result, error) {
	log := logger.FromContextOrDefault(ctx, p.logger).With(slog.Int64("job_id", jobID))
	ctx = logger.WithLogger(ctx, log)

	job, err := p.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			log.WarnContext(ctx, "job not found")
			return Result{JobID: jobID, Status: ResultError, Message: "job not found"}, ErrJobNotFound
		}
		return Result{}, fmt.Errorf("failed to load job %d: %w", jobID, err)
	}

	switch job.Status {
	case domain.JobStatusCompleted, domain.JobStatusFailed:
		log.InfoContext(ctx, "job already finished; reporting stored result", slog.String("status", string(job.Status)))
		return storedResult(job), nil
	case domain.JobStatusProcessing:
		log.InfoContext(ctx, "job is already being processed; skipping")
		return skipped(jobID), nil
	}

	if _, err := p.jobs.Transition(ctx, jobID, domain.JobStatusPending, domain.JobStatusProcessing, nil); err != nil {
		switch {
		case errors.Is(err, store.ErrStaleTransition):
			log.InfoContext(ctx, "lost claim on job; skipping")
			return skipped(jobID), nil
		case errors.Is(err, store.ErrJobNotFound):
			return Result{JobID: jobID, Status: ResultError, Message: "job not found"}, ErrJobNotFound
		}
		return Result{}, fmt.Errorf("failed to claim job %d: %w", jobID, err)
	}
	log.InfoContext(ctx, "job claimed", slog.Int64("user_id", job.UserID))

	if _, err := p.users.GetByID(ctx, job.UserID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			log.ErrorContext(ctx, "job owner not found; leaving job processing", slog.Int64("user_id", job.UserID))
			return Result{JobID: jobID, Status: ResultError, Message: "user not found"}, ErrUserNotFound
		}
		return Result{}, fmt.Errorf("failed to load owner of job %d: %w", jobID, err)
	}

	summary, err := p.summarizer.Summarize(ctx, job.InputText)
	if err != nil {
		return p.fail(ctx, job, summarize.AsFailure(err))
	}
	return p.complete(ctx, job, summary)
}

// complete stores the summary, bills the user and notifies them in one
// transaction.
func (p *Processor) complete(ctx context.Context, job *domain.Job, summary string) (Result, error) {
	log := logger.FromContext(ctx)

	var balance, position int
	err := p.tx.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		jobs := p.jobs.WithTx(tx)
		if _, err := jobs.Transition(ctx, job.ID, domain.JobStatusProcessing, domain.JobStatusCompleted, &summary); err != nil {
			return err
		}

		var err error
		position, err = jobs.CountUserJobsUpTo(ctx, job.UserID, job.ID)
		if err != nil {
			return fmt.Errorf("failed to compute job ordinal: %w", err)
		}

		user, err := p.ledger.WithTx(tx).Deduct(ctx, job.UserID, p.jobCost)
		if err != nil {
			return err
		}
		balance = user.Credits

		message := fmt.Sprintf("Your %s job completed! Credits remaining: %d", domain.Ordinal(position), balance)
		_, err = p.emitter.WithTx(tx).Emit(ctx, job.UserID, message, domain.NotificationSuccess)
		return err
	})
	if err != nil {
		return p.terminalWriteFailed(ctx, job.ID, err)
	}

	log.InfoContext(ctx, "job completed",
		slog.Int("ordinal", position),
		slog.Int("credits_remaining", balance))
	return Result{JobID: job.ID, Status: ResultSuccess, Summary: summary}, nil
}

// fail records the failure description on the job and sends an error
// notification. No credits are charged.
func (p *Processor) fail(ctx context.Context, job *domain.Job, failure *summarize.Failure) (Result, error) {
	log := logger.FromContext(ctx)
	description := failure.Error()

	err := p.tx.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := p.jobs.WithTx(tx).Transition(
			ctx, job.ID, domain.JobStatusProcessing, domain.JobStatusFailed, &description,
		); err != nil {
			return err
		}

		message := fmt.Sprintf("Job %d failed: %s", job.ID, description)
		_, err := p.emitter.WithTx(tx).Emit(ctx, job.UserID, message, domain.NotificationError)
		return err
	})
	if err != nil {
		return p.terminalWriteFailed(ctx, job.ID, err)
	}

	log.WarnContext(ctx, "job failed",
		slog.String("failure_kind", string(failure.Kind)),
		slog.Int("attempts", failure.Attempts),
		slog.String("detail", failure.Detail))
	return Result{JobID: job.ID, Status: ResultError, Message: description}, nil
}

// terminalWriteFailed maps a rolled-back terminal transaction. The job is
// left processing for the reaper unless another writer already finished it.
func (p *Processor) terminalWriteFailed(ctx context.Context, jobID int64, err error) (Result, error) {
	log := logger.FromContext(ctx)
	switch {
	case errors.Is(err, store.ErrStaleTransition):
		log.WarnContext(ctx, "job finished elsewhere before its result was stored")
		return skipped(jobID), nil
	case errors.Is(err, store.ErrUserNotFound):
		log.ErrorContext(ctx, "job owner disappeared during processing")
		return Result{JobID: jobID, Status: ResultError, Message: "user not found"}, ErrUserNotFound
	}
	log.ErrorContext(ctx, "failed to store job result", slog.String("error", err.Error()))
	return Result{}, fmt.Errorf("failed to store result of job %d: %w", jobID, err)
}

// FailStuck marks jobs that have been processing for longer than age as
// failed and notifies their owners when they still exist. It returns the
// number of jobs it failed.
func (p *Processor) FailStuck(ctx context.Context, age time.Duration, limit int) (int, error) {
	log := logger.FromContextOrDefault(ctx, p.logger)

	stuck, err := p.jobs.ListStuck(ctx, p.now().Add(-age), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list stuck jobs: %w", err)
	}

	failed := 0
	for _, job := range stuck {
		err := p.tx.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			output := InterruptedMessage
			if _, err := p.jobs.WithTx(tx).Transition(
				ctx, job.ID, domain.JobStatusProcessing, domain.JobStatusFailed, &output,
			); err != nil {
				return err
			}

			if _, err := p.users.WithTx(tx).GetByID(ctx, job.UserID); err != nil {
				if errors.Is(err, store.ErrUserNotFound) {
					return nil
				}
				return err
			}

			message := fmt.Sprintf("Job %d failed: %s", job.ID, output)
			_, err := p.emitter.WithTx(tx).Emit(ctx, job.UserID, message, domain.NotificationError)
			return err
		})
		switch {
		case err == nil:
			failed++
			log.WarnContext(ctx, "failed stuck job",
				slog.Int64("job_id", job.ID),
				slog.Time("processing_since", job.UpdatedAt))
		case errors.Is(err, store.ErrStaleTransition):
			// Finished while we were looking.
		default:
			log.ErrorContext(ctx, "failed to fail stuck job",
				slog.Int64("job_id", job.ID),
				slog.String("error", err.Error()))
		}
	}
	return failed, nil
}

func storedResult(job *domain.Job) Result {
	if job.Status == domain.JobStatusCompleted {
		return Result{JobID: job.ID, Status: ResultSuccess, Summary: job.Output()}
	}
	return Result{JobID: job.ID, Status: ResultError, Message: job.Output()}
}

func skipped(jobID int64) Result {
	return Result{JobID: jobID, Status: ResultSkipped, Message: "job is not pending"}
}
