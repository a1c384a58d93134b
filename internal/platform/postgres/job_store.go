package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/platform/logger"
	"github.com/phrazzld/digest-api/internal/store"
)

const defaultListLimit = 100

const jobColumns = `id, user_id, input_text, output_text, status, created_at, updated_at`

// PostgresJobStore implements store.JobStore.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.JobStore = (*PostgresJobStore)(nil)

// NewPostgresJobStore creates a job store on db. A nil logger uses the
// default logger.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

// WithTx implements store.JobStore.
func (s *PostgresJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return &PostgresJobStore{db: tx, logger: s.logger}
}

// Create implements store.JobStore.
func (s *PostgresJobStore) Create(ctx context.Context, job *domain.Job) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := job.Validate(); err != nil {
		log.Warn("job validation failed during create", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO jobs (user_id, input_text, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		job.UserID,
		job.InputText,
		string(job.Status),
		job.CreatedAt,
		job.UpdatedAt,
	).Scan(&job.ID)
	if err != nil {
		log.Error("failed to create job",
			slog.String("error", err.Error()),
			slog.Int64("user_id", job.UserID))
		return store.NewStoreError("job", "create", "failed to insert job", MapError(err))
	}

	log.Info("job created",
		slog.Int64("job_id", job.ID),
		slog.Int64("user_id", job.UserID))
	return nil
}

// GetByID implements store.JobStore.
func (s *PostgresJobStore) GetByID(ctx context.Context, id int64) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	log.Debug("retrieving job by ID", slog.Int64("job_id", id))

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		log.Error("failed to get job", slog.Int64("job_id", id), slog.String("error", err.Error()))
		return nil, store.NewStoreError("job", "get", "failed to query job", err)
	}

	return job, nil
}

// Transition implements store.JobStore.
func (s *PostgresJobStore) Transition(
	ctx context.Context,
	id int64,
	from, to domain.JobStatus,
	output *string,
) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.Int64("job_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(to)))

	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}
	if to.IsTerminal() != (output != nil) {
		return nil, fmt.Errorf("%w: output is required exactly for terminal statuses", store.ErrInvalidEntity)
	}

	query := `
		UPDATE jobs
		SET status = $3, output_text = $4, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + jobColumns

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id, string(from), string(to), nullString(output)))
	if err == nil {
		log.Info("job status updated")
		return job, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Error("failed to update job status", slog.String("error", err.Error()))
		return nil, store.NewStoreError("job", "transition", "failed to update status", MapError(err))
	}

	var current string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, store.ErrJobNotFound
	case err != nil:
		return nil, store.NewStoreError("job", "transition", "failed to read current status", err)
	}

	log.Debug("job not in expected status", slog.String("current", current))
	return nil, fmt.Errorf("%w: job %d is %s", store.ErrStaleTransition, id, current)
}

// CountUserJobsUpTo implements store.JobStore.
func (s *PostgresJobStore) CountUserJobsUpTo(ctx context.Context, userID, jobID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jobs WHERE user_id = $1 AND id <= $2`,
		userID, jobID,
	).Scan(&count)
	if err != nil {
		return 0, store.NewStoreError("job", "count", "failed to count user jobs", err)
	}
	return count, nil
}

// ListByUser implements store.JobStore.
func (s *PostgresJobStore) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE user_id = $1 ORDER BY id DESC LIMIT $2 OFFSET $3`
	return s.queryJobs(ctx, "list_by_user", query, userID, normalizeLimit(limit), max(offset, 0))
}

// ListByStatus implements store.JobStore.
func (s *PostgresJobStore) ListByStatus(ctx context.Context, status domain.JobStatus, limit int) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status = $1 ORDER BY id ASC LIMIT $2`
	return s.queryJobs(ctx, "list_by_status", query, string(status), normalizeLimit(limit))
}

// ListStuck implements store.JobStore.
func (s *PostgresJobStore) ListStuck(ctx context.Context, before time.Time, limit int) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status = $1 AND updated_at < $2 ORDER BY id ASC LIMIT $3`
	return s.queryJobs(ctx, "list_stuck", query, string(domain.JobStatusProcessing), before, normalizeLimit(limit))
}

func (s *PostgresJobStore) queryJobs(ctx context.Context, op, query string, args ...any) ([]*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query jobs", slog.String("operation", op), slog.String("error", err.Error()))
		return nil, store.NewStoreError("job", op, "failed to query jobs", err)
	}
	defer func() { _ = rows.Close() }()

	jobs := []*domain.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, store.NewStoreError("job", op, "failed to scan job", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("job", op, "failed to iterate jobs", err)
	}

	return jobs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job    domain.Job
		output sql.NullString
		status string
	)
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.InputText,
		&output,
		&status,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}

	job.Status = domain.JobStatus(status)
	if output.Valid {
		text := output.String
		job.OutputText = &text
	}
	return &job, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
