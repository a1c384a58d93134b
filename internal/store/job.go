package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/phrazzld/digest-api/internal/domain"
)

// JobStore persists summarization jobs. Concurrent calls for different job
// IDs never interfere; every method is a single atomic statement.
type JobStore interface {
	// Create inserts a pending job and sets its ID and creation time.
	Create(ctx context.Context, job *domain.Job) error

	// GetByID returns ErrJobNotFound if the job does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Job, error)

	// Transition moves a job from status `from` to status `to`, storing
	// output when given. The write only applies while the job is still in
	// `from`: it returns ErrJobNotFound when the job does not exist and
	// ErrStaleTransition when the job is in any other status.
	Transition(ctx context.Context, id int64, from, to domain.JobStatus, output *string) (*domain.Job, error)

	// CountUserJobsUpTo counts the user's jobs whose ID is at most jobID.
	// Because IDs are assigned monotonically this is the job's 1-based
	// position in the user's submission order.
	CountUserJobsUpTo(ctx context.Context, userID, jobID int64) (int, error)

	// ListByUser returns the user's jobs, newest first.
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*domain.Job, error)

	// ListByStatus returns jobs in the given status, oldest first.
	ListByStatus(ctx context.Context, status domain.JobStatus, limit int) ([]*domain.Job, error)

	// ListStuck returns processing jobs that entered processing before
	// the given time, oldest first.
	ListStuck(ctx context.Context, before time.Time, limit int) ([]*domain.Job, error)

	// WithTx returns a JobStore that runs its queries on tx.
	WithTx(tx *sql.Tx) JobStore
}
