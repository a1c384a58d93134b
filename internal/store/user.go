package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/digest-api/internal/domain"
)

// UserStore persists users and their credit balances.
type UserStore interface {
	// Create inserts a new user and sets its ID.
	// Returns ErrUsernameExists or ErrEmailExists on conflicts.
	Create(ctx context.Context, user *domain.User) error

	// GetByID returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByUsername returns ErrUserNotFound if the user does not exist.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// AdjustCredits atomically adds delta (which may be negative) to the
	// user's balance and returns the updated user.
	AdjustCredits(ctx context.Context, id int64, delta int) (*domain.User, error)

	// ResetCredits sets every balance that differs from baseline to baseline
	// and returns the IDs of the users that changed, in ascending order.
	ResetCredits(ctx context.Context, baseline int) ([]int64, error)

	// WithTx returns a UserStore that runs its queries on tx.
	WithTx(tx *sql.Tx) UserStore
}
