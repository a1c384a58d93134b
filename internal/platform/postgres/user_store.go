package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/platform/logger"
	"github.com/phrazzld/digest-api/internal/store"
)

const userColumns = `id, username, email, hashed_password, credits, created_at`

// PostgresUserStore implements store.UserStore.
type PostgresUserStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.UserStore = (*PostgresUserStore)(nil)

// NewPostgresUserStore creates a user store on db.
func NewPostgresUserStore(db store.DBTX, logger *slog.Logger) *PostgresUserStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresUserStore{
		db:     db,
		logger: logger.With(slog.String("component", "user_store")),
	}
}

// WithTx implements store.UserStore.
func (s *PostgresUserStore) WithTx(tx *sql.Tx) store.UserStore {
	return &PostgresUserStore{db: tx, logger: s.logger}
}

// Create implements store.UserStore.
func (s *PostgresUserStore) Create(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := user.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO users (username, email, hashed_password, credits, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		user.Username,
		user.Email,
		user.HashedPassword,
		user.Credits,
		user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		switch constraint := uniqueConstraint(err); {
		case strings.Contains(constraint, "username"):
			return store.ErrUsernameExists
		case strings.Contains(constraint, "email"):
			return store.ErrEmailExists
		}
		log.Error("failed to create user", slog.String("error", err.Error()))
		return store.NewStoreError("user", "create", "failed to insert user", MapError(err))
	}

	log.Info("user created", slog.Int64("user_id", user.ID))
	return nil
}

// GetByID implements store.UserStore.
func (s *PostgresUserStore) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByUsername implements store.UserStore.
func (s *PostgresUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (s *PostgresUserStore) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get user",
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("user", "get", "failed to query user", err)
	}
	return user, nil
}

// AdjustCredits implements store.UserStore.
func (s *PostgresUserStore) AdjustCredits(ctx context.Context, id int64, delta int) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `UPDATE users SET credits = credits + $2 WHERE id = $1 RETURNING ` + userColumns
	user, err := scanUser(s.db.QueryRowContext(ctx, query, id, delta))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		log.Error("failed to adjust credits",
			slog.Int64("user_id", id),
			slog.Int("delta", delta),
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("user", "adjust_credits", "failed to update credits", MapError(err))
	}

	log.Debug("credits adjusted",
		slog.Int64("user_id", id),
		slog.Int("delta", delta),
		slog.Int("credits", user.Credits))
	return user, nil
}

// ResetCredits implements store.UserStore.
func (s *PostgresUserStore) ResetCredits(ctx context.Context, baseline int) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`UPDATE users SET credits = $1 WHERE credits <> $1 RETURNING id`,
		baseline,
	)
	if err != nil {
		return nil, store.NewStoreError("user", "reset_credits", "failed to reset credits", err)
	}
	defer func() { _ = rows.Close() }()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, store.NewStoreError("user", "reset_credits", "failed to scan user id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("user", "reset_credits", "failed to iterate user ids", err)
	}

	slices.Sort(ids)
	return ids, nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.HashedPassword,
		&user.Credits,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
