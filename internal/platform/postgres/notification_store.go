package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/platform/logger"
	"github.com/phrazzld/digest-api/internal/store"
)

const notificationColumns = `id, user_id, type, message, is_read, created_at`

// PostgresNotificationStore implements store.NotificationStore.
type PostgresNotificationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.NotificationStore = (*PostgresNotificationStore)(nil)

// NewPostgresNotificationStore creates a notification store on db.
func NewPostgresNotificationStore(db store.DBTX, logger *slog.Logger) *PostgresNotificationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresNotificationStore{
		db:     db,
		logger: logger.With(slog.String("component", "notification_store")),
	}
}

// WithTx implements store.NotificationStore.
func (s *PostgresNotificationStore) WithTx(tx *sql.Tx) store.NotificationStore {
	return &PostgresNotificationStore{db: tx, logger: s.logger}
}

// Create implements store.NotificationStore.
func (s *PostgresNotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO notifications (user_id, type, message, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		n.UserID,
		string(n.Type),
		n.Message,
		n.IsRead,
		n.CreatedAt,
	).Scan(&n.ID)
	if err != nil {
		log.Error("failed to create notification",
			slog.Int64("user_id", n.UserID),
			slog.String("error", err.Error()))
		return store.NewStoreError("notification", "create", "failed to insert notification", MapError(err))
	}

	log.Debug("notification created",
		slog.Int64("notification_id", n.ID),
		slog.Int64("user_id", n.UserID),
		slog.String("type", string(n.Type)))
	return nil
}

// ListByUser implements store.NotificationStore.
func (s *PostgresNotificationStore) ListByUser(
	ctx context.Context,
	userID int64,
	limit, offset int,
) ([]*domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE user_id = $1 ORDER BY id ASC LIMIT $2 OFFSET $3`,
		userID, normalizeLimit(limit), max(offset, 0),
	)
	if err != nil {
		return nil, store.NewStoreError("notification", "list", "failed to query notifications", err)
	}
	defer func() { _ = rows.Close() }()

	notifications := []*domain.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, store.NewStoreError("notification", "list", "failed to scan notification", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("notification", "list", "failed to iterate notifications", err)
	}

	return notifications, nil
}

// MarkRead implements store.NotificationStore.
func (s *PostgresNotificationStore) MarkRead(ctx context.Context, userID, id int64) (*domain.Notification, error) {
	n, err := scanNotification(s.db.QueryRowContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2 RETURNING `+notificationColumns,
		id, userID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotificationNotFound
		}
		return nil, store.NewStoreError("notification", "mark_read", "failed to update notification", err)
	}
	return n, nil
}

func scanNotification(row rowScanner) (*domain.Notification, error) {
	var (
		n   domain.Notification
		typ string
	)
	if err := row.Scan(&n.ID, &n.UserID, &typ, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Type = domain.NotificationType(typ)
	return &n, nil
}
