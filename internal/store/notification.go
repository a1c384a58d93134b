package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/digest-api/internal/domain"
)

// NotificationStore persists append-only user notifications.
type NotificationStore interface {
	// Create inserts the notification and sets its ID. A missing user
	// yields ErrInvalidEntity.
	Create(ctx context.Context, n *domain.Notification) error

	// ListByUser returns the user's notifications in creation order.
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*domain.Notification, error)

	// MarkRead flags the notification as read if it belongs to userID.
	// Returns ErrNotificationNotFound otherwise.
	MarkRead(ctx context.Context, userID, id int64) (*domain.Notification, error)

	// WithTx returns a NotificationStore that runs its queries on tx.
	WithTx(tx *sql.Tx) NotificationStore
}
