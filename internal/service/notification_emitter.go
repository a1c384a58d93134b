package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/platform/logger"
	"github.com/phrazzld/digest-api/internal/store"
)

// NotificationEmitter appends user-visible notifications.
type NotificationEmitter struct {
	notes  store.NotificationStore
	logger *slog.Logger
}

// NewNotificationEmitter creates an emitter writing to notes.
func NewNotificationEmitter(notes store.NotificationStore, logger *slog.Logger) *NotificationEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationEmitter{
		notes:  notes,
		logger: logger.With(slog.String("component", "notification_emitter")),
	}
}

// WithTx returns an emitter whose writes belong to tx.
func (e *NotificationEmitter) WithTx(tx *sql.Tx) *NotificationEmitter {
	return &NotificationEmitter{notes: e.notes.WithTx(tx), logger: e.logger}
}

// Emit appends a notification for the user.
func (e *NotificationEmitter) Emit(
	ctx context.Context,
	userID int64,
	message string,
	typ domain.NotificationType,
) (*domain.Notification, error) {
	n, err := domain.NewNotification(userID, message, typ)
	if err != nil {
		return nil, fmt.Errorf("invalid notification: %w", err)
	}

	if err := e.notes.Create(ctx, n); err != nil {
		logger.FromContextOrDefault(ctx, e.logger).ErrorContext(ctx, "failed to store notification",
			slog.String("error", err.Error()),
			slog.Int64("user_id", userID),
			slog.String("type", string(typ)))
		return nil, fmt.Errorf("failed to store notification: %w", err)
	}

	logger.FromContextOrDefault(ctx, e.logger).DebugContext(ctx, "notification emitted",
		slog.Int64("notification_id", n.ID),
		slog.Int64("user_id", userID),
		slog.String("type", string(typ)))
	return n, nil
}

// List returns the user's notifications in creation order.
func (e *NotificationEmitter) List(ctx context.Context, userID int64, limit, offset int) ([]*domain.Notification, error) {
	notes, err := e.notes.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notes, nil
}

// MarkRead acknowledges one of the user's notifications.
func (e *NotificationEmitter) MarkRead(ctx context.Context, userID, id int64) (*domain.Notification, error) {
	n, err := e.notes.MarkRead(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return n, nil
}
