package domain

import (
	"fmt"
	"strings"
	"time"
)

// NotificationType classifies a notification for display.
type NotificationType string

// Possible notification types.
const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	return t == NotificationInfo || t == NotificationSuccess || t == NotificationError
}

// Notification is an append-only user-visible message. Only the read
// acknowledgement mutates it.
type Notification struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewNotification creates an unread notification.
func NewNotification(userID int64, message string, typ NotificationType) (*Notification, error) {
	n := &Notification{
		UserID:    userID,
		Type:      typ,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	if n.UserID <= 0 {
		return nil, fmt.Errorf("%w: notification user ID", ErrInvalidID)
	}
	if strings.TrimSpace(n.Message) == "" {
		return nil, fmt.Errorf("%w: notification message", ErrEmptyContent)
	}
	if !n.Type.Valid() {
		return nil, ErrInvalidNotificationType
	}

	return n, nil
}
