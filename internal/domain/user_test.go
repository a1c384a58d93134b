package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	t.Parallel()

	user, err := NewUser(" alice ", "alice@example.com", "$2a$10$hash")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, DefaultCredits, user.Credits)

	_, err = NewUser("al", "alice@example.com", "hash")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewUser(strings.Repeat("a", 51), "alice@example.com", "hash")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewUser("alice", "not-an-email", "hash")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = NewUser("alice", "alice@example.com", "")
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestNewNotification(t *testing.T) {
	t.Parallel()

	n, err := NewNotification(3, "hello", NotificationInfo)
	require.NoError(t, err)
	assert.False(t, n.IsRead)
	assert.Equal(t, NotificationInfo, n.Type)

	_, err = NewNotification(3, "hello", NotificationType("warning"))
	assert.ErrorIs(t, err, ErrInvalidNotificationType)

	_, err = NewNotification(3, " ", NotificationError)
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = NewNotification(0, "hello", NotificationSuccess)
	assert.ErrorIs(t, err, ErrInvalidID)
}
