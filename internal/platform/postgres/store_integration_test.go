//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/platform/postgres"
	"github.com/phrazzld/digest-api/internal/store"
	"github.com/phrazzld/digest-api/internal/testdb"
)

type txStores struct {
	users         store.UserStore
	jobs          store.JobStore
	notifications store.NotificationStore
}

func bindStores(tx *sql.Tx) txStores {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return txStores{
		users:         postgres.NewPostgresUserStore(tx, logger),
		jobs:          postgres.NewPostgresJobStore(tx, logger),
		notifications: postgres.NewPostgresNotificationStore(tx, logger),
	}
}

func createUser(t *testing.T, users store.UserStore) *domain.User {
	t.Helper()
	name := "user-" + uuid.NewString()[:8]
	user, err := domain.NewUser(name, name+"@example.com", "hash")
	require.NoError(t, err)
	require.NoError(t, users.Create(context.Background(), user))
	require.NotZero(t, user.ID)
	return user
}

func TestIntegration_UserCredits(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		s := bindStores(tx)
		user := createUser(t, s.users)

		updated, err := s.users.AdjustCredits(ctx, user.ID, -10)
		require.NoError(t, err)
		assert.Equal(t, user.Credits-10, updated.Credits)

		ids, err := s.users.ResetCredits(ctx, 100)
		require.NoError(t, err)
		assert.Contains(t, ids, user.ID)

		got, err := s.users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 100, got.Credits)

		_, err = s.users.AdjustCredits(ctx, -1, 5)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestIntegration_DuplicateUsername(t *testing.T) {
	db := testdb.Open(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		s := bindStores(tx)
		user := createUser(t, s.users)

		dup, err := domain.NewUser(user.Username, "other-"+user.Email, "hash")
		require.NoError(t, err)
		assert.ErrorIs(t, s.users.Create(context.Background(), dup), store.ErrUsernameExists)
	})
}

func TestIntegration_JobLifecycle(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		s := bindStores(tx)
		user := createUser(t, s.users)

		first, err := domain.NewJob(user.ID, "first text")
		require.NoError(t, err)
		require.NoError(t, s.jobs.Create(ctx, first))
		second, err := domain.NewJob(user.ID, "second text")
		require.NoError(t, err)
		require.NoError(t, s.jobs.Create(ctx, second))

		count, err := s.jobs.CountUserJobsUpTo(ctx, user.ID, second.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		processing, err := s.jobs.Transition(ctx, first.ID, domain.JobStatusPending, domain.JobStatusProcessing, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusProcessing, processing.Status)

		_, err = s.jobs.Transition(ctx, first.ID, domain.JobStatusPending, domain.JobStatusProcessing, nil)
		assert.ErrorIs(t, err, store.ErrStaleTransition)

		summary := "short"
		done, err := s.jobs.Transition(ctx, first.ID, domain.JobStatusProcessing, domain.JobStatusCompleted, &summary)
		require.NoError(t, err)
		require.NotNil(t, done.OutputText)
		assert.Equal(t, summary, *done.OutputText)

		pending, err := s.jobs.ListByStatus(ctx, domain.JobStatusPending, 100)
		require.NoError(t, err)
		var pendingIDs []int64
		for _, j := range pending {
			pendingIDs = append(pendingIDs, j.ID)
		}
		assert.Contains(t, pendingIDs, second.ID)
		assert.NotContains(t, pendingIDs, first.ID)

		listed, err := s.jobs.ListByUser(ctx, user.ID, 10, 0)
		require.NoError(t, err)
		require.Len(t, listed, 2)
		assert.Equal(t, second.ID, listed[0].ID)

		stuck, err := s.jobs.ListStuck(ctx, time.Now().Add(time.Hour), 100)
		require.NoError(t, err)
		for _, j := range stuck {
			assert.Equal(t, domain.JobStatusProcessing, j.Status)
		}

		_, err = s.jobs.GetByID(ctx, -1)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestIntegration_Notifications(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		s := bindStores(tx)
		user := createUser(t, s.users)
		other := createUser(t, s.users)

		n, err := domain.NewNotification(user.ID, "Your 1st job completed!", domain.NotificationSuccess)
		require.NoError(t, err)
		require.NoError(t, s.notifications.Create(ctx, n))

		list, err := s.notifications.ListByUser(ctx, user.ID, 10, 0)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.False(t, list[0].IsRead)

		_, err = s.notifications.MarkRead(ctx, other.ID, n.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)

		read, err := s.notifications.MarkRead(ctx, user.ID, n.ID)
		require.NoError(t, err)
		assert.True(t, read.IsRead)
	})
}
