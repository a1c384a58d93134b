package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/events"
	"github.com/phrazzld/digest-api/internal/service"
	"github.com/phrazzld/digest-api/internal/store/memstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	db      *memstore.DB
	emitter *service.NotificationEmitter
	ledger  *service.CreditLedger
	events  *recordingEmitter
	jobs    *service.JobService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memstore.New()
	logger := discardLogger()
	emitter := service.NewNotificationEmitter(db.Notifications(), logger)
	rec := &recordingEmitter{}

	return &fixture{
		db:      db,
		emitter: emitter,
		ledger:  service.NewCreditLedger(db.Users(), emitter, db, 100, logger),
		events:  rec,
		jobs: service.NewJobService(db.Jobs(), db.Users(), emitter, rec, db,
			service.JobServiceConfig{JobCost: 10, Baseline: 100}, logger),
	}
}

func (f *fixture) addUser(t *testing.T, name string, credits int) domain.User {
	t.Helper()
	return f.db.PutUser(domain.User{
		Username:       name,
		Email:          name + "@example.com",
		HashedPassword: "hash",
		Credits:        credits,
	})
}

func (f *fixture) notifications(t *testing.T, userID int64) []*domain.Notification {
	t.Helper()
	notes, err := f.emitter.List(context.Background(), userID, 0, 0)
	require.NoError(t, err)
	return notes
}

type recordingEmitter struct {
	events []*events.Event
	err    error
}

func (r *recordingEmitter) Emit(_ context.Context, e *events.Event) error {
	r.events = append(r.events, e)
	return r.err
}

var errBoom = errors.New("boom")
