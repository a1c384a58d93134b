package task

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/service"
	"github.com/phrazzld/digest-api/internal/store/memstore"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSummarizer returns canned results and counts calls.
type fakeSummarizer struct {
	mu    sync.Mutex
	calls int
	fn    func(text string) (string, error)
}

func (f *fakeSummarizer) Summarize(_ context.Context, text string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(text)
}

func (f *fakeSummarizer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type pipeline struct {
	db        *memstore.DB
	emitter   *service.NotificationEmitter
	ledger    *service.CreditLedger
	processor *Processor
}

func newPipeline(t *testing.T, summarizer Summarizer) *pipeline {
	t.Helper()
	db := memstore.New()
	logger := setupTestLogger()
	emitter := service.NewNotificationEmitter(db.Notifications(), logger)
	ledger := service.NewCreditLedger(db.Users(), emitter, db, 100, logger)

	return &pipeline{
		db:      db,
		emitter: emitter,
		ledger:  ledger,
		processor: NewProcessor(db.Jobs(), db.Users(), ledger, emitter, db, summarizer,
			ProcessorConfig{JobCost: 10}, logger),
	}
}

func (p *pipeline) addUser(t *testing.T, credits int) domain.User {
	t.Helper()
	return p.db.PutUser(domain.User{
		Username:       "reader",
		Email:          "reader@example.com",
		HashedPassword: "hash",
		Credits:        credits,
	})
}

func (p *pipeline) addJob(t *testing.T, job domain.Job) domain.Job {
	t.Helper()
	if job.Status == "" {
		job.Status = domain.JobStatusPending
	}
	if job.InputText == "" {
		job.InputText = "The cat sat. The dog ran."
	}
	return p.db.PutJob(job)
}

func (p *pipeline) job(t *testing.T, id int64) *domain.Job {
	t.Helper()
	job, err := p.db.Jobs().GetByID(context.Background(), id)
	require.NoError(t, err)
	return job
}

func (p *pipeline) notes(t *testing.T, userID int64) []*domain.Notification {
	t.Helper()
	notes, err := p.emitter.List(context.Background(), userID, 0, 0)
	require.NoError(t, err)
	return notes
}

func (p *pipeline) credits(t *testing.T, userID int64) int {
	t.Helper()
	balance, err := p.ledger.Balance(context.Background(), userID)
	require.NoError(t, err)
	return balance
}

func strPtr(s string) *string { return &s }
