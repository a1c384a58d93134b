package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/events"
	"github.com/phrazzld/digest-api/internal/service"
	"github.com/phrazzld/digest-api/internal/store"
)

func TestJobService_Submit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	u := f.addUser(t, "alice", 100)
	ctx := context.Background()

	first, err := f.jobs.Submit(ctx, u.ID, "Some text to summarize.")
	require.NoError(t, err)
	second, err := f.jobs.Submit(ctx, u.ID, "More text.")
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusPending, first.Status)
	assert.Nil(t, first.OutputText)
	assert.Greater(t, second.ID, first.ID)

	notes := f.notifications(t, u.ID)
	require.Len(t, notes, 2)
	assert.Equal(t, "Your 1st job was submitted! Credits will be deducted upon completion.", notes[0].Message)
	assert.Equal(t, "Your 2nd job was submitted! Credits will be deducted upon completion.", notes[1].Message)

	balance, err := f.ledger.Balance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, balance, "nothing is charged at submission")

	require.Len(t, f.events.events, 2)
	var payload events.JobSubmitted
	require.NoError(t, f.events.events[1].UnmarshalPayload(&payload))
	assert.Equal(t, events.JobSubmitted{JobID: second.ID, UserID: u.ID}, payload)
}

func TestJobService_SubmitRejections(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	poor := f.addUser(t, "poor", 9)
	ctx := context.Background()

	_, err := f.jobs.Submit(ctx, poor.ID, "text")
	require.ErrorIs(t, err, service.ErrInsufficientCredits)
	assert.Equal(t, "Credits are low. You will receive 100 credits next day.", err.Error())

	_, err = f.jobs.Submit(ctx, 404, "text")
	assert.ErrorIs(t, err, store.ErrUserNotFound)

	_, err = f.jobs.Submit(ctx, poor.ID, "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyContent)

	jobs, err := f.jobs.List(ctx, poor.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Empty(t, f.notifications(t, poor.ID))
	assert.Empty(t, f.events.events)
}

func TestJobService_SubmitSurvivesDispatchFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.events.err = errBoom
	u := f.addUser(t, "alice", 100)

	job, err := f.jobs.Submit(context.Background(), u.ID, "text")
	require.NoError(t, err)

	stored, err := f.jobs.Get(context.Background(), u.ID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, stored.Status)
}

func TestJobService_GetAndList(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alice := f.addUser(t, "alice", 100)
	bob := f.addUser(t, "bob", 100)
	ctx := context.Background()

	a1, err := f.jobs.Submit(ctx, alice.ID, "first")
	require.NoError(t, err)
	a2, err := f.jobs.Submit(ctx, alice.ID, "second")
	require.NoError(t, err)

	_, err = f.jobs.Get(ctx, bob.ID, a1.ID)
	assert.ErrorIs(t, err, service.ErrNotOwned)

	_, err = f.jobs.Get(ctx, alice.ID, 999)
	assert.ErrorIs(t, err, store.ErrJobNotFound)

	jobs, err := f.jobs.List(ctx, alice.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, a2.ID, jobs[0].ID)
	assert.Equal(t, a1.ID, jobs[1].ID)
}
