package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settlement string

const (
	settledAck    settlement = "ack"
	settledRetry  settlement = "retry"
	settledReject settlement = "reject"
)

type fakeDelivery struct {
	jobID   int64
	attempt int
	done    chan settlement
}

func newFakeDelivery(jobID int64, attempt int) *fakeDelivery {
	return &fakeDelivery{jobID: jobID, attempt: attempt, done: make(chan settlement, 1)}
}

func (d *fakeDelivery) JobID() int64  { return d.jobID }
func (d *fakeDelivery) Attempt() int  { return d.attempt }
func (d *fakeDelivery) Ack() error    { d.done <- settledAck; return nil }
func (d *fakeDelivery) Retry() error  { d.done <- settledRetry; return nil }
func (d *fakeDelivery) Reject() error { d.done <- settledReject; return nil }

type chanSource chan Delivery

func (s chanSource) Deliveries() <-chan Delivery { return s }

type processorFunc func(ctx context.Context, jobID int64) (Result, error)

func (f processorFunc) Process(ctx context.Context, jobID int64) (Result, error) { return f(ctx, jobID) }

func TestNewWorkerPool_Defaults(t *testing.T) {
	t.Parallel()
	pool := NewWorkerPool(make(chanSource), processorFunc(nil), WorkerPoolConfig{WorkerCount: -5}, setupTestLogger())
	assert.Equal(t, 1, pool.workerCount)
	assert.Equal(t, 5, pool.maxAttempts)
}

func TestWorkerPool_SettlesDeliveries(t *testing.T) {
	t.Parallel()

	processor := processorFunc(func(_ context.Context, jobID int64) (Result, error) {
		switch jobID {
		case 1:
			return Result{JobID: 1, Status: ResultSuccess}, nil
		case 2:
			return Result{JobID: 2, Status: ResultError}, ErrJobNotFound
		case 3:
			return Result{JobID: 3, Status: ResultError}, ErrUserNotFound
		case 4:
			panic("boom")
		default:
			return Result{}, errInfra
		}
	})

	tests := []struct {
		name    string
		jobID   int64
		attempt int
		want    settlement
	}{
		{"outcome recorded", 1, 1, settledAck},
		{"missing job", 2, 1, settledReject},
		{"missing user", 3, 1, settledReject},
		{"panic is retried", 4, 1, settledRetry},
		{"infrastructure error", 5, 1, settledRetry},
		{"attempts exhausted", 5, 3, settledReject},
	}

	source := make(chanSource)
	pool := NewWorkerPool(source, processor, WorkerPoolConfig{WorkerCount: 2, MaxAttempts: 3}, setupTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = pool.Run(ctx)
		close(done)
	}()

	for _, tc := range tests {
		d := newFakeDelivery(tc.jobID, tc.attempt)
		source <- d
		select {
		case got := <-d.done:
			assert.Equal(t, tc.want, got, tc.name)
		case <-time.After(2 * time.Second):
			t.Fatalf("%s: delivery was not settled", tc.name)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker pool did not stop")
	}
}

func TestWorkerPool_FinishesRunningJobOnShutdown(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	var jobCtxErr error
	var mu sync.Mutex

	processor := processorFunc(func(ctx context.Context, _ int64) (Result, error) {
		close(started)
		<-release
		mu.Lock()
		jobCtxErr = ctx.Err()
		mu.Unlock()
		return Result{Status: ResultSuccess}, nil
	})

	source := make(chanSource, 1)
	pool := NewWorkerPool(source, processor, WorkerPoolConfig{WorkerCount: 1}, setupTestLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = pool.Run(ctx)
		close(done)
	}()

	d := newFakeDelivery(1, 1)
	source <- d
	<-started
	cancel()
	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker pool did not stop")
	}
	assert.Equal(t, settledAck, <-d.done)
	mu.Lock()
	defer mu.Unlock()
	require.NoError(t, jobCtxErr, "running jobs are not cancelled")
}

func TestWorkerPool_StopsWhenSourceCloses(t *testing.T) {
	t.Parallel()
	q := NewMemoryQueue(1, time.Millisecond, setupTestLogger())
	pool := NewWorkerPool(q, processorFunc(nil), WorkerPoolConfig{WorkerCount: 3}, setupTestLogger())

	done := make(chan struct{})
	go func() {
		_ = pool.Run(context.Background())
		close(done)
	}()
	q.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker pool did not stop after the queue closed")
	}
}
