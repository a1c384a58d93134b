package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Common errors returned by the MemoryQueue
var (
	ErrQueueClosed = errors.New("job queue is closed")
	ErrQueueFull   = errors.New("job queue is full")
)

// MemoryQueue is an in-process Dispatcher and Source backed by a buffered
// channel. It does not survive restarts; pending jobs are re-enqueued from
// the database by the Runner instead.
type MemoryQueue struct {
	mu         sync.RWMutex
	closed     bool
	deliveries chan Delivery
	retryDelay time.Duration
	logger     *slog.Logger
}

var (
	_ Dispatcher = (*MemoryQueue)(nil)
	_ Source     = (*MemoryQueue)(nil)
)

// NewMemoryQueue creates a queue holding up to size undelivered job IDs.
// Retried deliveries come back after retryDelay.
func NewMemoryQueue(size int, retryDelay time.Duration, logger *slog.Logger) *MemoryQueue {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryQueue{
		deliveries: make(chan Delivery, size),
		retryDelay: retryDelay,
		logger:     logger.With(slog.String("component", "memory_queue")),
	}
}

// Enqueue implements Dispatcher. It never blocks: a full queue returns
// ErrQueueFull.
func (q *MemoryQueue) Enqueue(_ context.Context, jobID int64) error {
	return q.push(&memoryDelivery{queue: q, jobID: jobID, attempt: 1})
}

func (q *MemoryQueue) push(d *memoryDelivery) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.deliveries <- d:
		q.logger.Debug("job enqueued",
			slog.Int64("job_id", d.jobID),
			slog.Int("attempt", d.attempt),
			slog.Int("queue_len", len(q.deliveries)))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.deliveries))
	}
}

// Deliveries implements Source.
func (q *MemoryQueue) Deliveries() <-chan Delivery {
	return q.deliveries
}

// Close stops accepting job IDs and closes the delivery channel. Buffered
// deliveries can still be drained; retries that fire later are dropped.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.deliveries)
	q.logger.Info("job queue closed")
}

type memoryDelivery struct {
	queue   *MemoryQueue
	jobID   int64
	attempt int
}

func (d *memoryDelivery) JobID() int64 { return d.jobID }
func (d *memoryDelivery) Attempt() int { return d.attempt }
func (d *memoryDelivery) Ack() error   { return nil }

func (d *memoryDelivery) Reject() error {
	d.queue.logger.Warn("job delivery rejected", slog.Int64("job_id", d.jobID), slog.Int("attempt", d.attempt))
	return nil
}

// Retry re-enqueues the job ID after the queue's retry delay. If the queue
// is full or closed by then the ID is dropped and left to the pending sweep.
func (d *memoryDelivery) Retry() error {
	q := d.queue
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return ErrQueueClosed
	}

	next := &memoryDelivery{queue: q, jobID: d.jobID, attempt: d.attempt + 1}
	time.AfterFunc(q.retryDelay, func() {
		if err := q.push(next); err != nil {
			q.logger.Warn("dropped job retry",
				slog.Int64("job_id", next.jobID),
				slog.String("error", err.Error()))
		}
	})
	return nil
}
