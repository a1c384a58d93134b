package task

import "context"

// Dispatcher accepts job IDs for processing. Delivery is at least once: a
// job ID may reach the workers more than once, and the Processor tolerates
// duplicates.
type Dispatcher interface {
	Enqueue(ctx context.Context, jobID int64) error
}

// Delivery is one job ID handed to a worker. Exactly one of Ack, Retry or
// Reject must be called when the worker is done with it.
type Delivery interface {
	JobID() int64

	// Attempt is 1 for the first delivery and grows with each Retry.
	Attempt() int

	// Ack removes the delivery from the queue.
	Ack() error

	// Retry schedules the job ID to be delivered again later.
	Retry() error

	// Reject drops the delivery; durable queues dead-letter it.
	Reject() error
}

// Source is the consuming side of a queue. The channel is closed when the
// queue shuts down.
type Source interface {
	Deliveries() <-chan Delivery
}

// JobProcessor executes a single job.
type JobProcessor interface {
	Process(ctx context.Context, jobID int64) (Result, error)
}
