package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/phrazzld/digest-api/internal/config"
	"github.com/phrazzld/digest-api/internal/task"
)

const publishTimeout = 5 * time.Second

// Broker publishes and consumes job messages. It implements task.Dispatcher
// and task.Source.
type Broker struct {
	conn       *amqp.Connection
	publishCh  *amqp.Channel
	consumeCh  *amqp.Channel
	queue      string
	retryQueue string
	retryDelay time.Duration
	logger     *slog.Logger

	// amqp channels are not safe for concurrent publishing.
	publishMu sync.Mutex

	deliveries chan task.Delivery
	// done is closed by Close and stops the forwarding goroutine.
	done      chan struct{}
	closeOnce sync.Once
}

var (
	_ task.Dispatcher = (*Broker)(nil)
	_ task.Source     = (*Broker)(nil)
)

// Options tune consumption and retry behaviour.
type Options struct {
	// Prefetch bounds unacknowledged deliveries held by this consumer.
	Prefetch int
	// RetryDelay is how long a retried message waits in the retry queue.
	RetryDelay time.Duration
	// PublishOnly skips consuming. Deliveries then returns a closed channel.
	PublishOnly bool
}

// NewBroker dials RabbitMQ, declares the queue topology and starts
// consuming.
func NewBroker(cfg config.RabbitMQConfig, opts Options, logger *slog.Logger) (*Broker, error) {
	if cfg.URL == "" || cfg.Queue == "" {
		return nil, errors.New("rabbitmq url and queue are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Prefetch <= 0 {
		opts.Prefetch = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rabbitmq: %w", err)
	}

	b := &Broker{
		conn:       conn,
		queue:      cfg.Queue,
		retryQueue: cfg.Queue + ".retry",
		retryDelay: opts.RetryDelay,
		logger:     logger.With(slog.String("component", "rabbitmq"), slog.String("queue", cfg.Queue)),
		deliveries: make(chan task.Delivery),
		done:       make(chan struct{}),
	}

	if err := b.setup(opts.Prefetch, opts.PublishOnly); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Broker) setup(prefetch int, publishOnly bool) error {
	var err error
	if b.publishCh, err = b.conn.Channel(); err != nil {
		return fmt.Errorf("failed to open publish channel: %w", err)
	}
	if err := declareTopology(b.publishCh, b.queue); err != nil {
		return err
	}
	if publishOnly {
		close(b.deliveries)
		b.logger.Info("rabbitmq broker ready for publishing")
		return nil
	}

	if b.consumeCh, err = b.conn.Channel(); err != nil {
		return fmt.Errorf("failed to open consume channel: %w", err)
	}
	if err := b.consumeCh.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	msgs, err := b.consumeCh.Consume(b.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	go b.forward(msgs)

	b.logger.Info("rabbitmq broker ready", slog.Int("prefetch", prefetch))
	return nil
}

// declareTopology declares the dead-letter queue, the retry queue that
// dead-letters back to the main queue after a message's TTL, and the main
// queue that dead-letters rejected deliveries.
func declareTopology(ch *amqp.Channel, queue string) error {
	retryQ := queue + ".retry"
	dlqQ := queue + ".dlq"

	if _, err := ch.QueueDeclare(dlqQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare %s: %w", dlqQ, err)
	}
	if _, err := ch.QueueDeclare(retryQ, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue,
	}); err != nil {
		return fmt.Errorf("failed to declare %s: %w", retryQ, err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlqQ,
	}); err != nil {
		return fmt.Errorf("failed to declare %s: %w", queue, err)
	}
	return nil
}

// Enqueue publishes a first-attempt message for jobID.
func (b *Broker) Enqueue(ctx context.Context, jobID int64) error {
	body, err := encodeMessage(jobID)
	if err != nil {
		return err
	}
	return b.publish(ctx, b.queue, publishing(body, 1))
}

func (b *Broker) publish(ctx context.Context, queue string, msg amqp.Publishing) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	b.publishMu.Lock()
	defer b.publishMu.Unlock()
	if err := b.publishCh.PublishWithContext(ctx, "", queue, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}
	return nil
}

// Deliveries returns the consumed job deliveries. The channel closes when
// the broker connection closes.
func (b *Broker) Deliveries() <-chan task.Delivery {
	return b.deliveries
}

func (b *Broker) forward(msgs <-chan amqp.Delivery) {
	defer close(b.deliveries)
	for msg := range msgs {
		jobID, err := decodeMessage(msg.Body)
		if err != nil {
			b.logger.Error("discarding malformed job message", slog.String("error", err.Error()))
			_ = msg.Nack(false, false)
			continue
		}
		d := &delivery{
			broker:  b,
			msg:     msg,
			jobID:   jobID,
			attempt: attemptFrom(msg.Headers),
		}
		// An unsent message stays unacknowledged and is requeued by the
		// broker when the channel closes.
		select {
		case b.deliveries <- d:
		case <-b.done:
			b.logger.Info("rabbitmq broker closing, stopped forwarding deliveries")
			return
		}
	}
	b.logger.Info("rabbitmq delivery channel closed")
}

// Close closes the channels and the connection. It is safe to call more
// than once.
func (b *Broker) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.done)
		if b.consumeCh != nil {
			_ = b.consumeCh.Close()
		}
		if b.publishCh != nil {
			_ = b.publishCh.Close()
		}
		if b.conn != nil {
			err = b.conn.Close()
		}
	})
	return err
}

type delivery struct {
	broker  *Broker
	msg     amqp.Delivery
	jobID   int64
	attempt int
}

func (d *delivery) JobID() int64 { return d.jobID }
func (d *delivery) Attempt() int { return d.attempt }

func (d *delivery) Ack() error {
	return d.msg.Ack(false)
}

// Reject dead-letters the message to the ".dlq" queue.
func (d *delivery) Reject() error {
	return d.msg.Nack(false, false)
}

// Retry parks the message in the retry queue for the configured delay and
// acknowledges the original. If publishing fails the original is requeued
// instead.
func (d *delivery) Retry() error {
	msg := publishing(d.msg.Body, d.attempt+1)
	msg.Expiration = expiration(d.broker.retryDelay)

	if err := d.broker.publish(context.Background(), d.broker.retryQueue, msg); err != nil {
		if nackErr := d.msg.Nack(false, true); nackErr != nil {
			return errors.Join(err, nackErr)
		}
		return err
	}
	return d.msg.Ack(false)
}
