// Package rabbitmq dispatches summarization jobs through a durable RabbitMQ
// queue. A job message carries only the job ID; the job row stays the source
// of truth.
//
// Three queues are declared per configured name: the main queue, a ".retry"
// queue whose expired messages dead-letter back to the main queue, and a
// ".dlq" queue that collects rejected deliveries.
package rabbitmq
