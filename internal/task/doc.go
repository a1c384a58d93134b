// Package task runs summarization jobs in the background. Submitted job IDs
// flow through a Dispatcher to a pool of workers, each of which drives one
// job through the Processor state machine at a time. The package also holds
// the recovery sweep for pending jobs and the cron scheduler for periodic
// maintenance such as credit resets and failing stuck jobs.
package task
