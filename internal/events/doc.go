// Package events decouples job submission from dispatch. The submission
// service emits a JobSubmitted event; the worker side registers a handler
// that hands the job to the dispatcher. Neither side imports the other.
package events
