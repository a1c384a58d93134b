// Package summarize provides the summarization client used by the job
// pipeline. The client wraps an external Backend with input validation, a
// per-attempt timeout, bounded exponential retry of transient failures, an
// optional rate limit, and a local check that rejects summaries copying
// sentences from the input.
//
// Every error returned by Client.Summarize is a *Failure carrying one of a
// closed set of kinds.
package summarize
