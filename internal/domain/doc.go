// Package domain contains the core entities of the summarization pipeline:
// users with a credit balance, summarization jobs and their lifecycle, and
// user-facing notifications. It is independent of storage and transport.
package domain
