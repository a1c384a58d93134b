package summarize

import (
	"errors"
	"fmt"
)

// Backends wrap their errors with one of these sentinels so the client can
// decide whether to retry.
var (
	// ErrTransient marks failures that may succeed on retry: network errors,
	// timeouts, 5xx and 429 responses, models still loading.
	ErrTransient = errors.New("transient summarization error")

	// ErrUpstream marks permanent failures: explicit error payloads,
	// malformed responses, rejected requests.
	ErrUpstream = errors.New("summarization service error")
)

// Kind classifies a Failure.
type Kind string

// Failure kinds.
const (
	KindInvalidInput Kind = "invalid_input"
	KindTransient    Kind = "transient"
	KindUpstream     Kind = "upstream"
	KindExtractive   Kind = "extractive"
)

// Failure is the typed result of an unsuccessful summarization.
type Failure struct {
	Kind   Kind
	Detail string
	// Attempts is the number of backend calls made, zero when the input was
	// rejected before any call.
	Attempts int
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// AsFailure extracts a *Failure from err. Errors that are not failures are
// reported as upstream failures so callers always get a typed result.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Kind: KindUpstream, Detail: err.Error(), Err: err}
}

// IsTransient reports whether err was marked retryable by a backend.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
