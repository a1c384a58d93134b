package service

import (
	"errors"
	"fmt"
)

// Sentinel errors checked by callers with errors.Is. The API layer maps
// them to HTTP status codes.
var (
	// ErrInsufficientCredits means the user cannot pay for another job.
	// Submission returns it as an *InsufficientCreditsError.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrInvalidAmount means a credit amount was zero or negative.
	ErrInvalidAmount = errors.New("credit amount must be positive")

	// ErrNotOwned means the resource belongs to another user.
	ErrNotOwned = errors.New("resource is owned by another user")

	// ErrInvalidCredentials means the username or password did not match.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// InsufficientCreditsError carries the balance that failed the pre-check.
// Its message is shown to the user as is.
type InsufficientCreditsError struct {
	Balance  int
	Required int
	Baseline int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("Credits are low. You will receive %d credits next day.", e.Baseline)
}

// Is makes errors.Is(err, ErrInsufficientCredits) match.
func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}

// OperationError adds the failing operation to an unexpected error.
type OperationError struct {
	Operation string
	Message   string
	Err       error
}

func (e *OperationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func newOperationError(operation, message string, err error) error {
	return &OperationError{Operation: operation, Message: message, Err: err}
}
