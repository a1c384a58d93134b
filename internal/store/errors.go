package store

import (
	"errors"
	"fmt"
)

// Common store errors.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when a unique constraint would be violated.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation or a
	// database constraint such as a foreign key.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when an update could not be applied.
	ErrUpdateFailed = errors.New("update failed")

	// ErrStaleTransition is returned when a job is not in the status a
	// conditional transition expected, typically because another worker
	// moved it first.
	ErrStaleTransition = errors.New("job status changed concurrently")

	// ErrTransactionFailed is returned when a transaction cannot be started
	// or committed.
	ErrTransactionFailed = errors.New("transaction failed")

	ErrUserNotFound         = fmt.Errorf("%w: user", ErrNotFound)
	ErrJobNotFound          = fmt.Errorf("%w: job", ErrNotFound)
	ErrNotificationNotFound = fmt.Errorf("%w: notification", ErrNotFound)

	ErrUsernameExists = fmt.Errorf("%w: username", ErrDuplicate)
	ErrEmailExists    = fmt.Errorf("%w: email", ErrDuplicate)
)

// IsNotFoundError reports whether err is any of the not-found errors.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError reports whether err is any of the duplicate errors.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError is a custom error type for store operations.
// It wraps the underlying error with entity and operation context.
type StoreError struct {
	Entity    string // The entity type (e.g., "job", "user")
	Operation string // The operation that failed (e.g., "create", "transition")
	Message   string
	Err       error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
