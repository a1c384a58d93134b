package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is zero or negative.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidEmail is returned when an email address is malformed.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidJobStatus is returned when a job status is not one of the known values.
	ErrInvalidJobStatus = errors.New("invalid job status")

	// ErrInvalidTransition is returned when a job status change would skip or
	// reverse a lifecycle step.
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrInvalidNotificationType is returned when a notification type is unknown.
	ErrInvalidNotificationType = errors.New("invalid notification type")
)
