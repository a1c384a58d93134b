package domain

import (
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the processing state of a summarization job.
type JobStatus string

// Possible job status values.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Valid reports whether s is one of the known job statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo reports whether next is the immediate successor of s in
// the lifecycle pending -> processing -> {completed | failed}.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed
	}
	return false
}

// Job is one summarization request and its lifecycle record.
//
// OutputText is nil while the job is pending or processing. A completed job
// holds the summary; a failed job holds the failure description.
type Job struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	InputText  string    `json:"input_text"`
	OutputText *string   `json:"output_text"`
	Status     JobStatus `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewJob creates a pending job for the given user. The ID is assigned by
// the store on creation.
func NewJob(userID int64, inputText string) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		UserID:    userID,
		InputText: inputText,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks the job's fields and the output/status invariant.
func (j *Job) Validate() error {
	if j.UserID <= 0 {
		return fmt.Errorf("%w: job user ID", ErrInvalidID)
	}

	if strings.TrimSpace(j.InputText) == "" {
		return fmt.Errorf("%w: job input text", ErrEmptyContent)
	}

	if !j.Status.Valid() {
		return ErrInvalidJobStatus
	}

	if j.Status.IsTerminal() != (j.OutputText != nil) {
		return fmt.Errorf("%w: output text must be set exactly when the job is terminal", ErrValidation)
	}

	return nil
}

// Output returns the stored output text, or an empty string if none is set.
func (j *Job) Output() string {
	if j.OutputText == nil {
		return ""
	}
	return *j.OutputText
}
