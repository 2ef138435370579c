package domain

import "errors"

// Common domain errors
var (
	// Dataset errors
	ErrDatasetNotFound = errors.New("dataset not found")

	// Prompt version errors
	ErrPromptVersionNotFound = errors.New("prompt version not found")
	ErrNoActivePromptVersion = errors.New("no active prompt version")

	// Run errors
	ErrNoEligibleRun = errors.New("no evaluation run for the active prompt version")

	// Evaluation service errors
	ErrEvalServiceUnavailable = errors.New("evaluation service unavailable")
	ErrEvalRequestFailed      = errors.New("evaluation service request failed")

	// Persistence errors
	ErrPersistenceFailed = errors.New("persistence failed")
	ErrMigrationFailed   = errors.New("schema migration failed")

	// Validation errors
	ErrInvalidID    = errors.New("invalid ID format")
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("resource not found")
)

// DomainError wraps a domain error with additional context
type DomainError struct {
	Err     error
	Message string
	Code    string
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func NewDomainError(err error, message string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
	}
}

func NewDomainErrorWithCode(err error, message, code string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}
