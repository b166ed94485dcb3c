package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the core.
var (
	// ErrNotFound signals a lookup miss in the registry store.
	ErrNotFound = errors.New("not found")

	// ErrEmptyInput signals source text that cannot be extracted at all.
	ErrEmptyInput = errors.New("empty input text")
)

// ExtractionInputError marks source text as malformed or undecodable.
// It is fatal for the document it describes; batch callers log it and
// continue with the next document.
type ExtractionInputError struct {
	Reason string
	Err    error
}

func (e *ExtractionInputError) Error() string {
	return fmt.Sprintf("extraction input error: %s", e.Reason)
}

func (e *ExtractionInputError) Unwrap() error { return e.Err }

// NewExtractionInputError creates an ExtractionInputError wrapping err.
func NewExtractionInputError(reason string, err error) *ExtractionInputError {
	return &ExtractionInputError{Reason: reason, Err: err}
}

// ValidationError represents a field value rejected by validation.
// Rejected values are recorded as missing fields, never coerced.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// ReconciliationConflictError is raised when the storage layer detects
// a uniqueness violation during the write half of reconciliation. It is
// retryable: a concurrent import won the race and the caller should
// re-run reconcile to observe the new registry state.
type ReconciliationConflictError struct {
	MRN string
	Err error
}

func (e *ReconciliationConflictError) Error() string {
	return fmt.Sprintf("reconciliation conflict on MRN %q", e.MRN)
}

func (e *ReconciliationConflictError) Unwrap() error { return e.Err }

// NewReconciliationConflictError creates a ReconciliationConflictError.
func NewReconciliationConflictError(mrn string, err error) *ReconciliationConflictError {
	return &ReconciliationConflictError{MRN: mrn, Err: err}
}

// IsReconciliationConflict reports whether err is a retryable
// reconciliation conflict.
func IsReconciliationConflict(err error) bool {
	var conflict *ReconciliationConflictError
	return errors.As(err, &conflict)
}

// ClassificationConfigError marks a ThresholdSet as malformed or
// incomplete. Clinical output must never be computed against partial
// configuration, so this error is fatal for the classification call.
type ClassificationConfigError struct {
	Version string
	Reason  string
}

func (e *ClassificationConfigError) Error() string {
	return fmt.Sprintf("threshold set %q unusable: %s", e.Version, e.Reason)
}

// NewClassificationConfigError creates a ClassificationConfigError.
func NewClassificationConfigError(version, reason string) *ClassificationConfigError {
	return &ClassificationConfigError{Version: version, Reason: reason}
}
