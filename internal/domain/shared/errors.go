// Package shared contains error kinds, warnings and small value helpers used
// across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds that can be used for error checking with errors.Is().
var (
	// Storage errors
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrTimeout            = &timeoutError{}

	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidOutputType = errors.New("invalid output type")

	// Streak freeze preconditions
	ErrAlreadyFrozenToday = errors.New("streak already frozen today")
	ErrNoFreezesAvailable = errors.New("no streak freezes available")

	// Problem policy errors
	ErrProblemNotPublished = errors.New("problem not published")
	ErrRevealNotAllowed    = errors.New("reveal not allowed")
	ErrRevealNotYetAllowed = errors.New("reveal not yet allowed")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// timeoutError is the deadline kind. It also matches ErrStorageUnavailable:
// a gateway call that ran out of time is a storage that could not serve.
type timeoutError struct{}

func (*timeoutError) Error() string { return "operation timeout" }

func (*timeoutError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progress", "learner", "practice"
	Op      string // Operation that failed, e.g., "ConsumeFreeze"
	Kind    error  // Base error kind for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Invalid is shorthand for an ErrInvalidInput domain error.
func Invalid(domain, op, format string, args ...any) *DomainError {
	return NewDomainError(domain, op, ErrInvalidInput, fmt.Sprintf(format, args...))
}

// NotFound is shorthand for an ErrNotFound domain error.
func NotFound(domain, op, format string, args ...any) *DomainError {
	return NewDomainError(domain, op, ErrNotFound, fmt.Sprintf(format, args...))
}

// Learner errors
var (
	ErrLearnerNotFound     = NewDomainError("learner", "Find", ErrNotFound, "learner not found")
	ErrFrozenToday         = NewDomainError("learner", "ConsumeFreeze", ErrAlreadyFrozenToday, "a freeze was already used today")
	ErrNoFreezes           = NewDomainError("learner", "ConsumeFreeze", ErrNoFreezesAvailable, "no streak freezes left")
	ErrInvalidLearnerID    = NewDomainError("learner", "Validate", ErrInvalidInput, "learner id is required")
	ErrNegativeFreezeGrant = NewDomainError("learner", "Validate", ErrInvalidInput, "freeze counter cannot be negative")
)

// Content errors
var (
	ErrCourseNotFound  = NewDomainError("content", "FindCourse", ErrNotFound, "course not found")
	ErrLessonNotFound  = NewDomainError("content", "FindLesson", ErrNotFound, "lesson not found")
	ErrCareerNotFound  = NewDomainError("content", "FindCareer", ErrNotFound, "career not found")
	ErrProblemNotFound = NewDomainError("content", "FindProblem", ErrNotFound, "problem not found")
)

// Practice errors
var (
	ErrUnpublishedProblem  = NewDomainError("practice", "Submit", ErrProblemNotPublished, "problem is not published")
	ErrRevealDisabled      = NewDomainError("practice", "Reveal", ErrRevealNotAllowed, "this problem does not allow revealing the answer")
	ErrMissingExpected     = NewDomainError("practice", "Evaluate", ErrInvalidInput, "problem has no expected output")
	ErrUnknownOutputType   = NewDomainError("practice", "Evaluate", ErrInvalidOutputType, "unknown output type")
	ErrSubmissionTooLarge  = NewDomainError("practice", "Submit", ErrInvalidInput, "submission is too large")
	ErrInvalidExpectedJSON = NewDomainError("practice", "Evaluate", ErrInvalidInput, "expected output is not valid JSON")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInvalidOutputType)
}

// IsPrecondition checks if the error is a freeze or reveal precondition failure.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrAlreadyFrozenToday) ||
		errors.Is(err, ErrNoFreezesAvailable) ||
		errors.Is(err, ErrRevealNotAllowed) ||
		errors.Is(err, ErrRevealNotYetAllowed) ||
		errors.Is(err, ErrProblemNotPublished)
}

// IsRetryable checks if the caller can retry the operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
