package documentum

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error kinds. Every error returned by the service matches exactly one of
// these with errors.Is, except ErrNoActiveVersion which matches both
// ErrPrecondition and ErrNotFound.
var (
	// ErrValidation indicates the caller must correct its input
	ErrValidation = errors.New("validation failed")

	// ErrPrecondition indicates required state does not exist
	ErrPrecondition = errors.New("precondition failed")

	// ErrConflict indicates a concurrent-mutation conflict; safe to retry
	ErrConflict = errors.New("conflict")

	// ErrNotFound indicates a referenced entity does not exist
	ErrNotFound = errors.New("not found")
)

var (
	ErrInvalidXML       = errors.New("content is not well-formed XML")
	ErrVersionMismatch  = errors.New("version does not match project")
	ErrArchivedVersion  = errors.New("version is archived")
	ErrMultipleActive   = errors.New("more than one active version")
	ErrLockTimeout      = errors.New("lock timeout")
	ErrEditLocked       = errors.New("rubrique is locked by another user")
	ErrCycle            = errors.New("hierarchy contains a cycle")
	ErrRequired         = errors.New("value is required")
	ErrInvalidValue     = errors.New("invalid value")
	ErrAlreadyExists    = errors.New("already exists")
	ErrNoBlobStore      = errors.New("no blob store configured")
	ErrActiveVersionSet = errors.New("projet already has an active version")
	ErrHasChildren      = errors.New("entry has children")
)

// ErrObjectNotFound is returned by blob stores for a missing key.
var ErrObjectNotFound = fmt.Errorf("object %w", ErrNotFound)

// ErrNoActiveVersion is returned when a Projet has no active version.
var ErrNoActiveVersion error = noActiveVersionError{}

type noActiveVersionError struct{}

func (noActiveVersionError) Error() string { return "no active version" }

func (noActiveVersionError) Is(target error) bool {
	return target == ErrPrecondition || target == ErrNotFound
}

// ValidationError reports rejected input.
type ValidationError struct {
	Op     string
	Field  string
	Detail string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: invalid %s", e.Op, e.Field)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// PreconditionError reports missing required state.
type PreconditionError struct {
	Op     string
	Detail string
	Err    error
}

func (e *PreconditionError) Error() string {
	msg := e.Op + ": precondition failed"
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PreconditionError) Unwrap() error { return e.Err }

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

// ConflictError reports a concurrent-mutation conflict. It is retryable.
type ConflictError struct {
	Op     string
	Detail string
	Err    error
}

func (e *ConflictError) Error() string {
	msg := e.Op + ": conflict"
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConflictError) Unwrap() error { return e.Err }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Resource string
	ID       uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// IsRetryable reports whether err is a conflict the caller may retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// Kind returns a short label for the error kind, "ok" for nil and
// "error" for anything unclassified.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrPrecondition):
		return "precondition"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func validationErr(op, field string, err error, detail string) error {
	return &ValidationError{Op: op, Field: field, Detail: detail, Err: err}
}

func preconditionErr(op string, err error, detail string) error {
	return &PreconditionError{Op: op, Detail: detail, Err: err}
}

func conflictErr(op string, err error, detail string) error {
	return &ConflictError{Op: op, Detail: detail, Err: err}
}
