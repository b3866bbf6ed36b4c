// Package domain contains the error kinds of the request-context machinery.
// Domain errors describe contract violations and configuration mismatches,
// NOT HTTP errors. Adapters map them to HTTP responses.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrOutsideContext indicates request or application data was read while
	// no request context was pushed on the caller's stack.
	ErrOutsideContext = errors.New("working outside of request context")

	// ErrServerNameMismatch indicates the host observed on a request does not
	// match the application's canonical server name.
	ErrServerNameMismatch = errors.New("server name mismatch")

	// ErrProgramming indicates misuse of the context stack by the caller,
	// such as popping a context that is not on top.
	ErrProgramming = errors.New("context stack misuse")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates input validation failed.
	ErrValidation = errors.New("validation failed")
)

// ServerNameMismatchError carries both hosts verbatim.
type ServerNameMismatchError struct {
	Configured string
	Observed   string
}

// Error implements the error interface.
func (e *ServerNameMismatchError) Error() string {
	return fmt.Sprintf(
		"the server name provided ('%s') does not match the server name from the environment ('%s')",
		e.Configured, e.Observed,
	)
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *ServerNameMismatchError) Unwrap() error {
	return ErrServerNameMismatch
}

// NewServerNameMismatchError creates a mismatch error for the given hosts.
func NewServerNameMismatchError(configured, observed string) error {
	return &ServerNameMismatchError{Configured: configured, Observed: observed}
}

// Reasons reported by ProgrammingError.
const (
	ReasonWrongContext  = "popped wrong context"
	ReasonEmptyStack    = "context stack is empty"
	ReasonNoStack       = "no context stack attached"
	ReasonAlreadyPushed = "context already pushed"
	ReasonNotPushed     = "context not pushed"
	ReasonForeignStack  = "context popped on a foreign stack"
)

// ProgrammingError reports a caller bug in push/pop usage. It is never
// retried.
type ProgrammingError struct {
	Op     string
	Reason string
}

// Error implements the error interface.
func (e *ProgrammingError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}

	return e.Reason
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *ProgrammingError) Unwrap() error {
	return ErrProgramming
}

// NewProgrammingError creates a programming error for the given operation.
func NewProgrammingError(op, reason string) error {
	return &ProgrammingError{Op: op, Reason: reason}
}

// NotFoundError provides context for not found errors.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
	}

	return e.Entity + " not found"
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a not found error with context.
func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError provides context for validation errors.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}

	return "validation failed: " + e.Message
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a validation error with context.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsOutsideContext checks if an error is an outside-of-context error.
func IsOutsideContext(err error) bool {
	return errors.Is(err, ErrOutsideContext)
}

// IsServerNameMismatch checks if an error is a server name mismatch.
func IsServerNameMismatch(err error) bool {
	return errors.Is(err, ErrServerNameMismatch)
}

// IsProgramming checks if an error is a context stack misuse.
func IsProgramming(err error) bool {
	return errors.Is(err, ErrProgramming)
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
