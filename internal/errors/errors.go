// Package errors defines the engine's error taxonomy (spec §7): a closed
// set of Kinds with typed, wrapped error values so callers can branch on
// errors.As without string matching.
package errors

import (
	"fmt"
	"time"
)

// Kind classifies an error for propagation-policy decisions. It is a
// closed vocabulary, not an open string type, because every caller in this
// module must be able to exhaustively switch on it.
type Kind string

const (
	InvalidArgument     Kind = "invalid_argument"
	NotFound            Kind = "not_found"
	IndexLocked         Kind = "index_locked"
	IndexCorrupt        Kind = "index_corrupt"
	StuckLock           Kind = "stuck_lock"
	SchemaMismatch      Kind = "schema_mismatch"
	ResourceExhausted   Kind = "resource_exhausted"
	DependencyUnavail   Kind = "dependency_unavailable"
	TransientIO         Kind = "transient_io"
	Fatal               Kind = "fatal"
)

// Error is the engine-wide error value. Operation-specific fields
// (FilePath, Pattern, Field, ...) are optional context, not separate
// struct types, so that one Kind switch handles every site.
type Error struct {
	Kind       Kind
	Operation  string
	FilePath   string
	Pattern    string
	Field      string
	Workspace  string
	Suggestion string
	Underlying error
	Timestamp  time.Time
}

// New creates an Error of the given kind wrapping err.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Operation: op, Underlying: err, Timestamp: time.Now()}
}

// WithFile attaches a file path to the error.
func (e *Error) WithFile(path string) *Error {
	e.FilePath = path
	return e
}

// WithWorkspace attaches a workspace hash to the error.
func (e *Error) WithWorkspace(hash string) *Error {
	e.Workspace = hash
	return e
}

// WithField attaches a configuration field name to the error.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithPattern attaches a query/search pattern to the error.
func (e *Error) WithPattern(pattern string) *Error {
	e.Pattern = pattern
	return e
}

// WithSuggestion attaches an advisory string surfaced to the caller (§7
// "Suggestions are advisory strings").
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.FilePath != "" && e.Workspace != "":
		return fmt.Sprintf("%s: %s failed for %s in workspace %s: %v", e.Kind, e.Operation, e.FilePath, e.Workspace, e.Underlying)
	case e.FilePath != "":
		return fmt.Sprintf("%s: %s failed for %s: %v", e.Kind, e.Operation, e.FilePath, e.Underlying)
	case e.Pattern != "":
		return fmt.Sprintf("%s: %s failed for pattern %q: %v", e.Kind, e.Operation, e.Pattern, e.Underlying)
	default:
		return fmt.Sprintf("%s: %s failed: %v", e.Kind, e.Operation, e.Underlying)
	}
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Underlying
}

// Retryable reports whether the caller may retry the operation as-is.
// IndexLocked, TransientIO and ResourceExhausted (once backpressure
// clears) are retryable; everything else requires caller intervention
// (rebuild, fix input).
func (e *Error) Retryable() bool {
	return e.Kind == IndexLocked || e.Kind == TransientIO || e.Kind == ResourceExhausted
}

// MultiError aggregates independent failures from a fan-out operation
// (e.g. one failed file in an otherwise-successful pipeline walk).
type MultiError struct {
	Errors []error
}

// NewMultiError filters nils and wraps the remainder.
func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return &MultiError{Errors: filtered}
}

func (e *MultiError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

func (e *MultiError) Unwrap() []error {
	return e.Errors
}
