/*
errors.go - Centralized error taxonomy for the ledger core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers decide retry behavior with errors.Is / the helpers below.

ERROR CATEGORIES:
  1. Validation - malformed input; never retried automatically
  2. Not found  - unknown account/entry id; surfaced as-is
  3. Conflict   - duplicate reversal, cyclic parent, deactivation with
     open-period postings; requires a caller decision

Duplicate POSTING (same source document key) is deliberately absent here:
it is not an error. Post absorbs the retry and returns the existing entry.

SEE ALSO:
  - journal.go: Uses these errors
  - api/handlers.go: Maps them to HTTP statuses
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all malformed-input failures.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced account or entry is unknown.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an operation contradicts existing state
	// (already reversed, duplicate code, parent cycle).
	ErrConflict = errors.New("conflict")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports which input field was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError identifies the missing resource.
type NotFoundError struct {
	Kind string // "account", "entry", "tax_entry"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError describes a state conflict that needs a caller decision.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s", e.Reason)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation reports whether err is a malformed-input failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound reports whether err indicates a missing resource.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err indicates a state conflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
