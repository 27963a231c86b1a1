/*
errors.go - Centralized error types for the exchange domain

PURPOSE:
  All domain error types in one place. Callers classify with errors.Is via
  the helpers at the bottom rather than matching strings.

ERROR CATEGORIES:
  1. Not-found   - a referenced record is absent (repository lookups also
                   report absence as a bool, never an error; this sentinel is
                   for domain operations that require the record to exist)
  2. Validation  - caller-supplied data fails a business rule; reported
                   before any mutation occurs

SEE ALSO:
  - validate.go: rules that produce validation errors
*/
package exchange

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a domain operation references a record
	// that does not exist (unknown carrier, party, ticket, account).
	ErrNotFound = errors.New("record not found")

	// ErrValidation is the root of every business-rule failure.
	ErrValidation = errors.New("validation failed")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// FieldError describes a single failed rule on a named field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e FieldError) Unwrap() error { return ErrValidation }

// ValidationErrors aggregates every rule failure found in one request so the
// caller can surface them together.
type ValidationErrors []FieldError

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%d validation errors (first: %s)", len(e), e[0].Error())
}

func (e ValidationErrors) Unwrap() error { return ErrValidation }

// NotFoundError names the missing record.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether err indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err is a business-rule failure attributable
// to client input.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
