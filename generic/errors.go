/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every structured error unwraps to a sentinel so callers can branch
  with errors.Is and still read the details with errors.As.

ERROR CATEGORIES:
  1. ValidationError    - malformed or out-of-range input
  2. LimitExceededError - business ceiling breached (advance salary cap)
  3. ReferenceError     - party missing or inactive
  4. AlreadyInStateError - redundant soft delete / restore
  5. PersistenceError   - store failure, never retried here

USAGE:
  var limitErr *generic.LimitExceededError
  if errors.As(err, &limitErr) {
      fmt.Println("headroom left:", limitErr.Headroom)
  }

SEE ALSO:
  - ledger.go: Produces these errors
  - api/handlers.go: Maps them to HTTP statuses
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation = errors.New("validation failed")

	ErrLimitExceeded = errors.New("limit exceeded")

	// ErrReference is returned when the referenced party cannot be used.
	ErrReference = errors.New("invalid party reference")

	ErrAlreadyInState = errors.New("entry already in requested state")

	ErrPersistence = errors.New("persistence failure")

	ErrEntryNotFound = errors.New("entry not found")

	ErrPartyNotFound = errors.New("party not found")

	// ErrConcurrentModification is returned when the optimistic version check
	// fails. The caller may reload and retry.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrForbidden is returned when a non-admin attempts a hard delete, or a
	// hard delete is attempted on a kind that does not allow it.
	ErrForbidden = errors.New("operation not permitted")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError is a field-level input error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// LimitExceededError reports the remaining headroom under a ceiling.
type LimitExceededError struct {
	PartyID   PartyID
	Month     Month
	Limit     Money
	Used      Money
	Requested Money
	Headroom  Money
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("advance of %s exceeds monthly limit for %s in %s: remaining headroom %s",
		e.Requested, e.PartyID, e.Month, e.Headroom)
}

func (e *LimitExceededError) Unwrap() error { return ErrLimitExceeded }

// ReferenceError names the party that could not be resolved.
type ReferenceError struct {
	PartyID PartyID
	Reason  string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("party %s: %s", e.PartyID, e.Reason)
}

func (e *ReferenceError) Unwrap() error { return ErrReference }

type AlreadyInStateError struct {
	EntryID  EntryID
	IsActive bool
}

func (e *AlreadyInStateError) Error() string {
	state := "inactive"
	if e.IsActive {
		state = "active"
	}
	return fmt.Sprintf("entry %s is already %s", e.EntryID, state)
}

func (e *AlreadyInStateError) Unwrap() error { return ErrAlreadyInState }

// PersistenceError wraps a store failure with the operation that failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the driver error.
func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// Persist wraps err unless it is nil or already a ledger error.
func Persist(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPersistence) || errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrPartyNotFound) || errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrReference) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrLimitExceeded) ||
		errors.Is(err, ErrReference) ||
		errors.Is(err, ErrAlreadyInState) ||
		errors.Is(err, ErrForbidden)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntryNotFound) || errors.Is(err, ErrPartyNotFound)
}
