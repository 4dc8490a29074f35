/*
errors.go - Centralized error types for the engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every business rejection has a sentinel; structured errors carry context
  and unwrap to their sentinel so callers can use errors.Is / errors.As.

ERROR CATEGORIES:
  1. Business errors - Caller-facing, recoverable (bad range, slot taken, ...)
  2. Storage faults  - Opaque failures of the durable store

  The two never overlap: a StorageError does not match any business
  sentinel, so callers can tell "your request was invalid" from "the
  system is broken".

USAGE:
  res, err := engine.Reserve(ctx, input)
  switch {
  case errors.Is(err, generic.ErrSlotUnavailable):
      // pick another slot
  case generic.IsStorageFault(err):
      // 500
  }

SEE ALSO:
  - booking/engine.go: Returns reservation errors
  - rewards/service.go: Returns ledger/config errors
  - api/handlers.go: Maps Kind(err) to HTTP status
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidRange is returned when end is not after start or a bound is
	// not aligned to the resource granularity.
	ErrInvalidRange = errors.New("invalid range")

	// ErrResourceUnavailable is returned when the resource is inactive.
	ErrResourceUnavailable = errors.New("resource unavailable")

	// ErrSlotUnavailable is returned when the candidate overlaps an active reservation.
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrUnauthorized is returned when the actor lacks rights for the transition.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidTransition is returned for lifecycle moves the state machine forbids.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrAlreadyCancelled is returned when cancelling a cancelled reservation.
	ErrAlreadyCancelled = errors.New("already cancelled")

	// ErrNotFound is returned for unknown resources, reservations or accounts.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig is returned when a reward configuration fails validation.
	ErrInvalidConfig = errors.New("invalid reward configuration")

	// ErrConcurrentModification is returned when optimistic locking detects a conflict.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrInvalidInput is returned for malformed administrative input
	// (unknown resource kind, negative rate).
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorage marks every failure of the durable store.
	ErrStorage = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidRangeError explains why a period was rejected.
type InvalidRangeError struct {
	Period Period
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range %s: %s", e.Period, e.Reason)
}

func (e *InvalidRangeError) Unwrap() error { return ErrInvalidRange }

// SlotUnavailableError lists the reservations the candidate collided with.
type SlotUnavailableError struct {
	ResourceID ResourceID
	Period     Period
	Conflicts  []ReservationID
}

func (e *SlotUnavailableError) Error() string {
	ids := make([]string, len(e.Conflicts))
	for i, id := range e.Conflicts {
		ids[i] = string(id)
	}
	return fmt.Sprintf("slot unavailable: %s on %s conflicts with [%s]",
		e.Period, e.ResourceID, strings.Join(ids, ", "))
}

func (e *SlotUnavailableError) Unwrap() error { return ErrSlotUnavailable }

// TransitionError describes a rejected lifecycle or payment move.
// It unwraps to ErrInvalidTransition or ErrAlreadyCancelled.
type TransitionError struct {
	ReservationID ReservationID
	From          string
	To            string
	sentinel      error
}

func NewTransitionError(id ReservationID, from, to string) *TransitionError {
	return &TransitionError{ReservationID: id, From: from, To: to, sentinel: ErrInvalidTransition}
}

func NewAlreadyCancelledError(id ReservationID) *TransitionError {
	return &TransitionError{
		ReservationID: id,
		From:          string(StatusCancelled),
		To:            string(StatusCancelled),
		sentinel:      ErrAlreadyCancelled,
	}
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: reservation %s %s -> %s", e.sentinel, e.ReservationID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return e.sentinel }

// NotFoundError names what was missing.
type NotFoundError struct {
	What string // "resource", "reservation", "account"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.What, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// StorageError wraps a failure of the durable store. It matches ErrStorage
// and the underlying cause, never a business sentinel.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// Storage wraps err as a StorageError, passing nil and business errors through.
func Storage(op string, err error) error {
	if err == nil || IsBusinessError(err) || IsStorageFault(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

var businessErrors = []error{
	ErrInvalidRange,
	ErrResourceUnavailable,
	ErrSlotUnavailable,
	ErrUnauthorized,
	ErrInvalidTransition,
	ErrAlreadyCancelled,
	ErrNotFound,
	ErrInvalidConfig,
	ErrConcurrentModification,
	ErrInvalidInput,
}

// IsBusinessError returns true if err belongs to the caller-facing taxonomy.
func IsBusinessError(err error) bool {
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsStorageFault returns true if err came from the durable store.
func IsStorageFault(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// Kind returns a stable machine-readable code for err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidRange):
		return "invalid_range"
	case errors.Is(err, ErrResourceUnavailable):
		return "resource_unavailable"
	case errors.Is(err, ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrAlreadyCancelled):
		return "already_cancelled"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}
