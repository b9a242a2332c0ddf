// Package apperrors holds the sentinel errors shared across domains.
// Handlers map them onto HTTP status codes; usecases and repositories
// wrap them with context via fmt.Errorf and %w.
package apperrors

import "errors"

var (
	// ErrNotFound: the entity does not exist or is not visible to the
	// acting owner. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition: the requested lifecycle change has no edge
	// from the order's current status, or a counter bound would be
	// violated. The operation has no partial effect.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInsufficientStock: a stock take would go negative. Allocation
	// never returns this (partial allocation is an outcome, not an
	// error); direct adjustments and movement recording do.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrConflict: a conditional stock update lost against a concurrent
	// writer and re-reading did not help.
	ErrConflict = errors.New("concurrent stock update conflict")

	// ErrLocked: the per-item stock lock could not be acquired in time.
	ErrLocked = errors.New("stock busy, try again later")
)
