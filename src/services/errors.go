package services

import "errors"

// Error kinds surfaced by the membership operations. All are returned
// synchronously; nothing here retries on the caller's behalf.
var (
	// ErrCapacityExhausted means every member ID in 1-1000 is held by an
	// active member. The pool size is a fixed business constraint, so this
	// needs human resolution.
	ErrCapacityExhausted = errors.New("no member IDs available in 1-1000 range")

	// ErrIDUnavailable means a caller-requested member ID is already held
	// by an active member. Recoverable: pick another suggested ID.
	ErrIDUnavailable = errors.New("requested member ID is already in use")

	// ErrInvalidTransition means a lifecycle operation was invoked against
	// a member not in the required source status.
	ErrInvalidTransition = errors.New("invalid member status transition")

	// ErrInvalidAmount means a payment amount was zero or negative.
	ErrInvalidAmount = errors.New("payment amount must be positive")
)

// IsCapacityExhausted reports whether err represents ErrCapacityExhausted
func IsCapacityExhausted(err error) bool { return errors.Is(err, ErrCapacityExhausted) }

// IsIDUnavailable reports whether err represents ErrIDUnavailable
func IsIDUnavailable(err error) bool { return errors.Is(err, ErrIDUnavailable) }

// IsInvalidTransition reports whether err represents ErrInvalidTransition
func IsInvalidTransition(err error) bool { return errors.Is(err, ErrInvalidTransition) }
