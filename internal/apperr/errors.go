package apperr

import "errors"

// ErrInvalid is returned when the input fails domain validation
// (missing or out-of-range coordinates, unknown courier or order).
var ErrInvalid = errors.New("invalid input")

// ErrIneligible is returned when a courier is not active, not available,
// or has no open shift.
var ErrIneligible = errors.New("courier not eligible")

// ErrNotFound indicates that the requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a lost optimistic-concurrency race or a duplicate
// of an already-applied operation.
var ErrConflict = errors.New("conflict")

// ErrIllegalTransition is returned when a status mutation is attempted
// from a state that does not permit it, including terminal states.
var ErrIllegalTransition = errors.New("illegal status transition")

// ErrExpired is returned when an assignment is acted on after its deadline.
var ErrExpired = errors.New("assignment expired")

// ErrUnavailable signals an infrastructure failure (store, cache, scheduler)
// where correctness depends on the operation having happened.
var ErrUnavailable = errors.New("infrastructure unavailable")

// Expected reports whether err is one of the recoverable domain conditions,
// as opposed to an infrastructure or programming failure.
func Expected(err error) bool {
	return errors.Is(err, ErrInvalid) ||
		errors.Is(err, ErrIneligible) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrIllegalTransition) ||
		errors.Is(err, ErrExpired)
}
