package domain

import "errors"

// Sentinel errors shared by repositories, services and controllers.
// Callers match them with errors.Is; services wrap them with context via %w.
var (
	// ErrNotFound is returned when a registration or event id does not resolve to a record.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned for negative price/discount, seats_reserved < 1 or an unknown status.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientSeats is returned when a seat decrement would drive available_seats below zero.
	ErrInsufficientSeats = errors.New("insufficient seats available")

	// ErrConcurrencyConflict is returned when the store could not serialize the transaction
	// against a concurrent write. The whole operation may be retried.
	ErrConcurrencyConflict = errors.New("concurrent update conflict")

	// ErrAlreadyRegistered is returned when a user would end up with two active registrations for one event.
	ErrAlreadyRegistered = errors.New("user already has an active registration for this event")

	ErrUnauthorized = errors.New("unauthorized")
)
