package appointments

import "errors"

var (
	// ErrInvalidTransition is returned when a lifecycle move is attempted from
	// a terminal state or from a state that is not a valid source for it.
	// Treated as a programming or race error: surfaced and logged, never
	// swallowed.
	ErrInvalidTransition = errors.New("invalid appointment status transition")

	// ErrAppointmentNotFound is returned when the appointment does not exist
	ErrAppointmentNotFound = errors.New("appointment not found")
)
