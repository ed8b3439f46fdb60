package reschedule

import "errors"

var (
	// ErrRescheduleNotAllowed is returned when the appointment is not in a
	// state that permits a reschedule.
	ErrRescheduleNotAllowed = errors.New("reschedule: appointment not reschedulable")

	// ErrPartialReschedule signals that the old appointment was canceled but
	// rebooking the new slot failed. The guardian keeps the old slot released;
	// support has to re-book manually.
	ErrPartialReschedule = errors.New("reschedule: canceled old appointment but failed to book replacement")
)
