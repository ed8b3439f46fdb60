package slots

import "errors"

var (
	// ErrSlotUnavailable is returned when a hold or book loses the race for a
	// slot. Callers must re-query availability and let the user pick again;
	// the operation is never retried silently.
	ErrSlotUnavailable = errors.New("slot is no longer available")

	// ErrSlotNotFound is returned when the slot does not exist
	ErrSlotNotFound = errors.New("slot not found")
)
