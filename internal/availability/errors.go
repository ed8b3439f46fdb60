package availability

import "errors"

var (
	// ErrInvalidDayOfWeek is returned when day-of-week is outside 0..6
	ErrInvalidDayOfWeek = errors.New("day of week must be between 0 (Sunday) and 6 (Saturday)")

	// ErrInvalidWindow is returned when the rule's end does not follow its start
	ErrInvalidWindow = errors.New("end time must be after start time")

	// ErrInvalidSlotDuration is returned for non-positive slot durations
	ErrInvalidSlotDuration = errors.New("slot duration must be a positive number of minutes")

	// ErrInvalidDateRange is returned when a time-off range ends before it starts
	ErrInvalidDateRange = errors.New("end date must not be before start date")

	// ErrRuleNotFound is returned when no rule matches
	ErrRuleNotFound = errors.New("availability rule not found")
)
