package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Rule is a recurring weekly template defining a doctor's bookable hours for
// one day of the week. Day-of-week follows 0=Sunday..6=Saturday. Only one
// rule per (doctor, day) is active at a time; replaced rules are deactivated,
// never deleted.
type Rule struct {
	ID                  uuid.UUID `json:"id"`
	DoctorID            uuid.UUID `json:"doctor_id"`
	DayOfWeek           int       `json:"day_of_week"`
	StartTime           string    `json:"start_time"` // HH:mm, 24 hour
	EndTime             string    `json:"end_time"`   // HH:mm, 24 hour
	SlotDurationMinutes int       `json:"slot_duration_minutes"`
	Active              bool      `json:"active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// TimeOff blocks slot generation for a date range. Existing booked
// appointments inside the range are untouched; cancelling them is a separate,
// explicit action.
type TimeOff struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Covers reports whether the given day falls inside the time-off range,
// compared at date granularity in the day's location.
func (t *TimeOff) Covers(day time.Time) bool {
	d := dateOnly(day)
	return !d.Before(dateOnly(t.StartDate)) && !d.After(dateOnly(t.EndDate))
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseClock parses an HH:mm 24-hour string into hours and minutes.
func ParseClock(value string) (hour, minute int, err error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("availability: invalid time %q, want HH:mm", value)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("availability: invalid hour in %q", value)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("availability: invalid minute in %q", value)
	}
	return hour, minute, nil
}

// clockMinutes converts an HH:mm string to minutes since midnight.
func clockMinutes(value string) (int, error) {
	h, m, err := ParseClock(value)
	if err != nil {
		return 0, err
	}
	return h*60 + m, nil
}
