package slots

import (
	"time"

	"github.com/google/uuid"
)

// Slot is a fixed doctor-time window that can be reserved for exactly one
// appointment. A slot is in one of three states: free (available, no holder),
// held (unavailable with a holder and a hold deadline), or booked
// (unavailable with holder and deadline cleared).
type Slot struct {
	ID        uuid.UUID  `json:"id"`
	DoctorID  uuid.UUID  `json:"doctor_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   time.Time  `json:"end_time"`
	Available bool       `json:"available"`
	HolderID  *uuid.UUID `json:"holder_id,omitempty"`
	HeldUntil *time.Time `json:"held_until,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// EffectivelyAvailable reports whether the slot can be offered to a guardian
// at the given instant. An expired hold counts as available; a booked slot
// (no holder, no deadline) never does.
func (s *Slot) EffectivelyAvailable(now time.Time) bool {
	if s.Available {
		return true
	}
	if s.HeldUntil != nil && !s.HeldUntil.After(now) {
		return true
	}
	return false
}

// DefaultHoldTTL bounds how long a guardian's hold survives without being
// confirmed or released.
const DefaultHoldTTL = 10 * time.Minute
