package appointments

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot holds identity display fields copied onto the appointment at
// creation. The record stays meaningful even if the referenced guardian,
// child, or doctor account is later deleted or anonymized.
type Snapshot struct {
	DoctorName       string    `json:"doctor_name"`
	DoctorAvatarURL  string    `json:"doctor_avatar_url,omitempty"`
	GuardianName     string    `json:"guardian_name"`
	GuardianPhone    string    `json:"guardian_phone"`
	ChildName        string    `json:"child_name"`
	ChildDateOfBirth time.Time `json:"child_date_of_birth"`
}

// Appointment is the central booking record. It is never deleted;
// cancellation is a status, not a removal.
type Appointment struct {
	ID                 uuid.UUID  `json:"id"`
	SlotID             uuid.UUID  `json:"slot_id"`
	ChildID            uuid.UUID  `json:"child_id"`
	GuardianID         uuid.UUID  `json:"guardian_id"`
	DoctorID           uuid.UUID  `json:"doctor_id"`
	Status             Status     `json:"status"`
	ScheduledAt        time.Time  `json:"scheduled_at"`
	ChiefComplaint     string     `json:"chief_complaint,omitempty"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	EndedAt            *time.Time `json:"ended_at,omitempty"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	Snapshot
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
