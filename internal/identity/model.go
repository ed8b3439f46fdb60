package identity

import (
	"time"

	"github.com/google/uuid"
)

// DoctorProfile holds the display fields snapshotted onto appointments.
type DoctorProfile struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Specialty string    `json:"specialty,omitempty"`
}

// GuardianProfile is the account that books on behalf of children.
type GuardianProfile struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Phone    string    `json:"phone"`
	Email    string    `json:"email,omitempty"`
}

// ChildProfile belongs to a guardian; appointments are booked for a child.
type ChildProfile struct {
	ID          uuid.UUID `json:"id"`
	GuardianID  uuid.UUID `json:"guardian_id"`
	FullName    string    `json:"full_name"`
	DateOfBirth time.Time `json:"date_of_birth"`
}
