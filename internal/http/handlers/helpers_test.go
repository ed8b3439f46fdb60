package handlers

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/sproutcare/telehealth-platform/internal/appointments"
	"github.com/sproutcare/telehealth-platform/internal/http/middleware"
)

const testSecret = "test-secret"

var handlerTestNow = time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

func signToken(t *testing.T, role string, subject uuid.UUID) string {
	t.Helper()
	claims := middleware.PortalClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func appointmentRowColumns() []string {
	return []string{
		"id", "slot_id", "child_id", "guardian_id", "doctor_id", "status", "scheduled_at", "chief_complaint",
		"started_at", "ended_at", "canceled_at", "cancellation_reason",
		"doctor_name", "doctor_avatar_url", "guardian_name", "guardian_phone", "child_name", "child_date_of_birth",
		"created_at", "updated_at",
	}
}

func sampleAppointment(status appointments.Status) *appointments.Appointment {
	return &appointments.Appointment{
		ID:          uuid.New(),
		SlotID:      uuid.New(),
		ChildID:     uuid.New(),
		GuardianID:  uuid.New(),
		DoctorID:    uuid.New(),
		Status:      status,
		ScheduledAt: handlerTestNow.Add(48 * time.Hour),
		Snapshot: appointments.Snapshot{
			DoctorName:       "Dr. Asha Rao",
			GuardianName:     "Priya Kumar",
			GuardianPhone:    "+919800000001",
			ChildName:        "Aarav Kumar",
			ChildDateOfBirth: time.Date(2021, 6, 14, 0, 0, 0, 0, time.UTC),
		},
	}
}

func appointmentRow(a *appointments.Appointment) *pgxmock.Rows {
	return pgxmock.NewRows(appointmentRowColumns()).AddRow(
		a.ID, a.SlotID, a.ChildID, a.GuardianID, a.DoctorID, a.Status, a.ScheduledAt, a.ChiefComplaint,
		a.StartedAt, a.EndedAt, a.CanceledAt, a.CancellationReason,
		a.DoctorName, a.DoctorAvatarURL, a.GuardianName, a.GuardianPhone, a.ChildName, a.ChildDateOfBirth,
		handlerTestNow, handlerTestNow,
	)
}
