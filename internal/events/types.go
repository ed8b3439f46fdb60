package events

import (
	"time"

	"github.com/google/uuid"
)

// PaymentCapturedV1 is emitted when the payment provider confirms capture of
// a consultation fee. It carries everything the lifecycle handler needs so it
// never has to call back into the provider.
type PaymentCapturedV1 struct {
	EventID       string    `json:"event_id"`
	Provider      string    `json:"provider"`
	ProviderRef   string    `json:"provider_ref"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	AmountPaise   int64     `json:"amount_paise"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// PaymentFailedV1 is emitted when a payment attempt fails or expires. The
// appointment stays in pending_payment; the slot hold TTL frees the slot.
type PaymentFailedV1 struct {
	EventID       string    `json:"event_id"`
	Provider      string    `json:"provider"`
	ProviderRef   string    `json:"provider_ref"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	AmountPaise   int64     `json:"amount_paise"`
	FailureReason string    `json:"failure_reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// AppointmentStatusChangedV1 fans out to waiting-room subscribers whenever an
// appointment transitions.
type AppointmentStatusChangedV1 struct {
	EventID       string    `json:"event_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ReminderDueV1 is the queue message the reminder worker consumes.
type ReminderDueV1 struct {
	EventID       string    `json:"event_id"`
	ReminderID    uuid.UUID `json:"reminder_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	LeadTime      string    `json:"lead_time"`
	ScheduledAt   time.Time `json:"scheduled_at"`
}
