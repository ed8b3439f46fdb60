package payments

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	StatusCreated  = "created"
	StatusCaptured = "captured"
	StatusFailed   = "failed"
	StatusRefunded = "refunded"
)

var (
	// ErrPaymentNotFound is returned when no payment matches the lookup.
	ErrPaymentNotFound = errors.New("payments: payment not found")
)

// Payment tracks a consultation-fee charge against a provider order. Amounts
// are in paise.
type Payment struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Provider      string    `json:"provider"`
	OrderRef      string    `json:"order_ref"`
	PaymentRef    string    `json:"payment_ref,omitempty"`
	AmountPaise   int64     `json:"amount_paise"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
