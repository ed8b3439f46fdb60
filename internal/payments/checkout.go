package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sproutcare/telehealth-platform/internal/appointments"
	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

// appointmentReader is the slice of the appointment store checkout needs.
type appointmentReader interface {
	Get(ctx context.Context, id uuid.UUID) (*appointments.Appointment, error)
}

// ErrNotPayable is returned when checkout is requested for an appointment
// that is not waiting on payment.
var ErrNotPayable = errors.New("payments: appointment is not awaiting payment")

// CheckoutResponse carries what the client app needs to open the provider's
// payment sheet.
type CheckoutResponse struct {
	OrderRef    string `json:"order_ref"`
	AmountPaise int64  `json:"amount_paise"`
	Currency    string `json:"currency"`
	KeyID       string `json:"key_id"`
	Provider    string `json:"provider"`
}

// CheckoutService opens a provider order for a pending appointment and
// records the payment row the webhook will later resolve.
type CheckoutService struct {
	orders      OrderCreator
	store       *Store
	appts       appointmentReader
	provider    string
	keyID       string
	amountPaise int64
	logger      *logging.Logger
}

func NewCheckoutService(orders OrderCreator, store *Store, appts appointmentReader, provider, keyID string, consultationFeeRupees int, logger *logging.Logger) *CheckoutService {
	if logger == nil {
		logger = logging.Default()
	}
	return &CheckoutService{
		orders:      orders,
		store:       store,
		appts:       appts,
		provider:    provider,
		keyID:       keyID,
		amountPaise: int64(consultationFeeRupees) * 100,
		logger:      logger,
	}
}

// Checkout creates a provider order for the appointment's consultation fee.
// The appointment id rides in the order notes so the webhook can route the
// capture without any provider-side state of ours.
func (s *CheckoutService) Checkout(ctx context.Context, appointmentID uuid.UUID) (*CheckoutResponse, error) {
	appt, err := s.appts.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != appointments.StatusPendingPayment {
		return nil, fmt.Errorf("payments: appointment is %s: %w", appt.Status, ErrNotPayable)
	}

	order, err := s.orders.CreateOrder(ctx, OrderParams{
		AmountPaise: s.amountPaise,
		Currency:    "INR",
		Receipt:     appt.ID.String(),
		Notes: map[string]string{
			"appointment_id": appt.ID.String(),
			"guardian_id":    appt.GuardianID.String(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("payments: create order: %w", err)
	}

	if _, err := s.store.Create(ctx, &Payment{
		AppointmentID: appt.ID,
		Provider:      s.provider,
		OrderRef:      order.ID,
		AmountPaise:   s.amountPaise,
		Currency:      "INR",
	}); err != nil {
		return nil, err
	}

	s.logger.Info("checkout order created",
		"appointment_id", appt.ID.String(), "order_ref", order.ID, "amount_paise", s.amountPaise)
	return &CheckoutResponse{
		OrderRef:    order.ID,
		AmountPaise: s.amountPaise,
		Currency:    "INR",
		KeyID:       s.keyID,
		Provider:    s.provider,
	}, nil
}
