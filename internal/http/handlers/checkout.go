package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/sproutcare/telehealth-platform/internal/appointments"
	"github.com/sproutcare/telehealth-platform/internal/payments"
	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

// appointmentGetter resolves an appointment for ownership checks.
type appointmentGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*appointments.Appointment, error)
}

// CheckoutHandler starts payment collection for a pending appointment.
type CheckoutHandler struct {
	checkout *payments.CheckoutService
	appts    appointmentGetter
	logger   *logging.Logger
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(checkout *payments.CheckoutService, appts appointmentGetter, logger *logging.Logger) *CheckoutHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CheckoutHandler{checkout: checkout, appts: appts, logger: logger}
}

// Create opens a payment order for the appointment's consultation fee.
// POST /appointments/{appointmentID}/checkout
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "appointmentID")
	if !ok {
		return
	}
	appt, err := h.appts.Get(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	if !canActOn(w, r, appt) {
		return
	}

	resp, err := h.checkout.Checkout(r.Context(), appt.ID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}
