package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sproutcare/telehealth-platform/internal/booking"
	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

// BookingHandler turns a guardian's slot selection into a held slot and a
// pending_payment appointment.
type BookingHandler struct {
	orchestrator *booking.Orchestrator
	logger       *logging.Logger
}

// NewBookingHandler creates a new booking handler.
func NewBookingHandler(orchestrator *booking.Orchestrator, logger *logging.Logger) *BookingHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingHandler{orchestrator: orchestrator, logger: logger}
}

// Create books a slot for the authenticated guardian.
// POST /bookings
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	guardianID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req booking.BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.GuardianID = guardianID

	appt, err := h.orchestrator.Book(r.Context(), req)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, appt)
}
