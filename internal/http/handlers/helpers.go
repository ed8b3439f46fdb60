// Package handlers exposes the booking, scheduling, and consultation HTTP
// API. Handlers decode requests, enforce ownership, and translate domain
// errors into status codes; all business rules live in the service packages.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sproutcare/telehealth-platform/internal/appointments"
	"github.com/sproutcare/telehealth-platform/internal/availability"
	"github.com/sproutcare/telehealth-platform/internal/booking"
	"github.com/sproutcare/telehealth-platform/internal/http/middleware"
	"github.com/sproutcare/telehealth-platform/internal/identity"
	"github.com/sproutcare/telehealth-platform/internal/payments"
	"github.com/sproutcare/telehealth-platform/internal/reschedule"
	"github.com/sproutcare/telehealth-platform/internal/slots"
	"github.com/sproutcare/telehealth-platform/internal/video"
	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError maps sentinel errors from the service packages onto
// HTTP statuses. Unrecognized errors become a logged 500.
func respondDomainError(w http.ResponseWriter, logger *logging.Logger, err error) {
	switch {
	case errors.Is(err, slots.ErrSlotUnavailable):
		respondError(w, http.StatusConflict, "slot is no longer available")
	case errors.Is(err, slots.ErrSlotNotFound),
		errors.Is(err, appointments.ErrAppointmentNotFound),
		errors.Is(err, availability.ErrRuleNotFound),
		errors.Is(err, identity.ErrProfileNotFound),
		errors.Is(err, payments.ErrPaymentNotFound),
		errors.Is(err, video.ErrRoomNotProvisioned):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, booking.ErrMissingSelection),
		errors.Is(err, availability.ErrInvalidDayOfWeek),
		errors.Is(err, availability.ErrInvalidWindow),
		errors.Is(err, availability.ErrInvalidSlotDuration),
		errors.Is(err, availability.ErrInvalidDateRange):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, appointments.ErrInvalidTransition),
		errors.Is(err, reschedule.ErrRescheduleNotAllowed),
		errors.Is(err, payments.ErrNotPayable):
		respondError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// urlUUID parses a UUID chi route parameter, writing a 400 on failure.
func urlUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// callerID returns the authenticated subject, writing a 401 when the token
// is absent or malformed.
func callerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := middleware.SubjectID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return uuid.Nil, false
	}
	return id, true
}

// canActOn reports whether the caller may operate on the appointment:
// the owning guardian, the assigned doctor, or an admin. Denials answer 404
// so appointment IDs are not probeable.
func canActOn(w http.ResponseWriter, r *http.Request, appt *appointments.Appointment) bool {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return false
	}
	if claims.Role == middleware.RoleAdmin {
		return true
	}
	subject, _ := middleware.SubjectID(r.Context())
	switch claims.Role {
	case middleware.RoleGuardian:
		if appt.GuardianID == subject {
			return true
		}
	case middleware.RoleDoctor:
		if appt.DoctorID == subject {
			return true
		}
	}
	respondError(w, http.StatusNotFound, "appointment not found")
	return false
}
