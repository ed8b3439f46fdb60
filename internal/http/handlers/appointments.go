package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sproutcare/telehealth-platform/internal/appointments"
	"github.com/sproutcare/telehealth-platform/internal/http/middleware"
	"github.com/sproutcare/telehealth-platform/internal/reschedule"
	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

// AppointmentsHandler serves appointment reads, clinical status transitions,
// and the reschedule/cancellation flow.
type AppointmentsHandler struct {
	lifecycle *appointments.Lifecycle
	store     *appointments.Store
	resched   *reschedule.Service
	logger    *logging.Logger
}

// NewAppointmentsHandler creates a new appointments handler.
func NewAppointmentsHandler(lifecycle *appointments.Lifecycle, store *appointments.Store, resched *reschedule.Service, logger *logging.Logger) *AppointmentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentsHandler{
		lifecycle: lifecycle,
		store:     store,
		resched:   resched,
		logger:    logger,
	}
}

// load fetches the appointment and enforces ownership. It writes the
// response on failure.
func (h *AppointmentsHandler) load(w http.ResponseWriter, r *http.Request) (*appointments.Appointment, bool) {
	id, ok := urlUUID(w, r, "appointmentID")
	if !ok {
		return nil, false
	}
	appt, err := h.lifecycle.Get(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return nil, false
	}
	if !canActOn(w, r, appt) {
		return nil, false
	}
	return appt, true
}

// Get returns one appointment.
// GET /appointments/{appointmentID}
func (h *AppointmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	appt, ok := h.load(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, appt)
}

// ListMine returns the caller's appointments: a guardian sees their
// bookings, a doctor sees their day.
// GET /appointments?limit=N  (guardian)
// GET /appointments?date=2026-03-09  (doctor)
func (h *AppointmentsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	subject, ok := callerID(w, r)
	if !ok {
		return
	}
	claims, _ := middleware.ClaimsFromContext(r.Context())

	if claims.Role == middleware.RoleDoctor {
		day := time.Now().UTC()
		if s := r.URL.Query().Get("date"); s != "" {
			t, err := time.Parse("2006-01-02", s)
			if err != nil {
				respondError(w, http.StatusBadRequest, "invalid date, use YYYY-MM-DD")
				return
			}
			day = t
		}
		from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		appts, err := h.store.ListForDoctorBetween(r.Context(), subject, from, from.Add(24*time.Hour))
		if err != nil {
			respondDomainError(w, h.logger, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"appointments": appts})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	appts, err := h.store.ListByGuardian(r.Context(), subject, limit)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

// Start moves a scheduled appointment to live when the consultation begins.
// POST /appointments/{appointmentID}/start
func (h *AppointmentsHandler) Start(w http.ResponseWriter, r *http.Request) {
	appt, ok := h.load(w, r)
	if !ok {
		return
	}
	updated, err := h.lifecycle.Start(r.Context(), appt.ID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// Complete closes out a live consultation.
// POST /appointments/{appointmentID}/complete
func (h *AppointmentsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	appt, ok := h.load(w, r)
	if !ok {
		return
	}
	updated, err := h.lifecycle.Complete(r.Context(), appt.ID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// MarkNoShow records that the family never joined. Doctor-initiated only.
// POST /appointments/{appointmentID}/no-show
func (h *AppointmentsHandler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || (claims.Role != middleware.RoleDoctor && claims.Role != middleware.RoleAdmin) {
		respondError(w, http.StatusForbidden, "only the doctor can record a no-show")
		return
	}
	appt, ok := h.load(w, r)
	if !ok {
		return
	}
	updated, err := h.lifecycle.MarkNoShow(r.Context(), appt.ID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// cancelResponse reports the released appointment and any late fee owed.
type cancelResponse struct {
	Appointment *appointments.Appointment `json:"appointment"`
	FeeCharged  int                       `json:"fee_charged"`
}

// Cancel releases the slot and reports the late-cancellation fee, if any.
// POST /appointments/{appointmentID}/cancel
func (h *AppointmentsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	appt, ok := h.load(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Reason == "" {
		req.Reason = "canceled by guardian"
	}
	result, err := h.resched.Cancel(r.Context(), appt.ID, req.Reason)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, cancelResponse{Appointment: result.Appointment, FeeCharged: result.FeeCharged})
}

// Quote returns the fee a cancellation or reschedule would incur right now.
// GET /appointments/{appointmentID}/cancellation-quote
func (h *AppointmentsHandler) Quote(w http.ResponseWriter, r *http.Request) {
	appt, ok := h.load(w, r)
	if !ok {
		return
	}
	fee, err := h.resched.Quote(r.Context(), appt.ID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"fee": fee})
}

type rescheduleRequest struct {
	NewSlotID uuid.UUID `json:"new_slot_id"`
}

// Reschedule atomically swaps the appointment onto a new slot.
// POST /appointments/{appointmentID}/reschedule
func (h *AppointmentsHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	appt, ok := h.load(w, r)
	if !ok {
		return
	}
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewSlotID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "new_slot_id required")
		return
	}
	result, err := h.resched.Reschedule(r.Context(), appt.ID, req.NewSlotID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, cancelResponse{Appointment: result.Appointment, FeeCharged: result.FeeCharged})
}
