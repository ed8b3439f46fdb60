package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sproutcare/telehealth-platform/internal/availability"
	"github.com/sproutcare/telehealth-platform/internal/http/middleware"
	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

// AvailabilityHandler exposes a doctor's weekly schedule, time-off windows,
// and slot generation.
type AvailabilityHandler struct {
	svc    *availability.Service
	logger *logging.Logger
}

// NewAvailabilityHandler creates a new availability handler.
func NewAvailabilityHandler(svc *availability.Service, logger *logging.Logger) *AvailabilityHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AvailabilityHandler{svc: svc, logger: logger}
}

// canManageDoctor allows the doctor themself or an admin; anyone else gets a
// 403.
func canManageDoctor(w http.ResponseWriter, r *http.Request, doctorID uuid.UUID) bool {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return false
	}
	if claims.Role == middleware.RoleAdmin {
		return true
	}
	subject, _ := middleware.SubjectID(r.Context())
	if claims.Role == middleware.RoleDoctor && subject == doctorID {
		return true
	}
	respondError(w, http.StatusForbidden, "cannot manage another doctor's schedule")
	return false
}

// SetRule creates or replaces the weekly rule for one day.
// PUT /doctors/{doctorID}/availability/rules
func (h *AvailabilityHandler) SetRule(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := urlUUID(w, r, "doctorID")
	if !ok {
		return
	}
	if !canManageDoctor(w, r, doctorID) {
		return
	}

	var params availability.SetRuleParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	params.DoctorID = doctorID

	rule, err := h.svc.SetRule(r.Context(), params)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

type timeOffRequest struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Reason    string    `json:"reason,omitempty"`
}

// AddTimeOff blocks slot generation over a date range.
// POST /doctors/{doctorID}/availability/time-off
func (h *AvailabilityHandler) AddTimeOff(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := urlUUID(w, r, "doctorID")
	if !ok {
		return
	}
	if !canManageDoctor(w, r, doctorID) {
		return
	}

	var req timeOffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	timeOff, err := h.svc.AddTimeOff(r.Context(), doctorID, req.StartDate, req.EndDate, req.Reason)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, timeOff)
}

// RemoveTimeOff deletes a time-off window.
// DELETE /doctors/{doctorID}/availability/time-off/{timeOffID}
func (h *AvailabilityHandler) RemoveTimeOff(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := urlUUID(w, r, "doctorID")
	if !ok {
		return
	}
	timeOffID, ok := urlUUID(w, r, "timeOffID")
	if !ok {
		return
	}
	if !canManageDoctor(w, r, doctorID) {
		return
	}

	if err := h.svc.RemoveTimeOff(r.Context(), doctorID, timeOffID); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTimeOff returns upcoming time-off windows.
// GET /doctors/{doctorID}/availability/time-off?window_days=N
func (h *AvailabilityHandler) ListTimeOff(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := urlUUID(w, r, "doctorID")
	if !ok {
		return
	}
	if !canManageDoctor(w, r, doctorID) {
		return
	}

	windowDays, _ := strconv.Atoi(r.URL.Query().Get("window_days"))

	timeOff, err := h.svc.ListTimeOff(r.Context(), doctorID, windowDays)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"time_off": timeOff})
}

// GenerateSlots materializes bookable slots from the weekly rules.
// POST /doctors/{doctorID}/availability/slots/generate?window_days=N
func (h *AvailabilityHandler) GenerateSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := urlUUID(w, r, "doctorID")
	if !ok {
		return
	}
	if !canManageDoctor(w, r, doctorID) {
		return
	}

	windowDays, _ := strconv.Atoi(r.URL.Query().Get("window_days"))

	created, err := h.svc.GenerateSlots(r.Context(), doctorID, windowDays)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"slots_created": created})
}
