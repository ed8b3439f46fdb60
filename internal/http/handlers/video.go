package handlers

import (
	"net/http"

	"github.com/sproutcare/telehealth-platform/internal/http/middleware"
	"github.com/sproutcare/telehealth-platform/internal/video"
	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

// VideoHandler hands out join credentials for consultation rooms.
type VideoHandler struct {
	video  *video.Service
	appts  appointmentGetter
	logger *logging.Logger
}

// NewVideoHandler creates a new video handler.
func NewVideoHandler(svc *video.Service, appts appointmentGetter, logger *logging.Logger) *VideoHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &VideoHandler{video: svc, appts: appts, logger: logger}
}

// Join returns the room and a signed participant token. The room exists only
// once payment is captured and the appointment is scheduled.
// GET /appointments/{appointmentID}/video/join
func (h *VideoHandler) Join(w http.ResponseWriter, r *http.Request) {
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
	subject, ok := callerID(w, r)
	if !ok {
		return
	}
	claims, _ := middleware.ClaimsFromContext(r.Context())

	info, err := h.video.Join(r.Context(), appt.ID, subject, claims.Role)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}
