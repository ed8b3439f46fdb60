package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sproutcare/telehealth-platform/internal/slots"
	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

// defaultSlotWindow is how far ahead the slot listing looks when the caller
// gives no range.
const defaultSlotWindow = 7 * 24 * time.Hour

// slotLister is the slice of the slot store the handler needs.
type slotLister interface {
	ListAvailable(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]slots.Slot, error)
}

// SlotsHandler serves the guardian-facing open-slot listing.
type SlotsHandler struct {
	slots  slotLister
	logger *logging.Logger
}

// NewSlotsHandler creates a new slots handler.
func NewSlotsHandler(store slotLister, logger *logging.Logger) *SlotsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SlotsHandler{slots: store, logger: logger}
}

// ListAvailable returns a doctor's open slots inside a window.
// GET /doctors/{doctorID}/slots?from=RFC3339&to=RFC3339
func (h *SlotsHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := urlUUID(w, r, "doctorID")
	if !ok {
		return
	}

	from := time.Now().UTC()
	to := from.Add(defaultSlotWindow)
	if s := r.URL.Query().Get("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid from time, use RFC3339 format")
			return
		}
		from = t
		to = from.Add(defaultSlotWindow)
	}
	if s := r.URL.Query().Get("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid to time, use RFC3339 format")
			return
		}
		to = t
	}
	if !to.After(from) {
		respondError(w, http.StatusBadRequest, "to must be after from")
		return
	}

	open, err := h.slots.ListAvailable(r.Context(), doctorID, from, to)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"slots": open})
}
