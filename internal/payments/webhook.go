package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/sproutcare/telehealth-platform/internal/appointments"
	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

type processedTracker interface {
	AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

type paymentCapturer interface {
	HandlePaymentCaptured(ctx context.Context, id uuid.UUID) (*appointments.Appointment, error)
}

type paymentRecorder interface {
	MarkCaptured(ctx context.Context, orderRef, paymentRef string) (*Payment, error)
	MarkFailed(ctx context.Context, orderRef, paymentRef, reason string) (*Payment, error)
	GetByOrderRef(ctx context.Context, orderRef string) (*Payment, error)
}

type razorpayEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity razorpayPaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type razorpayPaymentEntity struct {
	ID               string            `json:"id"`
	OrderID          string            `json:"order_id"`
	Amount           int64             `json:"amount"`
	Status           string            `json:"status"`
	ErrorDescription string            `json:"error_description"`
	Notes            map[string]string `json:"notes"`
}

// RazorpayWebhookHandler consumes payment.captured and payment.failed events.
// Delivery is at-least-once, so every event is deduped before it is applied.
type RazorpayWebhookHandler struct {
	webhookSecret string
	payments      paymentRecorder
	lifecycle     paymentCapturer
	processed     processedTracker
	logger        *logging.Logger
}

func NewRazorpayWebhookHandler(secret string, payments paymentRecorder, lifecycle paymentCapturer, processed processedTracker, logger *logging.Logger) *RazorpayWebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &RazorpayWebhookHandler{
		webhookSecret: secret,
		payments:      payments,
		lifecycle:     lifecycle,
		processed:     processed,
		logger:        logger,
	}
}

func (h *RazorpayWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if !verifyRazorpaySignature(h.webhookSecret, payload, r.Header.Get("X-Razorpay-Signature")) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var evt razorpayEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.logger.Error("failed to decode razorpay event", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	eventID := r.Header.Get("X-Razorpay-Event-Id")
	if eventID == "" {
		http.Error(w, "missing event id", http.StatusBadRequest)
		return
	}

	if processed, err := h.processed.AlreadyProcessed(r.Context(), "razorpay", eventID); err != nil {
		h.logger.Error("processed lookup failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	} else if processed {
		w.WriteHeader(http.StatusOK)
		return
	}

	entity := evt.Payload.Payment.Entity
	switch evt.Event {
	case "payment.captured":
		if err := h.handleCaptured(r.Context(), entity); err != nil {
			h.logger.Error("failed to apply payment capture", "error", err, "order_ref", entity.OrderID)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
	case "payment.failed":
		h.handleFailed(r.Context(), entity)
	default:
		h.logger.Debug("ignoring razorpay event", "event", evt.Event)
	}

	if _, err := h.processed.MarkProcessed(r.Context(), "razorpay", eventID); err != nil {
		h.logger.Error("failed to mark event processed", "error", err, "event_id", eventID)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *RazorpayWebhookHandler) handleCaptured(ctx context.Context, entity razorpayPaymentEntity) error {
	if _, err := h.payments.MarkCaptured(ctx, entity.OrderID, entity.ID); err != nil {
		return err
	}

	appointmentID, err := h.resolveAppointment(ctx, entity)
	if err != nil {
		return err
	}
	if _, err := h.lifecycle.HandlePaymentCaptured(ctx, appointmentID); err != nil {
		return err
	}
	h.logger.Info("payment captured", "order_ref", entity.OrderID, "appointment_id", appointmentID.String())
	return nil
}

// handleFailed only records the failure. The appointment stays in
// pending_payment and the slot hold expires on its own; the guardian can
// retry checkout against the same appointment.
func (h *RazorpayWebhookHandler) handleFailed(ctx context.Context, entity razorpayPaymentEntity) {
	if _, err := h.payments.MarkFailed(ctx, entity.OrderID, entity.ID, entity.ErrorDescription); err != nil {
		h.logger.Warn("failed to record payment failure", "error", err, "order_ref", entity.OrderID)
		return
	}
	h.logger.Info("payment failed", "order_ref", entity.OrderID, "reason", entity.ErrorDescription)
}

// resolveAppointment prefers the notes metadata, falling back to our payment
// record when the provider strips notes from the webhook payload.
func (h *RazorpayWebhookHandler) resolveAppointment(ctx context.Context, entity razorpayPaymentEntity) (uuid.UUID, error) {
	if raw, ok := entity.Notes["appointment_id"]; ok {
		if id, err := uuid.Parse(raw); err == nil {
			return id, nil
		}
	}
	payment, err := h.payments.GetByOrderRef(ctx, entity.OrderID)
	if err != nil {
		return uuid.Nil, err
	}
	return payment.AppointmentID, nil
}

func verifyRazorpaySignature(secret string, payload []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
