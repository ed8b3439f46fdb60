package payments

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

// FakeOrdersClient is a dev/demo order provider that issues local order refs
// without Razorpay credentials.
//
// This MUST be gated by configuration (ALLOW_FAKE_PAYMENTS) and should never
// be enabled in production.
type FakeOrdersClient struct {
	logger *logging.Logger
}

func NewFakeOrdersClient(logger *logging.Logger) *FakeOrdersClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &FakeOrdersClient{logger: logger}
}

func (c *FakeOrdersClient) CreateOrder(ctx context.Context, params OrderParams) (*ProviderOrder, error) {
	_ = ctx
	if params.AmountPaise <= 0 {
		return nil, fmt.Errorf("payments: fake order requires a positive amount")
	}
	order := &ProviderOrder{
		ID:          "fake_order_" + uuid.NewString(),
		AmountPaise: params.AmountPaise,
		Currency:    params.Currency,
		Status:      "created",
	}
	c.logger.Info("fake order created", "order_ref", order.ID, "receipt", params.Receipt)
	return order, nil
}

// FakePaymentsHandler exposes a tiny demo page to "pay" a consultation fee
// without a provider account. Only mount when ALLOW_FAKE_PAYMENTS=true.
type FakePaymentsHandler struct {
	payments  paymentRecorder
	lifecycle paymentCapturer
	logger    *logging.Logger
}

func NewFakePaymentsHandler(payments paymentRecorder, lifecycle paymentCapturer, logger *logging.Logger) *FakePaymentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &FakePaymentsHandler{payments: payments, lifecycle: lifecycle, logger: logger}
}

func (h *FakePaymentsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/payments/{orderRef}", h.HandleCheckout)
	r.Post("/payments/{orderRef}/complete", h.HandleComplete)
	return r
}

func (h *FakePaymentsHandler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	orderRef := chi.URLParam(r, "orderRef")
	payment, err := h.payments.GetByOrderRef(r.Context(), orderRef)
	if err != nil {
		http.Error(w, "payment not found", http.StatusNotFound)
		return
	}

	rupees := float64(payment.AmountPaise) / 100.0
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Demo Consultation Checkout</title>
  </head>
  <body>
    <h1>Demo Consultation Checkout</h1>
    <p><strong>Amount:</strong> ₹%.2f</p>
    <p>This is a demo-only payment page (no real payment is processed).</p>
    <form method="POST" action="/demo/payments/%s/complete">
      <button type="submit">Pay Consultation Fee</button>
    </form>
  </body>
</html>`, rupees, orderRef)
}

func (h *FakePaymentsHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	orderRef := chi.URLParam(r, "orderRef")
	payment, err := h.payments.MarkCaptured(r.Context(), orderRef, "fake_pay_"+uuid.NewString())
	if err != nil {
		http.Error(w, "payment not found", http.StatusNotFound)
		return
	}
	if _, err := h.lifecycle.HandlePaymentCaptured(r.Context(), payment.AppointmentID); err != nil {
		h.logger.Error("fake payment capture failed", "error", err, "order_ref", orderRef)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("fake payment completed", "order_ref", orderRef, "appointment_id", payment.AppointmentID.String())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<!doctype html><html><body><h1>Payment complete</h1><p>Your appointment is confirmed.</p></body></html>`)
}
