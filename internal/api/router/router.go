// Package router assembles the HTTP API: public webhooks and websockets,
// guardian and doctor portals behind JWT auth, and the admin surface.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sproutcare/telehealth-platform/internal/admin"
	"github.com/sproutcare/telehealth-platform/internal/http/handlers"
	"github.com/sproutcare/telehealth-platform/internal/http/middleware"
	"github.com/sproutcare/telehealth-platform/internal/payments"
	"github.com/sproutcare/telehealth-platform/internal/waitingroom"
	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	SlotsHandler        *handlers.SlotsHandler
	AvailabilityHandler *handlers.AvailabilityHandler
	BookingHandler      *handlers.BookingHandler
	AppointmentsHandler *handlers.AppointmentsHandler
	CheckoutHandler     *handlers.CheckoutHandler
	VideoHandler        *handlers.VideoHandler

	RazorpayWebhook *payments.RazorpayWebhookHandler
	FakePayments    *payments.FakePaymentsHandler
	WaitingRoom     *waitingroom.Handler
	AdminStats      *admin.StatsHandler

	AuthSecret         string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Booking endpoints sit behind a tighter rate limit so one client
	// cannot sweep every open slot. Zero disables the limiter.
	BookingRatePerSec float64
	BookingBurst      int
}

// New creates a new chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: health, metrics, payment webhooks, waiting room.
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.RazorpayWebhook != nil {
			public.Post("/webhooks/razorpay", cfg.RazorpayWebhook.Handle)
		}
		// DEV ONLY: local checkout page standing in for the hosted one.
		if cfg.FakePayments != nil {
			public.Mount("/demo", cfg.FakePayments.Routes())
		}
		if cfg.WaitingRoom != nil {
			public.Get("/ws/waiting-room", cfg.WaitingRoom.HandleConnect)
		}
	})

	// Guardian booking flow.
	r.Group(func(portal chi.Router) {
		portal.Use(middleware.RequireRole(cfg.AuthSecret, middleware.RoleGuardian, middleware.RoleDoctor))

		if cfg.SlotsHandler != nil {
			portal.Get("/doctors/{doctorID}/slots", cfg.SlotsHandler.ListAvailable)
		}
		if cfg.BookingHandler != nil {
			create := portal.With()
			if cfg.BookingRatePerSec > 0 {
				create = portal.With(middleware.RateLimit(cfg.BookingRatePerSec, cfg.BookingBurst))
			}
			create.Post("/bookings", cfg.BookingHandler.Create)
		}
		if cfg.AppointmentsHandler != nil {
			portal.Route("/appointments", func(appts chi.Router) {
				appts.Get("/", cfg.AppointmentsHandler.ListMine)
				appts.Route("/{appointmentID}", func(one chi.Router) {
					one.Get("/", cfg.AppointmentsHandler.Get)
					one.Post("/start", cfg.AppointmentsHandler.Start)
					one.Post("/complete", cfg.AppointmentsHandler.Complete)
					one.Post("/no-show", cfg.AppointmentsHandler.MarkNoShow)
					one.Post("/cancel", cfg.AppointmentsHandler.Cancel)
					one.Get("/cancellation-quote", cfg.AppointmentsHandler.Quote)
					one.Post("/reschedule", cfg.AppointmentsHandler.Reschedule)
					if cfg.CheckoutHandler != nil {
						one.Post("/checkout", cfg.CheckoutHandler.Create)
					}
					if cfg.VideoHandler != nil {
						one.Get("/video/join", cfg.VideoHandler.Join)
					}
				})
			})
		}
	})

	// Doctor schedule management.
	if cfg.AvailabilityHandler != nil {
		r.Group(func(doctor chi.Router) {
			doctor.Use(middleware.RequireRole(cfg.AuthSecret, middleware.RoleDoctor))
			doctor.Route("/doctors/{doctorID}/availability", func(av chi.Router) {
				av.Put("/rules", cfg.AvailabilityHandler.SetRule)
				av.Get("/time-off", cfg.AvailabilityHandler.ListTimeOff)
				av.Post("/time-off", cfg.AvailabilityHandler.AddTimeOff)
				av.Delete("/time-off/{timeOffID}", cfg.AvailabilityHandler.RemoveTimeOff)
				av.Post("/slots/generate", cfg.AvailabilityHandler.GenerateSlots)
			})
		})
	}

	// Admin routes.
	if cfg.AdminStats != nil {
		r.Route("/admin", func(adminRoutes chi.Router) {
			adminRoutes.Use(middleware.RequireRole(cfg.AuthSecret, middleware.RoleAdmin))
			adminRoutes.Get("/stats", cfg.AdminStats.GetStats)
		})
	}

	return r
}
