package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sproutcare/telehealth-platform/cmd/mainconfig"
	"github.com/sproutcare/telehealth-platform/internal/admin"
	"github.com/sproutcare/telehealth-platform/internal/api/router"
	"github.com/sproutcare/telehealth-platform/internal/appointments"
	"github.com/sproutcare/telehealth-platform/internal/availability"
	"github.com/sproutcare/telehealth-platform/internal/booking"
	appconfig "github.com/sproutcare/telehealth-platform/internal/config"
	"github.com/sproutcare/telehealth-platform/internal/events"
	"github.com/sproutcare/telehealth-platform/internal/http/handlers"
	"github.com/sproutcare/telehealth-platform/internal/identity"
	"github.com/sproutcare/telehealth-platform/internal/notify"
	"github.com/sproutcare/telehealth-platform/internal/observability/metrics"
	"github.com/sproutcare/telehealth-platform/internal/payments"
	"github.com/sproutcare/telehealth-platform/internal/reschedule"
	"github.com/sproutcare/telehealth-platform/internal/slots"
	"github.com/sproutcare/telehealth-platform/internal/video"
	"github.com/sproutcare/telehealth-platform/internal/waitingroom"
	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting sproutcare API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	registry := prometheus.NewRegistry()
	bookingMetrics := metrics.NewBookingMetrics(registry)

	// Stores.
	slotStore := slots.NewStore(pool)
	apptStore := appointments.NewStore(pool)
	availStore := availability.NewStore(pool)
	identityStore := identity.NewStore(pool)
	paymentStore := payments.NewStore(pool)
	reminderStore := notify.NewReminderStore(pool)
	processedStore := events.NewProcessedStore(pool)

	// Reminder pipeline: queue, email sender, dispatcher.
	var queue notify.Queue
	if cfg.UseMemoryQueue {
		queue = notify.NewMemoryQueue(256)
	} else {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		queue = notify.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ReminderQueueURL, logger)
	}

	var emailSender notify.EmailSender
	switch cfg.EmailProvider {
	case "ses":
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		emailSender = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	default:
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender != nil {
			emailSender = sender
		}
	}
	if emailSender == nil {
		logger.Warn("no email provider configured, reminder emails will be logged only")
		emailSender = notify.NewStubEmailSender(logger)
	}

	scheduler := notify.NewScheduler(reminderStore, cfg.ReminderLeadTimes, logger)
	dispatcher := notify.NewDispatcher(reminderStore, queue, logger)
	go func() {
		if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("reminder dispatcher stopped", "error", err)
		}
	}()
	if cfg.UseMemoryQueue {
		// Without SQS the delivery worker runs in-process.
		worker := notify.NewWorker(reminderStore, queue, apptStore, identityStore, emailSender, logger)
		for i := 0; i < cfg.WorkerCount; i++ {
			go func() {
				if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
					logger.Error("reminder worker stopped", "error", err)
				}
			}()
		}
	}

	// Video rooms.
	videoSvc := video.NewService(
		video.NewEmbeddedRoomProvider("sprout"),
		video.NewSessionStore(rdb),
		cfg.VideoRoomTokenSecret,
		cfg.VideoRoomTokenTTL,
		logger,
	)

	// Waiting room websocket hub.
	hub := waitingroom.NewHub(logger)

	// Core services.
	lifecycle := appointments.NewLifecycle(apptStore, slotStore, logger).
		WithVideo(videoSvc).
		WithReminders(scheduler).
		WithBroadcaster(hub).
		WithMetrics(bookingMetrics)

	availabilitySvc := availability.NewService(availStore, slotStore, logger)

	orchestrator := booking.NewOrchestrator(slotStore, identityStore, apptStore, cfg.SlotHoldTTL, logger).
		WithMetrics(bookingMetrics)

	reschedSvc := reschedule.NewService(pool, slotStore, apptStore, lifecycle,
		reschedule.NewPolicy(cfg.LateCancellationFee, cfg.LateCancellationWindow), logger).
		WithMetrics(bookingMetrics)

	// Payments.
	var orders payments.OrderCreator
	var fakePayments *payments.FakePaymentsHandler
	if cfg.AllowFakePayments {
		orders = payments.NewFakeOrdersClient(logger)
		fakePayments = payments.NewFakePaymentsHandler(paymentStore, lifecycle, logger)
		logger.Warn("fake payments enabled, do not use in production")
	} else {
		orders = payments.NewRazorpayOrdersClient(cfg.PaymentAPIKey, cfg.PaymentAPISecret, cfg.PaymentBaseURL, logger)
	}
	checkoutSvc := payments.NewCheckoutService(orders, paymentStore, apptStore,
		cfg.PaymentProvider, cfg.PaymentAPIKey, cfg.ConsultationFee, logger)
	webhook := payments.NewRazorpayWebhookHandler(cfg.PaymentWebhookKey, paymentStore, lifecycle, processedStore, logger)

	// HTTP surface.
	routerCfg := &router.Config{
		Logger:              logger,
		SlotsHandler:        handlers.NewSlotsHandler(slotStore, logger),
		AvailabilityHandler: handlers.NewAvailabilityHandler(availabilitySvc, logger),
		BookingHandler:      handlers.NewBookingHandler(orchestrator, logger),
		AppointmentsHandler: handlers.NewAppointmentsHandler(lifecycle, apptStore, reschedSvc, logger),
		CheckoutHandler:     handlers.NewCheckoutHandler(checkoutSvc, apptStore, logger),
		VideoHandler:        handlers.NewVideoHandler(videoSvc, apptStore, logger),
		RazorpayWebhook:     webhook,
		FakePayments:        fakePayments,
		WaitingRoom:         waitingroom.NewHandler(hub, logger),
		AdminStats:          admin.NewStatsHandler(admin.NewStatsRepository(pool), logger),
		AuthSecret:          cfg.PortalJWTSecret,
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		BookingRatePerSec:   2,
		BookingBurst:        5,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
