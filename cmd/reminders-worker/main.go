package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/sproutcare/telehealth-platform/cmd/mainconfig"
	appconfig "github.com/sproutcare/telehealth-platform/internal/config"
	"github.com/sproutcare/telehealth-platform/internal/appointments"
	"github.com/sproutcare/telehealth-platform/internal/identity"
	"github.com/sproutcare/telehealth-platform/internal/notify"
	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

// Long-running consumer of the reminder queue. Deployments that prefer a
// lambda can run cmd/reminders-lambda against the same queue instead.
func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" || cfg.ReminderQueueURL == "" {
		logger.Error("reminders worker requires DATABASE_URL and REMINDER_QUEUE_URL")
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	queue := notify.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ReminderQueueURL, logger)

	var sender notify.EmailSender
	if cfg.EmailProvider == "ses" {
		sender = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	} else if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		sender = sg
	}
	if sender == nil {
		logger.Warn("no email provider configured, reminders will be logged only")
		sender = notify.NewStubEmailSender(logger)
	}

	reminderStore := notify.NewReminderStore(pool)
	apptStore := appointments.NewStore(pool)
	identityStore := identity.NewStore(pool)

	worker := notify.NewWorker(reminderStore, queue, apptStore, identityStore, sender, logger)
	for i := 0; i < cfg.WorkerCount; i++ {
		go func() {
			if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("reminder worker stopped", "error", err)
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("reminders worker shutting down")
	cancel()
	time.Sleep(2 * time.Second)
}
