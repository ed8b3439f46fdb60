package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sproutcare/telehealth-platform/cmd/mainconfig"
	"github.com/sproutcare/telehealth-platform/internal/appointments"
	appconfig "github.com/sproutcare/telehealth-platform/internal/config"
	"github.com/sproutcare/telehealth-platform/internal/identity"
	"github.com/sproutcare/telehealth-platform/internal/notify"
	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

// SQS-triggered reminder delivery. The queue integration handles receive and
// delete; the handler only processes message bodies, so delivery stays
// idempotent under lambda retries.
func main() {
	ctx := context.Background()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("load AWS config: %v", err)
	}

	var sender notify.EmailSender = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger)

	worker := notify.NewWorker(
		notify.NewReminderStore(pool),
		nil, // the lambda trigger owns receive/delete
		appointments.NewStore(pool),
		identity.NewStore(pool),
		sender,
		logger,
	)

	lambda.Start(func(ctx context.Context, evt events.SQSEvent) (events.SQSEventResponse, error) {
		var resp events.SQSEventResponse
		for _, record := range evt.Records {
			due, err := notify.DecodeReminderDue(record.Body)
			if err != nil {
				// Redelivery cannot fix a malformed body; drop it.
				logger.Error("dropping undecodable reminder message", "message_id", record.MessageId, "error", err)
				continue
			}
			if err := worker.Process(ctx, due); err != nil {
				logger.Error("reminder processing failed", "message_id", record.MessageId, "error", err)
				resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
					ItemIdentifier: record.MessageId,
				})
			}
		}
		return resp, nil
	})
}
