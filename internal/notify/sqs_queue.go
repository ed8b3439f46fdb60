package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/sproutcare/telehealth-platform/internal/events"
	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

// SQSQueue carries reminder events over an SQS queue (AWS or LocalStack).
// Events ride as JSON message bodies.
type SQSQueue struct {
	client   *sqs.Client
	queueURL string
	logger   *logging.Logger
}

// NewSQSQueue wraps the provided SQS client.
func NewSQSQueue(client *sqs.Client, queueURL string, logger *logging.Logger) *SQSQueue {
	if client == nil {
		panic("notify: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("notify: SQS queue URL cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SQSQueue{client: client, queueURL: queueURL, logger: logger}
}

// Publish marshals the event and sends it as a single message.
func (q *SQSQueue) Publish(ctx context.Context, evt events.ReminderDueV1) error {
	body, err := encodeReminderDue(evt)
	if err != nil {
		return err
	}
	if _, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	}); err != nil {
		return fmt.Errorf("notify: publish reminder event: %w", err)
	}
	return nil
}

// Receive long-polls the queue and decodes each message body. A body that
// does not parse is deleted on the spot; redelivery cannot make it valid.
func (q *SQSQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Delivery, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(maxMessages),
		WaitTimeSeconds:     int32(waitSeconds),
	})
	if err != nil {
		return nil, fmt.Errorf("notify: receive reminder events: %w", err)
	}

	deliveries := make([]Delivery, 0, len(out.Messages))
	for _, msg := range out.Messages {
		evt, err := DecodeReminderDue(aws.ToString(msg.Body))
		if err != nil {
			q.logger.Error("dropping undecodable reminder message",
				"message_id", aws.ToString(msg.MessageId), "error", err)
			_ = q.Ack(ctx, aws.ToString(msg.ReceiptHandle))
			continue
		}
		deliveries = append(deliveries, Delivery{
			MessageID:     aws.ToString(msg.MessageId),
			Event:         evt,
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
		})
	}
	return deliveries, nil
}

// Ack deletes the message so SQS stops redelivering it.
func (q *SQSQueue) Ack(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return nil
	}
	if _, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	}); err != nil {
		return fmt.Errorf("notify: ack reminder event: %w", err)
	}
	return nil
}
