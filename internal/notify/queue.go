package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/sproutcare/telehealth-platform/internal/events"
)

// Queue carries ReminderDueV1 events from the dispatcher to the delivery
// workers. SQS in deployment, an in-process buffer in development and tests.
type Queue interface {
	Publish(ctx context.Context, evt events.ReminderDueV1) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Delivery, error)
	Ack(ctx context.Context, receiptHandle string) error
}

// Delivery is one in-flight reminder event. The receipt handle goes back to
// Ack once the event has been handled; until then the transport may
// redeliver, which the worker's sent-claim absorbs.
type Delivery struct {
	MessageID     string
	Event         events.ReminderDueV1
	ReceiptHandle string
}

func stampEventID(evt events.ReminderDueV1) events.ReminderDueV1 {
	if evt.EventID == "" {
		evt.EventID = uuid.NewString()
	}
	return evt
}

func encodeReminderDue(evt events.ReminderDueV1) (string, error) {
	body, err := json.Marshal(stampEventID(evt))
	if err != nil {
		return "", fmt.Errorf("notify: encode reminder event: %w", err)
	}
	return string(body), nil
}

// DecodeReminderDue parses a reminder event off the wire. The lambda
// entrypoint uses it directly because its SQS trigger hands over raw
// message bodies.
func DecodeReminderDue(body string) (events.ReminderDueV1, error) {
	var evt events.ReminderDueV1
	if err := json.Unmarshal([]byte(body), &evt); err != nil {
		return evt, fmt.Errorf("notify: decode reminder event: %w", err)
	}
	return evt, nil
}
