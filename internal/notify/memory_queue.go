package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sproutcare/telehealth-platform/internal/events"
)

// MemoryQueue carries reminder events over a buffered channel so the whole
// dispatch→deliver path runs in one process without an SQS endpoint.
// Acknowledgement is implicit: a received event is already off the channel,
// so there is no redelivery.
type MemoryQueue struct {
	deliveries chan Delivery
}

// NewMemoryQueue creates a queue holding at most buffer undelivered events.
func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 128
	}
	return &MemoryQueue{deliveries: make(chan Delivery, buffer)}
}

// Publish enqueues the event, blocking until there is room or ctx is done.
func (q *MemoryQueue) Publish(ctx context.Context, evt events.ReminderDueV1) error {
	d := Delivery{
		MessageID:     uuid.NewString(),
		Event:         stampEventID(evt),
		ReceiptHandle: uuid.NewString(),
	}
	select {
	case q.deliveries <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive waits up to waitSeconds for the first event, then drains whatever
// else is immediately available, up to maxMessages. With waitSeconds <= 0 it
// waits until an event arrives or ctx is done.
func (q *MemoryQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Delivery, error) {
	if maxMessages <= 0 {
		maxMessages = 1
	}
	var deadline <-chan time.Time
	if waitSeconds > 0 {
		timer := time.NewTimer(time.Duration(waitSeconds) * time.Second)
		defer timer.Stop()
		deadline = timer.C
	}

	var first Delivery
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-deadline:
		return nil, nil
	case first = <-q.deliveries:
	}

	batch := []Delivery{first}
	for len(batch) < maxMessages {
		select {
		case d := <-q.deliveries:
			batch = append(batch, d)
		default:
			return batch, nil
		}
	}
	return batch, nil
}

// Ack is a no-op: receiving already removed the event from the channel.
func (q *MemoryQueue) Ack(context.Context, string) error { return nil }
