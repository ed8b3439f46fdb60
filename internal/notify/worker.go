package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sproutcare/telehealth-platform/internal/appointments"
	"github.com/sproutcare/telehealth-platform/internal/events"
	"github.com/sproutcare/telehealth-platform/internal/identity"
	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

type appointmentReader interface {
	Get(ctx context.Context, id uuid.UUID) (*appointments.Appointment, error)
}

type guardianReader interface {
	GetGuardian(ctx context.Context, id uuid.UUID) (*identity.GuardianProfile, error)
}

// Dispatcher polls for due reminders and publishes them to the queue. It only
// publishes; the consuming worker owns the pending→sent transition, so a
// reminder published twice is still sent once.
type Dispatcher struct {
	store  *ReminderStore
	queue  Queue
	logger *logging.Logger
	tick   time.Duration
	now    func() time.Time
}

func NewDispatcher(store *ReminderStore, queue Queue, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		store:  store,
		queue:  queue,
		logger: logger,
		tick:   30 * time.Second,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithInterval overrides the poll interval.
func (d *Dispatcher) WithInterval(tick time.Duration) *Dispatcher {
	if tick > 0 {
		d.tick = tick
	}
	return d
}

// WithClock overrides the dispatcher clock in tests.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Run polls until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.DispatchDue(ctx); err != nil {
				d.logger.Error("reminder dispatch pass failed", "error", err)
			}
		}
	}
}

// DispatchDue publishes every due pending reminder. Exposed for tests and for
// the inline development mode.
func (d *Dispatcher) DispatchDue(ctx context.Context) error {
	due, err := d.store.ListDue(ctx, d.now(), 100)
	if err != nil {
		return err
	}
	for _, rem := range due {
		evt := events.ReminderDueV1{
			ReminderID:    rem.ID,
			AppointmentID: rem.AppointmentID,
			LeadTime:      rem.LeadTime,
			ScheduledAt:   rem.SendAt,
		}
		if err := d.queue.Publish(ctx, evt); err != nil {
			return err
		}
	}
	if len(due) > 0 {
		d.logger.Info("dispatched due reminders", "count", len(due))
	}
	return nil
}

// Worker consumes reminder events and sends the emails.
type Worker struct {
	store  *ReminderStore
	queue  Queue
	appts  appointmentReader
	people guardianReader
	email  EmailSender
	logger *logging.Logger
}

func NewWorker(store *ReminderStore, queue Queue, appts appointmentReader, people guardianReader, email EmailSender, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{
		store:  store,
		queue:  queue,
		appts:  appts,
		people: people,
		email:  email,
		logger: logger,
	}
}

// Run consumes until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		deliveries, err := w.queue.Receive(ctx, 10, 10)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("reminder receive failed", "error", err)
			continue
		}
		for _, d := range deliveries {
			if err := w.Process(ctx, d.Event); err != nil {
				w.logger.Error("reminder processing failed", "error", err, "message_id", d.MessageID)
				continue
			}
			if err := w.queue.Ack(ctx, d.ReceiptHandle); err != nil {
				w.logger.Error("reminder ack failed", "error", err, "message_id", d.MessageID)
			}
		}
	}
}

// Process handles one reminder event. Also invoked directly by the Lambda
// entrypoint, whose SQS trigger owns receive and acknowledgement.
func (w *Worker) Process(ctx context.Context, evt events.ReminderDueV1) error {
	// Claim before sending. A lost claim means another worker, or a previous
	// delivery of this same message, already sent it.
	claimed, err := w.store.MarkSent(ctx, evt.ReminderID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	appt, err := w.appts.Get(ctx, evt.AppointmentID)
	if err != nil {
		return err
	}
	if appt.Status != appointments.StatusScheduled {
		w.logger.Info("skipping reminder for non-scheduled appointment",
			"appointment_id", appt.ID.String(), "status", string(appt.Status))
		return nil
	}

	guardian, err := w.people.GetGuardian(ctx, appt.GuardianID)
	if err != nil {
		return err
	}
	if guardian.Email == "" {
		w.logger.Warn("guardian has no email, dropping reminder", "guardian_id", guardian.ID.String())
		return nil
	}

	msg := reminderEmail(appt, guardian.FullName, guardian.Email)
	if err := w.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: send reminder: %w", err)
	}
	w.logger.Info("reminder sent", "appointment_id", appt.ID.String(), "lead_time", evt.LeadTime)
	return nil
}

func reminderEmail(appt *appointments.Appointment, guardianName, guardianEmail string) EmailMessage {
	when := appt.ScheduledAt.Format("Monday, January 2 at 3:04 PM")
	return EmailMessage{
		To:      guardianEmail,
		ToName:  guardianName,
		Subject: fmt.Sprintf("Reminder: %s's appointment with %s", appt.ChildName, appt.DoctorName),
		Body: fmt.Sprintf(
			"Hi %s,\n\n%s has an upcoming video consultation with %s on %s.\n\nPlease join from the SproutCare app a few minutes early.\n",
			guardianName, appt.ChildName, appt.DoctorName, when,
		),
	}
}
