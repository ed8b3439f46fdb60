package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sproutcare/telehealth-platform/internal/appointments"
	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

// DefaultLeadTimes sends one reminder the day before and one an hour out.
var DefaultLeadTimes = []time.Duration{24 * time.Hour, time.Hour}

// Scheduler creates reminder rows when an appointment is confirmed. It
// satisfies the lifecycle's ReminderScheduler.
type Scheduler struct {
	store     *ReminderStore
	leadTimes []time.Duration
	logger    *logging.Logger
	now       func() time.Time
}

func NewScheduler(store *ReminderStore, leadTimes []time.Duration, logger *logging.Logger) *Scheduler {
	if len(leadTimes) == 0 {
		leadTimes = DefaultLeadTimes
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		store:     store,
		leadTimes: leadTimes,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the scheduler clock in tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// ScheduleReminders inserts one reminder per lead time, dropping any that
// would already be in the past for a near-term booking. Webhook retries are
// harmless: the store skips pairs that exist.
func (s *Scheduler) ScheduleReminders(ctx context.Context, appt *appointments.Appointment) error {
	now := s.now()
	batch := make([]Reminder, 0, len(s.leadTimes))
	for _, lead := range s.leadTimes {
		sendAt := appt.ScheduledAt.Add(-lead)
		if !sendAt.After(now) {
			continue
		}
		batch = append(batch, Reminder{
			AppointmentID: appt.ID,
			GuardianID:    appt.GuardianID,
			SendAt:        sendAt,
			LeadTime:      lead.String(),
		})
	}
	if len(batch) == 0 {
		return nil
	}

	inserted, err := s.store.CreateBatch(ctx, batch)
	if err != nil {
		return err
	}
	s.logger.Info("reminders scheduled",
		"appointment_id", appt.ID.String(), "requested", len(batch), "inserted", inserted)
	return nil
}

// CancelReminders drops the pending reminders for a canceled or rescheduled
// appointment so the dispatcher never picks them up.
func (s *Scheduler) CancelReminders(ctx context.Context, appointmentID uuid.UUID) error {
	if err := s.store.CancelForAppointment(ctx, appointmentID); err != nil {
		return err
	}
	s.logger.Info("reminders canceled", "appointment_id", appointmentID.String())
	return nil
}
