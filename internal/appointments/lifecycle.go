package appointments

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sproutcare/telehealth-platform/internal/observability/metrics"
	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

var lifecycleTracer = otel.Tracer("sproutcare.internal.appointments")

// SlotTransitions is the slice of the slot store the lifecycle needs: a
// cancellation frees the slot, a payment capture consumes the hold.
type SlotTransitions interface {
	Release(ctx context.Context, slotID uuid.UUID) error
	Book(ctx context.Context, slotID, holderID uuid.UUID) error
}

// RoomProvisioner provisions the video room once an appointment is paid for.
// Implementations must be idempotent per appointment.
type RoomProvisioner interface {
	ProvisionRoom(ctx context.Context, appt *Appointment) error
}

// ReminderScheduler schedules appointment reminders and drops them again
// when the appointment is canceled. Fire-and-forget: errors are logged,
// never propagated into the booking flow.
type ReminderScheduler interface {
	ScheduleReminders(ctx context.Context, appt *Appointment) error
	CancelReminders(ctx context.Context, appointmentID uuid.UUID) error
}

// StatusBroadcaster pushes lifecycle changes to connected portal clients.
type StatusBroadcaster interface {
	BroadcastStatus(appointmentID uuid.UUID, status Status)
}

// Lifecycle owns the appointment status state machine and its transition
// side effects.
type Lifecycle struct {
	store     *Store
	slots     SlotTransitions
	video     RoomProvisioner
	reminders ReminderScheduler
	broadcast StatusBroadcaster
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
}

// NewLifecycle constructs the lifecycle manager. Video, reminders, broadcast,
// and metrics are optional collaborators.
func NewLifecycle(store *Store, slotStore SlotTransitions, logger *logging.Logger) *Lifecycle {
	if store == nil {
		panic("appointments: store required")
	}
	if slotStore == nil {
		panic("appointments: slot store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Lifecycle{store: store, slots: slotStore, logger: logger}
}

// WithVideo attaches a room provisioner.
func (l *Lifecycle) WithVideo(v RoomProvisioner) *Lifecycle { l.video = v; return l }

// WithReminders attaches a reminder scheduler.
func (l *Lifecycle) WithReminders(r ReminderScheduler) *Lifecycle { l.reminders = r; return l }

// WithBroadcaster attaches a live status broadcaster.
func (l *Lifecycle) WithBroadcaster(b StatusBroadcaster) *Lifecycle { l.broadcast = b; return l }

// WithMetrics attaches booking metrics.
func (l *Lifecycle) WithMetrics(m *metrics.BookingMetrics) *Lifecycle { l.metrics = m; return l }

// HandlePaymentCaptured moves pending_payment → scheduled, consumes the slot
// hold, and kicks off video provisioning and reminders. Collaborator failures
// after the transition are logged, not rolled back: the booking is committed
// once the appointment row is scheduled.
func (l *Lifecycle) HandlePaymentCaptured(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	ctx, span := lifecycleTracer.Start(ctx, "appointments.payment_captured")
	defer span.End()
	span.SetAttributes(attribute.String("sproutcare.appointment_id", id.String()))

	appt, err := l.store.MarkScheduled(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	l.observeTransition(StatusPendingPayment, StatusScheduled)

	if err := l.slots.Book(ctx, appt.SlotID, appt.GuardianID); err != nil {
		// The hold expired before payment landed and someone else took the
		// slot. The appointment stays scheduled; operations resolves it.
		l.logger.Error("failed to consume slot hold after payment",
			"error", err, "appointment_id", appt.ID, "slot_id", appt.SlotID)
	}

	if l.video != nil {
		if err := l.video.ProvisionRoom(ctx, appt); err != nil {
			l.logger.Error("video provisioning failed", "error", err, "appointment_id", appt.ID)
		}
	}
	if l.reminders != nil {
		if err := l.reminders.ScheduleReminders(ctx, appt); err != nil {
			l.logger.Error("reminder scheduling failed", "error", err, "appointment_id", appt.ID)
		}
	}
	l.notify(appt)

	l.logger.Info("appointment scheduled", "appointment_id", appt.ID, "scheduled_at", appt.ScheduledAt)
	return appt, nil
}

// Cancel moves the appointment to canceled and releases the underlying slot
// back to available.
func (l *Lifecycle) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	ctx, span := lifecycleTracer.Start(ctx, "appointments.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("sproutcare.appointment_id", id.String()))

	appt, err := l.store.Cancel(ctx, id, reason)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	l.observeTransition(StatusScheduled, StatusCanceled)

	if err := l.slots.Release(ctx, appt.SlotID); err != nil {
		l.logger.Error("failed to release slot after cancellation",
			"error", err, "appointment_id", appt.ID, "slot_id", appt.SlotID)
	}
	l.cancelReminders(ctx, appt.ID)
	l.notify(appt)

	l.logger.Info("appointment canceled", "appointment_id", appt.ID, "reason", reason)
	return appt, nil
}

// FinishReschedule runs the side effects once a reschedule swap has
// committed: the old appointment's reminders are dropped, the replacement
// gets its own, and watchers of both appointments hear the change. The swap
// itself already happened; nothing here can fail it.
func (l *Lifecycle) FinishReschedule(ctx context.Context, old, replacement *Appointment) {
	l.observeTransition(StatusScheduled, StatusCanceled)
	l.cancelReminders(ctx, old.ID)
	if l.reminders != nil {
		if err := l.reminders.ScheduleReminders(ctx, replacement); err != nil {
			l.logger.Error("reminder scheduling failed", "error", err, "appointment_id", replacement.ID)
		}
	}
	if l.broadcast != nil {
		l.broadcast.BroadcastStatus(old.ID, StatusCanceled)
	}
	l.notify(replacement)
}

// Start moves scheduled → live when the doctor opens the call.
func (l *Lifecycle) Start(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := l.store.Start(ctx, id)
	if err != nil {
		return nil, err
	}
	l.observeTransition(StatusScheduled, StatusLive)
	l.notify(appt)
	l.logger.Info("appointment live", "appointment_id", appt.ID)
	return appt, nil
}

// Complete moves live → completed when the call ends.
func (l *Lifecycle) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := l.store.Complete(ctx, id)
	if err != nil {
		return nil, err
	}
	l.observeTransition(StatusLive, StatusCompleted)
	l.notify(appt)
	l.logger.Info("appointment completed", "appointment_id", appt.ID)
	return appt, nil
}

// MarkNoShow records that the guardian never joined. Doctor-initiated.
func (l *Lifecycle) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := l.store.MarkNoShow(ctx, id)
	if err != nil {
		return nil, err
	}
	l.observeTransition(StatusScheduled, StatusNoShow)
	l.notify(appt)
	l.logger.Info("appointment marked no-show", "appointment_id", appt.ID)
	return appt, nil
}

// Get exposes appointment reads through the lifecycle manager.
func (l *Lifecycle) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return l.store.Get(ctx, id)
}

func (l *Lifecycle) cancelReminders(ctx context.Context, id uuid.UUID) {
	if l.reminders == nil {
		return
	}
	if err := l.reminders.CancelReminders(ctx, id); err != nil {
		l.logger.Error("reminder cancellation failed", "error", err, "appointment_id", id)
	}
}

func (l *Lifecycle) notify(appt *Appointment) {
	if l.broadcast != nil {
		l.broadcast.BroadcastStatus(appt.ID, appt.Status)
	}
}

func (l *Lifecycle) observeTransition(from, to Status) {
	l.metrics.ObserveTransition(string(from), string(to))
}
