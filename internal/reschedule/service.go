package reschedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sproutcare/telehealth-platform/internal/appointments"
	"github.com/sproutcare/telehealth-platform/internal/observability/metrics"
	"github.com/sproutcare/telehealth-platform/internal/slots"
	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

// TxBeginner opens database transactions. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Lifecycle is the slice of the appointment lifecycle manager this service
// delegates to, so cancellations and reschedules trigger the same side
// effects (slot release, reminders, broadcasts, metrics) as every other
// status change.
type Lifecycle interface {
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*appointments.Appointment, error)
	FinishReschedule(ctx context.Context, old, replacement *appointments.Appointment)
}

// Service moves a scheduled appointment to a new slot and cancels
// appointments, charging the late fee when inside the policy window.
type Service struct {
	db        TxBeginner
	slots     *slots.Store
	appts     *appointments.Store
	lifecycle Lifecycle
	policy    Policy
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
	holdTTL   time.Duration
	now       func() time.Time
	tracer    trace.Tracer
}

func NewService(db TxBeginner, slotStore *slots.Store, apptStore *appointments.Store, lifecycle Lifecycle, policy Policy, logger *logging.Logger) *Service {
	return &Service{
		db:        db,
		slots:     slotStore,
		appts:     apptStore,
		lifecycle: lifecycle,
		policy:    policy,
		logger:    logger,
		holdTTL:   slots.DefaultHoldTTL,
		now:       time.Now,
		tracer:    otel.Tracer("sproutcare.internal.reschedule"),
	}
}

// WithMetrics attaches booking metrics.
func (s *Service) WithMetrics(m *metrics.BookingMetrics) *Service {
	s.metrics = m
	return s
}

// WithClock overrides the service clock in tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Result describes the outcome of a reschedule or cancellation, including
// any late fee owed.
type Result struct {
	Appointment *appointments.Appointment `json:"appointment"`
	FeeCharged  int                       `json:"fee_charged"`
}

// Quote returns the fee a guardian would owe for canceling or rescheduling
// the appointment right now, without performing either.
func (s *Service) Quote(ctx context.Context, appointmentID uuid.UUID) (int, error) {
	appt, err := s.appts.Get(ctx, appointmentID)
	if err != nil {
		return 0, err
	}
	return s.policy.FeeFor(appt.ScheduledAt, s.now()), nil
}

// Cancel quotes the late fee and hands the cancellation itself to the
// lifecycle manager, which releases the slot, drops pending reminders, and
// notifies watchers. Only pending_payment and scheduled appointments can be
// canceled; anything else surfaces the store's transition error.
func (s *Service) Cancel(ctx context.Context, appointmentID uuid.UUID, reason string) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "reschedule.Cancel",
		trace.WithAttributes(attribute.String("appointment.id", appointmentID.String())))
	defer span.End()

	appt, err := s.appts.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	fee := s.policy.FeeFor(appt.ScheduledAt, s.now())

	canceled, err := s.lifecycle.Cancel(ctx, appointmentID, reason)
	if err != nil {
		return nil, err
	}
	s.logger.Info("appointment canceled",
		"appointment_id", appointmentID.String(), "fee", fee, "reason", reason)
	return &Result{Appointment: canceled, FeeCharged: fee}, nil
}

// Reschedule moves a scheduled appointment onto newSlotID, which must belong
// to the appointment's own doctor. The new slot is
// held first so a conflict is detected before anything is torn down; the
// swap itself (cancel old, release old slot, book new slot, create the
// replacement appointment) runs in a single transaction when the service
// has one available.
func (s *Service) Reschedule(ctx context.Context, appointmentID, newSlotID uuid.UUID) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "reschedule.Reschedule",
		trace.WithAttributes(
			attribute.String("appointment.id", appointmentID.String()),
			attribute.String("slot.id", newSlotID.String()),
		))
	defer span.End()

	old, err := s.appts.Get(ctx, appointmentID)
	if err != nil {
		s.observe("error")
		return nil, err
	}
	if old.Status != appointments.StatusScheduled {
		s.observe("rejected")
		return nil, fmt.Errorf("reschedule: appointment is %s: %w", old.Status, ErrRescheduleNotAllowed)
	}
	fee := s.policy.FeeFor(old.ScheduledAt, s.now())

	newSlot, err := s.slots.Hold(ctx, newSlotID, old.GuardianID, s.holdTTL)
	if err != nil {
		if errors.Is(err, slots.ErrSlotUnavailable) {
			s.observe("conflict")
		} else {
			s.observe("error")
		}
		return nil, err
	}
	if newSlot.DoctorID != old.DoctorID {
		// The replacement carries the original doctor snapshot; moving the
		// booking to another doctor is a new booking, not a reschedule.
		if err := s.slots.Release(ctx, newSlot.ID); err != nil {
			s.logger.Error("failed to release cross-doctor hold",
				"slot_id", newSlot.ID.String(), "error", err)
		}
		s.observe("rejected")
		return nil, fmt.Errorf("reschedule: slot belongs to a different doctor: %w", ErrRescheduleNotAllowed)
	}

	var replacement *appointments.Appointment
	if s.db != nil {
		replacement, err = s.swapInTx(ctx, old, newSlot)
	} else {
		replacement, err = s.swapStepwise(ctx, old, newSlot)
	}
	if err != nil {
		s.observe("error")
		return nil, err
	}
	s.lifecycle.FinishReschedule(ctx, old, replacement)

	s.observe("success")
	s.logger.Info("appointment rescheduled",
		"old_appointment_id", old.ID.String(),
		"new_appointment_id", replacement.ID.String(),
		"new_slot_id", newSlot.ID.String(),
		"fee", fee)
	return &Result{Appointment: replacement, FeeCharged: fee}, nil
}

func (s *Service) swapInTx(ctx context.Context, old *appointments.Appointment, newSlot *slots.Slot) (*appointments.Appointment, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("reschedule: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	txSlots := s.slots.WithDB(tx)
	txAppts := s.appts.WithDB(tx)

	replacement, err := s.swap(ctx, txSlots, txAppts, old, newSlot, false)
	if err != nil {
		// Rollback undoes the cancel as well; only the hold on the new slot
		// remains, and the TTL reclaims that.
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("reschedule: commit: %w", err)
	}
	return replacement, nil
}

func (s *Service) swapStepwise(ctx context.Context, old *appointments.Appointment, newSlot *slots.Slot) (*appointments.Appointment, error) {
	return s.swap(ctx, s.slots, s.appts, old, newSlot, true)
}

func (s *Service) swap(ctx context.Context, slotStore *slots.Store, apptStore *appointments.Store, old *appointments.Appointment, newSlot *slots.Slot, partialOnFailure bool) (*appointments.Appointment, error) {
	if _, err := apptStore.Cancel(ctx, old.ID, "rescheduled"); err != nil {
		return nil, err
	}
	if err := slotStore.Release(ctx, old.SlotID); err != nil {
		return nil, s.maybePartial(partialOnFailure, old.ID, fmt.Errorf("reschedule: release old slot: %w", err))
	}
	if err := slotStore.Book(ctx, newSlot.ID, old.GuardianID); err != nil {
		return nil, s.maybePartial(partialOnFailure, old.ID, fmt.Errorf("reschedule: book new slot: %w", err))
	}

	replacement, err := apptStore.Create(ctx, &appointments.Appointment{
		ID:             uuid.New(),
		SlotID:         newSlot.ID,
		ChildID:        old.ChildID,
		GuardianID:     old.GuardianID,
		DoctorID:       newSlot.DoctorID,
		Status:         appointments.StatusScheduled,
		ScheduledAt:    newSlot.StartTime,
		ChiefComplaint: old.ChiefComplaint,
		Snapshot:       old.Snapshot,
	})
	if err != nil {
		return nil, s.maybePartial(partialOnFailure, old.ID, fmt.Errorf("reschedule: create replacement: %w", err))
	}
	return replacement, nil
}

func (s *Service) maybePartial(partial bool, oldID uuid.UUID, err error) error {
	if !partial {
		return err
	}
	s.logger.Error("reschedule left appointment canceled without replacement",
		"appointment_id", oldID.String(), "error", err)
	return fmt.Errorf("%w: %v", ErrPartialReschedule, err)
}

func (s *Service) observe(outcome string) {
	s.metrics.ObserveReschedule(outcome)
}
