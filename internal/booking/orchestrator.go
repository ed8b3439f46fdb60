package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sproutcare/telehealth-platform/internal/appointments"
	"github.com/sproutcare/telehealth-platform/internal/identity"
	"github.com/sproutcare/telehealth-platform/internal/observability/metrics"
	"github.com/sproutcare/telehealth-platform/internal/slots"
	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

var bookingTracer = otel.Tracer("sproutcare.internal.booking")

// SlotHolder is the slice of the slot store the orchestrator needs.
type SlotHolder interface {
	Hold(ctx context.Context, slotID, holderID uuid.UUID, ttl time.Duration) (*slots.Slot, error)
	Release(ctx context.Context, slotID uuid.UUID) error
}

// ProfileReader resolves the identity fields snapshotted onto the
// appointment.
type ProfileReader interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*identity.DoctorProfile, error)
	GetGuardian(ctx context.Context, id uuid.UUID) (*identity.GuardianProfile, error)
	GetChild(ctx context.Context, guardianID, childID uuid.UUID) (*identity.ChildProfile, error)
}

// AppointmentCreator inserts the appointment row.
type AppointmentCreator interface {
	Create(ctx context.Context, appt *appointments.Appointment) (*appointments.Appointment, error)
}

// Orchestrator runs the hold-then-commit booking protocol: place a TTL-bound
// hold on the slot, snapshot identities, create the appointment in
// pending_payment, and release the hold if anything after it fails. An
// abandoned flow self-heals when the hold expires.
type Orchestrator struct {
	slots    SlotHolder
	profiles ProfileReader
	appts    AppointmentCreator
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
	holdTTL  time.Duration
}

// NewOrchestrator constructs a booking orchestrator.
func NewOrchestrator(slotStore SlotHolder, profiles ProfileReader, appts AppointmentCreator, holdTTL time.Duration, logger *logging.Logger) *Orchestrator {
	if slotStore == nil || profiles == nil || appts == nil {
		panic("booking: slot store, profile reader, and appointment creator required")
	}
	if holdTTL <= 0 {
		holdTTL = slots.DefaultHoldTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{
		slots:    slotStore,
		profiles: profiles,
		appts:    appts,
		logger:   logger,
		holdTTL:  holdTTL,
	}
}

// WithMetrics attaches booking metrics.
func (o *Orchestrator) WithMetrics(m *metrics.BookingMetrics) *Orchestrator {
	o.metrics = m
	return o
}

// BookRequest carries one booking attempt.
type BookRequest struct {
	GuardianID     uuid.UUID `json:"-"`
	ChildID        uuid.UUID `json:"child_id"`
	DoctorID       uuid.UUID `json:"doctor_id"`
	SlotID         uuid.UUID `json:"slot_id"`
	ChiefComplaint string    `json:"chief_complaint,omitempty"`
}

// Validate checks that every selection was made before anything touches the
// store.
func (r *BookRequest) Validate() error {
	if r.GuardianID == uuid.Nil || r.ChildID == uuid.Nil || r.DoctorID == uuid.Nil || r.SlotID == uuid.Nil {
		return ErrMissingSelection
	}
	return nil
}

// Book reserves the slot and creates the appointment in pending_payment.
// ErrSlotUnavailable propagates to the caller un-retried: the guardian must
// re-query availability and pick again. Any failure after the hold releases
// it before returning, so a partial failure never leaves the slot stuck.
func (o *Orchestrator) Book(ctx context.Context, req BookRequest) (*appointments.Appointment, error) {
	started := time.Now()
	ctx, span := bookingTracer.Start(ctx, "booking.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("sproutcare.guardian_id", req.GuardianID.String()),
		attribute.String("sproutcare.slot_id", req.SlotID.String()),
	)

	if err := req.Validate(); err != nil {
		return nil, err
	}

	slot, err := o.slots.Hold(ctx, req.SlotID, req.GuardianID, o.holdTTL)
	if err != nil {
		span.RecordError(err)
		o.metrics.ObserveHold("lost")
		o.metrics.ObserveBooking("slot_unavailable", time.Since(started).Seconds())
		return nil, err
	}
	o.metrics.ObserveHold("won")

	appt, err := o.createWithSnapshot(ctx, req, slot)
	if err != nil {
		// The hold succeeded; free the slot before surfacing the error.
		if relErr := o.slots.Release(ctx, req.SlotID); relErr != nil {
			o.logger.Error("failed to release slot after booking failure",
				"error", relErr, "slot_id", req.SlotID)
		}
		span.RecordError(err)
		o.metrics.ObserveBooking("failed", time.Since(started).Seconds())
		return nil, err
	}

	o.metrics.ObserveBooking("created", time.Since(started).Seconds())
	o.logger.Info("appointment created",
		"appointment_id", appt.ID,
		"guardian_id", req.GuardianID,
		"doctor_id", req.DoctorID,
		"scheduled_at", appt.ScheduledAt,
	)
	return appt, nil
}

func (o *Orchestrator) createWithSnapshot(ctx context.Context, req BookRequest, slot *slots.Slot) (*appointments.Appointment, error) {
	doctor, err := o.profiles.GetDoctor(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	guardian, err := o.profiles.GetGuardian(ctx, req.GuardianID)
	if err != nil {
		return nil, err
	}
	child, err := o.profiles.GetChild(ctx, req.GuardianID, req.ChildID)
	if err != nil {
		return nil, err
	}

	return o.appts.Create(ctx, &appointments.Appointment{
		SlotID:         slot.ID,
		ChildID:        child.ID,
		GuardianID:     guardian.ID,
		DoctorID:       doctor.ID,
		Status:         appointments.StatusPendingPayment,
		ScheduledAt:    slot.StartTime,
		ChiefComplaint: req.ChiefComplaint,
		Snapshot: appointments.Snapshot{
			DoctorName:       doctor.FullName,
			DoctorAvatarURL:  doctor.AvatarURL,
			GuardianName:     guardian.FullName,
			GuardianPhone:    guardian.Phone,
			ChildName:        child.FullName,
			ChildDateOfBirth: child.DateOfBirth,
		},
	})
}
