package reschedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sproutcare/telehealth-platform/internal/appointments"
	"github.com/sproutcare/telehealth-platform/internal/slots"
	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

var testNow = time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

type fakeReminders struct {
	scheduled []uuid.UUID
	canceled  []uuid.UUID
}

func (f *fakeReminders) ScheduleReminders(ctx context.Context, appt *appointments.Appointment) error {
	f.scheduled = append(f.scheduled, appt.ID)
	return nil
}

func (f *fakeReminders) CancelReminders(ctx context.Context, appointmentID uuid.UUID) error {
	f.canceled = append(f.canceled, appointmentID)
	return nil
}

type fakeBroadcaster struct {
	events []appointments.Status
}

func (f *fakeBroadcaster) BroadcastStatus(appointmentID uuid.UUID, status appointments.Status) {
	f.events = append(f.events, status)
}

type lifecycleEffects struct {
	reminders *fakeReminders
	broadcast *fakeBroadcaster
}

func newTestService(t *testing.T, withTx bool) (pgxmock.PgxPoolIface, *Service, *lifecycleEffects) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	logger := logging.New("error")
	slotStore := slots.NewStoreWithClock(mock, clock)
	apptStore := appointments.NewStoreWithClock(mock, clock)
	effects := &lifecycleEffects{reminders: &fakeReminders{}, broadcast: &fakeBroadcaster{}}
	lifecycle := appointments.NewLifecycle(apptStore, slotStore, logger).
		WithReminders(effects.reminders).
		WithBroadcaster(effects.broadcast)

	var db TxBeginner
	if withTx {
		db = mock
	}
	svc := NewService(db, slotStore, apptStore, lifecycle, NewPolicy(250, 24*time.Hour), logger).
		WithClock(clock)
	return mock, svc, effects
}

func appointmentRowColumns() []string {
	return []string{
		"id", "slot_id", "child_id", "guardian_id", "doctor_id", "status", "scheduled_at", "chief_complaint",
		"started_at", "ended_at", "canceled_at", "cancellation_reason",
		"doctor_name", "doctor_avatar_url", "guardian_name", "guardian_phone", "child_name", "child_date_of_birth",
		"created_at", "updated_at",
	}
}

func slotRowColumns() []string {
	return []string{"id", "doctor_id", "start_time", "end_time", "available", "holder_id", "held_until", "created_at", "updated_at"}
}

func sampleAppointment(status appointments.Status) *appointments.Appointment {
	return &appointments.Appointment{
		ID:          uuid.New(),
		SlotID:      uuid.New(),
		ChildID:     uuid.New(),
		GuardianID:  uuid.New(),
		DoctorID:    uuid.New(),
		Status:      status,
		ScheduledAt: testNow.Add(48 * time.Hour),
		Snapshot: appointments.Snapshot{
			DoctorName:       "Dr. Asha Rao",
			GuardianName:     "Priya Kumar",
			GuardianPhone:    "+919800000001",
			ChildName:        "Aarav Kumar",
			ChildDateOfBirth: time.Date(2021, 6, 14, 0, 0, 0, 0, time.UTC),
		},
	}
}

func appointmentRow(a *appointments.Appointment) *pgxmock.Rows {
	return pgxmock.NewRows(appointmentRowColumns()).AddRow(
		a.ID, a.SlotID, a.ChildID, a.GuardianID, a.DoctorID, a.Status, a.ScheduledAt, a.ChiefComplaint,
		a.StartedAt, a.EndedAt, a.CanceledAt, a.CancellationReason,
		a.DoctorName, a.DoctorAvatarURL, a.GuardianName, a.GuardianPhone, a.ChildName, a.ChildDateOfBirth,
		testNow, testNow,
	)
}

func heldSlotRow(slotID, doctorID, holderID uuid.UUID, start time.Time) *pgxmock.Rows {
	heldUntil := testNow.Add(slots.DefaultHoldTTL)
	return pgxmock.NewRows(slotRowColumns()).AddRow(
		slotID, doctorID, start, start.Add(30*time.Minute), false, &holderID, &heldUntil, testNow, testNow,
	)
}

// expectHold registers the CAS hold on the new slot succeeding with the
// given owning doctor.
func expectHold(mock pgxmock.PgxPoolIface, newSlotID uuid.UUID, old *appointments.Appointment, doctorID uuid.UUID, start time.Time) {
	mock.ExpectQuery("UPDATE appointment_slots").
		WithArgs(newSlotID, old.GuardianID, testNow.Add(slots.DefaultHoldTTL), testNow).
		WillReturnRows(heldSlotRow(newSlotID, doctorID, old.GuardianID, start))
}

func expectCancelOld(mock pgxmock.PgxPoolIface, old *appointments.Appointment, rows *pgxmock.Rows) {
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(old.ID, string(appointments.StatusCanceled), testNow, "rescheduled", pgxmock.AnyArg()).
		WillReturnRows(rows)
}

func TestRescheduleSwapsSlotsAtomically(t *testing.T) {
	mock, svc, effects := newTestService(t, true)
	old := sampleAppointment(appointments.StatusScheduled)
	newSlotID := uuid.New()
	newStart := testNow.Add(96 * time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs(old.ID).
		WillReturnRows(appointmentRow(old))
	expectHold(mock, newSlotID, old, old.DoctorID, newStart)

	mock.ExpectBegin()
	canceled := sampleAppointment(appointments.StatusCanceled)
	canceled.ID = old.ID
	canceled.SlotID = old.SlotID
	expectCancelOld(mock, old, appointmentRow(canceled))
	mock.ExpectExec("UPDATE appointment_slots").
		WithArgs(old.SlotID, testNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE appointment_slots").
		WithArgs(newSlotID, old.GuardianID, testNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), newSlotID, old.ChildID, old.GuardianID, old.DoctorID,
			string(appointments.StatusScheduled), newStart, "",
			old.DoctorName, "", old.GuardianName, old.GuardianPhone, old.ChildName, old.ChildDateOfBirth,
			testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	res, err := svc.Reschedule(context.Background(), old.ID, newSlotID)
	require.NoError(t, err)
	assert.Equal(t, newSlotID, res.Appointment.SlotID)
	assert.Equal(t, appointments.StatusScheduled, res.Appointment.Status)
	assert.Equal(t, newStart, res.Appointment.ScheduledAt)
	assert.Equal(t, old.Snapshot, res.Appointment.Snapshot)
	assert.Equal(t, 0, res.FeeCharged) // 48h out, outside the late window
	assert.NotEqual(t, old.ID, res.Appointment.ID)

	// The old booking's reminders move to the replacement, and watchers of
	// both appointments hear the change.
	assert.Equal(t, []uuid.UUID{old.ID}, effects.reminders.canceled)
	assert.Equal(t, []uuid.UUID{res.Appointment.ID}, effects.reminders.scheduled)
	assert.Equal(t, []appointments.Status{appointments.StatusCanceled, appointments.StatusScheduled},
		effects.broadcast.events)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleInsideWindowChargesFee(t *testing.T) {
	mock, svc, _ := newTestService(t, true)
	old := sampleAppointment(appointments.StatusScheduled)
	old.ScheduledAt = testNow.Add(2 * time.Hour)
	newSlotID := uuid.New()
	newStart := testNow.Add(96 * time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs(old.ID).
		WillReturnRows(appointmentRow(old))
	expectHold(mock, newSlotID, old, old.DoctorID, newStart)

	mock.ExpectBegin()
	canceled := sampleAppointment(appointments.StatusCanceled)
	expectCancelOld(mock, old, appointmentRow(canceled))
	mock.ExpectExec("UPDATE appointment_slots").
		WithArgs(old.SlotID, testNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE appointment_slots").
		WithArgs(newSlotID, old.GuardianID, testNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), newSlotID, old.ChildID, old.GuardianID, old.DoctorID,
			string(appointments.StatusScheduled), newStart, "",
			old.DoctorName, "", old.GuardianName, old.GuardianPhone, old.ChildName, old.ChildDateOfBirth,
			testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	res, err := svc.Reschedule(context.Background(), old.ID, newSlotID)
	require.NoError(t, err)
	assert.Equal(t, 250, res.FeeCharged)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleRollsBackWhenBookingFails(t *testing.T) {
	mock, svc, _ := newTestService(t, true)
	old := sampleAppointment(appointments.StatusScheduled)
	newSlotID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs(old.ID).
		WillReturnRows(appointmentRow(old))
	expectHold(mock, newSlotID, old, old.DoctorID, testNow.Add(96*time.Hour))

	mock.ExpectBegin()
	canceled := sampleAppointment(appointments.StatusCanceled)
	expectCancelOld(mock, old, appointmentRow(canceled))
	mock.ExpectExec("UPDATE appointment_slots").
		WithArgs(old.SlotID, testNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	// Booking the new slot matches nothing: the hold expired and was taken.
	mock.ExpectExec("UPDATE appointment_slots").
		WithArgs(newSlotID, old.GuardianID, testNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	_, err := svc.Reschedule(context.Background(), old.ID, newSlotID)
	require.Error(t, err)
	assert.ErrorIs(t, err, slots.ErrSlotUnavailable)
	// With a transaction the cancel is undone, so no partial state leaks.
	assert.NotErrorIs(t, err, ErrPartialReschedule)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleStepwisePartialFailure(t *testing.T) {
	mock, svc, _ := newTestService(t, false)
	old := sampleAppointment(appointments.StatusScheduled)
	newSlotID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs(old.ID).
		WillReturnRows(appointmentRow(old))
	expectHold(mock, newSlotID, old, old.DoctorID, testNow.Add(96*time.Hour))

	canceled := sampleAppointment(appointments.StatusCanceled)
	expectCancelOld(mock, old, appointmentRow(canceled))
	mock.ExpectExec("UPDATE appointment_slots").
		WithArgs(old.SlotID, testNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE appointment_slots").
		WithArgs(newSlotID, old.GuardianID, testNow).
		WillReturnError(errors.New("connection reset"))

	_, err := svc.Reschedule(context.Background(), old.ID, newSlotID)
	assert.ErrorIs(t, err, ErrPartialReschedule)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleRejectsNonScheduledAppointment(t *testing.T) {
	mock, svc, _ := newTestService(t, true)
	old := sampleAppointment(appointments.StatusPendingPayment)

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs(old.ID).
		WillReturnRows(appointmentRow(old))

	_, err := svc.Reschedule(context.Background(), old.ID, uuid.New())
	assert.ErrorIs(t, err, ErrRescheduleNotAllowed)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleRejectsDifferentDoctorSlot(t *testing.T) {
	mock, svc, effects := newTestService(t, true)
	old := sampleAppointment(appointments.StatusScheduled)
	newSlotID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs(old.ID).
		WillReturnRows(appointmentRow(old))
	// The hold wins, but the slot belongs to another doctor.
	expectHold(mock, newSlotID, old, uuid.New(), testNow.Add(96*time.Hour))
	mock.ExpectExec("UPDATE appointment_slots").
		WithArgs(newSlotID, testNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	_, err := svc.Reschedule(context.Background(), old.ID, newSlotID)
	assert.ErrorIs(t, err, ErrRescheduleNotAllowed)
	// The hold was released and the old appointment never touched.
	assert.Empty(t, effects.reminders.canceled)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleStopsWhenNewSlotTaken(t *testing.T) {
	mock, svc, _ := newTestService(t, true)
	old := sampleAppointment(appointments.StatusScheduled)
	newSlotID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs(old.ID).
		WillReturnRows(appointmentRow(old))
	// The CAS hold matches nothing, then the store checks the row exists.
	mock.ExpectQuery("UPDATE appointment_slots").
		WithArgs(newSlotID, old.GuardianID, testNow.Add(slots.DefaultHoldTTL), testNow).
		WillReturnRows(pgxmock.NewRows(slotRowColumns()))
	mock.ExpectQuery("SELECT 1 FROM appointment_slots").
		WithArgs(newSlotID).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	_, err := svc.Reschedule(context.Background(), old.ID, newSlotID)
	assert.ErrorIs(t, err, slots.ErrSlotUnavailable)

	// The old appointment was never touched.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelReleasesSlotAndReportsFee(t *testing.T) {
	mock, svc, effects := newTestService(t, true)
	appt := sampleAppointment(appointments.StatusScheduled)
	appt.ScheduledAt = testNow.Add(3 * time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs(appt.ID).
		WillReturnRows(appointmentRow(appt))
	canceled := sampleAppointment(appointments.StatusCanceled)
	canceled.ID = appt.ID
	canceled.SlotID = appt.SlotID
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(appt.ID, string(appointments.StatusCanceled), testNow, "guardian request", pgxmock.AnyArg()).
		WillReturnRows(appointmentRow(canceled))
	mock.ExpectExec("UPDATE appointment_slots").
		WithArgs(appt.SlotID, testNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	res, err := svc.Cancel(context.Background(), appt.ID, "guardian request")
	require.NoError(t, err)
	assert.Equal(t, 250, res.FeeCharged)
	assert.Equal(t, appointments.StatusCanceled, res.Appointment.Status)

	// The cancellation runs through the lifecycle manager, so pending
	// reminders are dropped and waiting-room watchers notified.
	assert.Equal(t, []uuid.UUID{appt.ID}, effects.reminders.canceled)
	assert.Equal(t, []appointments.Status{appointments.StatusCanceled}, effects.broadcast.events)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuoteOutsideWindowIsFree(t *testing.T) {
	mock, svc, _ := newTestService(t, true)
	appt := sampleAppointment(appointments.StatusScheduled)

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs(appt.ID).
		WillReturnRows(appointmentRow(appt))

	fee, err := svc.Quote(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fee)

	require.NoError(t, mock.ExpectationsWereMet())
}
