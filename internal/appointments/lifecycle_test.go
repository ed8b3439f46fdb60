package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sproutcare/telehealth-platform/internal/slots"
)

type fakeSlotTransitions struct {
	released []uuid.UUID
	booked   []uuid.UUID
	bookErr  error
}

func (f *fakeSlotTransitions) Release(ctx context.Context, slotID uuid.UUID) error {
	f.released = append(f.released, slotID)
	return nil
}

func (f *fakeSlotTransitions) Book(ctx context.Context, slotID, holderID uuid.UUID) error {
	if f.bookErr != nil {
		return f.bookErr
	}
	f.booked = append(f.booked, slotID)
	return nil
}

type fakeProvisioner struct {
	provisioned []uuid.UUID
}

func (f *fakeProvisioner) ProvisionRoom(ctx context.Context, appt *Appointment) error {
	f.provisioned = append(f.provisioned, appt.ID)
	return nil
}

type fakeReminders struct {
	scheduled []uuid.UUID
	canceled  []uuid.UUID
}

func (f *fakeReminders) ScheduleReminders(ctx context.Context, appt *Appointment) error {
	f.scheduled = append(f.scheduled, appt.ID)
	return nil
}

func (f *fakeReminders) CancelReminders(ctx context.Context, appointmentID uuid.UUID) error {
	f.canceled = append(f.canceled, appointmentID)
	return nil
}

type fakeBroadcaster struct {
	events []Status
}

func (f *fakeBroadcaster) BroadcastStatus(appointmentID uuid.UUID, status Status) {
	f.events = append(f.events, status)
}

func newLifecycleUnderTest(t *testing.T) (pgxmock.PgxPoolIface, *Lifecycle, *fakeSlotTransitions, *fakeProvisioner, *fakeReminders, *fakeBroadcaster) {
	t.Helper()
	mock, store := newMockStore(t)
	slotsFake := &fakeSlotTransitions{}
	video := &fakeProvisioner{}
	reminders := &fakeReminders{}
	broadcast := &fakeBroadcaster{}
	lc := NewLifecycle(store, slotsFake, nil).
		WithVideo(video).
		WithReminders(reminders).
		WithBroadcaster(broadcast)
	return mock, lc, slotsFake, video, reminders, broadcast
}

func TestHandlePaymentCapturedRunsSideEffects(t *testing.T) {
	mock, lc, slotsFake, video, reminders, broadcast := newLifecycleUnderTest(t)
	appt := sampleAppointment(StatusScheduled)

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(appt.ID, string(StatusScheduled), testNow, string(StatusPendingPayment)).
		WillReturnRows(addAppointmentRow(pgxmock.NewRows(appointmentRowColumns()), appt))

	got, err := lc.HandlePaymentCaptured(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, got.Status)
	assert.Equal(t, []uuid.UUID{appt.SlotID}, slotsFake.booked)
	assert.Equal(t, []uuid.UUID{appt.ID}, video.provisioned)
	assert.Equal(t, []uuid.UUID{appt.ID}, reminders.scheduled)
	assert.Equal(t, []Status{StatusScheduled}, broadcast.events)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlePaymentCapturedSurvivesLostHold(t *testing.T) {
	mock, lc, slotsFake, _, _, _ := newLifecycleUnderTest(t)
	slotsFake.bookErr = slots.ErrSlotUnavailable
	appt := sampleAppointment(StatusScheduled)

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(appt.ID, string(StatusScheduled), testNow, string(StatusPendingPayment)).
		WillReturnRows(addAppointmentRow(pgxmock.NewRows(appointmentRowColumns()), appt))

	// A lost hold is logged for reconciliation, not surfaced: the payment has
	// been captured and the appointment must not bounce back.
	_, err := lc.HandlePaymentCaptured(context.Background(), appt.ID)
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelReleasesSlot(t *testing.T) {
	mock, lc, slotsFake, _, reminders, broadcast := newLifecycleUnderTest(t)
	appt := sampleAppointment(StatusCanceled)
	canceledAt := testNow
	appt.CanceledAt = &canceledAt
	appt.CancellationReason = "guardian request"

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(appt.ID, string(StatusCanceled), testNow, "guardian request", pgxmock.AnyArg()).
		WillReturnRows(addAppointmentRow(pgxmock.NewRows(appointmentRowColumns()), appt))

	got, err := lc.Cancel(context.Background(), appt.ID, "guardian request")
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, got.Status)
	assert.Equal(t, []uuid.UUID{appt.SlotID}, slotsFake.released)
	// Pending reminders must die with the booking or the dispatcher keeps
	// re-queuing them every poll.
	assert.Equal(t, []uuid.UUID{appt.ID}, reminders.canceled)
	assert.Equal(t, []Status{StatusCanceled}, broadcast.events)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishRescheduleMovesReminders(t *testing.T) {
	_, lc, _, _, reminders, broadcast := newLifecycleUnderTest(t)
	old := sampleAppointment(StatusCanceled)
	replacement := sampleAppointment(StatusScheduled)

	lc.FinishReschedule(context.Background(), old, replacement)

	assert.Equal(t, []uuid.UUID{old.ID}, reminders.canceled)
	assert.Equal(t, []uuid.UUID{replacement.ID}, reminders.scheduled)
	assert.Equal(t, []Status{StatusCanceled, StatusScheduled}, broadcast.events)
}

func TestFullLifecycleChain(t *testing.T) {
	mock, lc, _, _, _, _ := newLifecycleUnderTest(t)

	scheduled := sampleAppointment(StatusScheduled)
	live := *scheduled
	live.Status = StatusLive
	startedAt := testNow
	live.StartedAt = &startedAt
	completed := live
	completed.Status = StatusCompleted
	endedAt := testNow.Add(20 * time.Minute)
	completed.EndedAt = &endedAt

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(scheduled.ID, string(StatusLive), testNow, string(StatusScheduled)).
		WillReturnRows(addAppointmentRow(pgxmock.NewRows(appointmentRowColumns()), &live))

	got, err := lc.Start(context.Background(), scheduled.ID)
	require.NoError(t, err)
	require.NotNil(t, got.StartedAt)

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(scheduled.ID, string(StatusCompleted), testNow, string(StatusLive)).
		WillReturnRows(addAppointmentRow(pgxmock.NewRows(appointmentRowColumns()), &completed))

	got, err = lc.Complete(context.Background(), scheduled.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EndedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkNoShowRequiresScheduled(t *testing.T) {
	mock, lc, _, _, _, _ := newLifecycleUnderTest(t)
	appt := sampleAppointment(StatusCompleted)

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(appt.ID, string(StatusNoShow), testNow, string(StatusScheduled)).
		WillReturnRows(pgxmock.NewRows(appointmentRowColumns()))
	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs(appt.ID).
		WillReturnRows(addAppointmentRow(pgxmock.NewRows(appointmentRowColumns()), appt))

	_, err := lc.MarkNoShow(context.Background(), appt.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, mock.ExpectationsWereMet())
}
