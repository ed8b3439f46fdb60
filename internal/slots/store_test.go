package slots

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewStoreWithClock(mock, func() time.Time { return testNow })
}

func slotRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "doctor_id", "start_time", "end_time", "available", "holder_id", "held_until", "created_at", "updated_at",
	})
}

func TestHoldWinsWhenSlotFree(t *testing.T) {
	mock, store := newMockStore(t)
	slotID := uuid.New()
	doctorID := uuid.New()
	holderID := uuid.New()
	deadline := testNow.Add(10 * time.Minute)

	mock.ExpectQuery("UPDATE appointment_slots").
		WithArgs(slotID, holderID, deadline, testNow).
		WillReturnRows(slotRows().AddRow(
			slotID, doctorID, testNow.Add(time.Hour), testNow.Add(90*time.Minute),
			false, &holderID, &deadline, testNow, testNow,
		))

	slot, err := store.Hold(context.Background(), slotID, holderID, 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, slot.Available)
	require.NotNil(t, slot.HolderID)
	assert.Equal(t, holderID, *slot.HolderID)
	require.NotNil(t, slot.HeldUntil)
	assert.Equal(t, deadline, *slot.HeldUntil)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHoldLosesRace(t *testing.T) {
	mock, store := newMockStore(t)
	slotID := uuid.New()
	holderID := uuid.New()

	mock.ExpectQuery("UPDATE appointment_slots").
		WithArgs(slotID, holderID, testNow.Add(DefaultHoldTTL), testNow).
		WillReturnRows(slotRows())
	// Conditional update matched nothing; the store checks whether the slot
	// exists to separate a lost race from a bad id.
	mock.ExpectQuery("SELECT 1 FROM appointment_slots").
		WithArgs(slotID).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	_, err := store.Hold(context.Background(), slotID, holderID, 0)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHoldUnknownSlot(t *testing.T) {
	mock, store := newMockStore(t)
	slotID := uuid.New()
	holderID := uuid.New()

	mock.ExpectQuery("UPDATE appointment_slots").
		WithArgs(slotID, holderID, testNow.Add(DefaultHoldTTL), testNow).
		WillReturnRows(slotRows())
	mock.ExpectQuery("SELECT 1 FROM appointment_slots").
		WithArgs(slotID).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}))

	_, err := store.Hold(context.Background(), slotID, holderID, 0)
	assert.ErrorIs(t, err, ErrSlotNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseIsIdempotent(t *testing.T) {
	mock, store := newMockStore(t)
	slotID := uuid.New()

	// Zero rows affected (already free) is still a success.
	mock.ExpectExec("UPDATE appointment_slots").
		WithArgs(slotID, testNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.NoError(t, store.Release(context.Background(), slotID))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookConsumesHold(t *testing.T) {
	mock, store := newMockStore(t)
	slotID := uuid.New()
	holderID := uuid.New()

	mock.ExpectExec("UPDATE appointment_slots").
		WithArgs(slotID, holderID, testNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, store.Book(context.Background(), slotID, holderID))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookFailsWhenHoldLost(t *testing.T) {
	mock, store := newMockStore(t)
	slotID := uuid.New()
	holderID := uuid.New()

	mock.ExpectExec("UPDATE appointment_slots").
		WithArgs(slotID, holderID, testNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.Book(context.Background(), slotID, holderID)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListAvailablePassesClockForLazyExpiry(t *testing.T) {
	mock, store := newMockStore(t)
	doctorID := uuid.New()
	from := testNow
	to := testNow.AddDate(0, 0, 14)
	slotID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM appointment_slots").
		WithArgs(doctorID, from, to, testNow).
		WillReturnRows(slotRows().AddRow(
			slotID, doctorID, testNow.Add(time.Hour), testNow.Add(90*time.Minute),
			true, nil, nil, testNow, testNow,
		))

	listed, err := store.ListAvailable(context.Background(), doctorID, from, to)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, slotID, listed[0].ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBatchSkipsDuplicates(t *testing.T) {
	mock, store := newMockStore(t)
	doctorID := uuid.New()
	batch := []Slot{
		{DoctorID: doctorID, StartTime: testNow.Add(time.Hour), EndTime: testNow.Add(90 * time.Minute)},
		{DoctorID: doctorID, StartTime: testNow.Add(90 * time.Minute), EndTime: testNow.Add(2 * time.Hour)},
	}

	mock.ExpectExec("INSERT INTO appointment_slots").
		WithArgs(pgxmock.AnyArg(), doctorID, batch[0].StartTime, batch[0].EndTime, testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// Second row already exists: ON CONFLICT DO NOTHING reports zero rows.
	mock.ExpectExec("INSERT INTO appointment_slots").
		WithArgs(pgxmock.AnyArg(), doctorID, batch[1].StartTime, batch[1].EndTime, testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := store.CreateBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotFound(t *testing.T) {
	mock, store := newMockStore(t)
	slotID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM appointment_slots").
		WithArgs(slotID).
		WillReturnRows(slotRows())

	_, err := store.Get(context.Background(), slotID)
	assert.ErrorIs(t, err, ErrSlotNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEffectivelyAvailable(t *testing.T) {
	holder := uuid.New()
	heldAt := testNow
	expired := heldAt.Add(-time.Minute)
	active := heldAt.Add(10 * time.Minute)

	tests := []struct {
		name string
		slot Slot
		now  time.Time
		want bool
	}{
		{"free slot", Slot{Available: true}, testNow, true},
		{"active hold", Slot{Available: false, HolderID: &holder, HeldUntil: &active}, testNow, false},
		{"hold expired a minute ago", Slot{Available: false, HolderID: &holder, HeldUntil: &expired}, testNow, true},
		{"hold observed eleven minutes after a ten minute ttl", Slot{Available: false, HolderID: &holder, HeldUntil: &active}, heldAt.Add(11 * time.Minute), true},
		{"booked slot", Slot{Available: false}, testNow, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.slot.EffectivelyAvailable(tt.now))
		})
	}
}

func TestHoldPropagatesQueryError(t *testing.T) {
	mock, store := newMockStore(t)
	slotID := uuid.New()
	holderID := uuid.New()

	mock.ExpectQuery("UPDATE appointment_slots").
		WithArgs(slotID, holderID, testNow.Add(DefaultHoldTTL), testNow).
		WillReturnError(errors.New("connection reset"))

	_, err := store.Hold(context.Background(), slotID, holderID, 0)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSlotUnavailable)
}
