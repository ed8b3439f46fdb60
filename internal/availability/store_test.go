package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewStoreWithClock(mock, func() time.Time { return testNow })
}

func TestReplaceRuleDeactivatesThenInsertsInOneTransaction(t *testing.T) {
	mock, store := newMockStore(t)
	doctorID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE availability_rules").
		WithArgs(doctorID, 1, testNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec("INSERT INTO availability_rules").
		WithArgs(pgxmock.AnyArg(), doctorID, 1, "09:00", "17:00", 30, testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	rule, err := store.ReplaceRule(context.Background(), Rule{
		DoctorID:            doctorID,
		DayOfWeek:           1,
		StartTime:           "09:00",
		EndTime:             "17:00",
		SlotDurationMinutes: 30,
	})
	require.NoError(t, err)
	assert.True(t, rule.Active)
	assert.NotEqual(t, uuid.Nil, rule.ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRuleRollsBackOnInsertFailure(t *testing.T) {
	mock, store := newMockStore(t)
	doctorID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE availability_rules").
		WithArgs(doctorID, 3, testNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO availability_rules").
		WithArgs(pgxmock.AnyArg(), doctorID, 3, "08:30", "12:30", 20, testNow).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := store.ReplaceRule(context.Background(), Rule{
		DoctorID:            doctorID,
		DayOfWeek:           3,
		StartTime:           "08:30",
		EndTime:             "12:30",
		SlotDurationMinutes: 20,
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveRulesKeyedByDay(t *testing.T) {
	mock, store := newMockStore(t)
	doctorID := uuid.New()

	rows := pgxmock.NewRows([]string{
		"id", "doctor_id", "day_of_week", "start_time", "end_time", "slot_duration_minutes", "active", "created_at", "updated_at",
	}).
		AddRow(uuid.New(), doctorID, 1, "09:00", "17:00", 30, true, testNow, testNow).
		AddRow(uuid.New(), doctorID, 4, "10:00", "14:00", 20, true, testNow, testNow)

	mock.ExpectQuery("SELECT (.+) FROM availability_rules").
		WithArgs(doctorID).
		WillReturnRows(rows)

	rules, err := store.ActiveRules(context.Background(), doctorID)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "09:00", rules[1].StartTime)
	assert.Equal(t, 20, rules[4].SlotDurationMinutes)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddAndRemoveTimeOff(t *testing.T) {
	mock, store := newMockStore(t)
	doctorID := uuid.New()
	start := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO doctor_time_off").
		WithArgs(pgxmock.AnyArg(), doctorID, start, end, "conference", testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	timeOff, err := store.AddTimeOff(context.Background(), TimeOff{
		DoctorID:  doctorID,
		StartDate: start,
		EndDate:   end,
		Reason:    "conference",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, timeOff.ID)

	mock.ExpectExec("DELETE FROM doctor_time_off").
		WithArgs(timeOff.ID, doctorID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, store.RemoveTimeOff(context.Background(), doctorID, timeOff.ID))
	require.NoError(t, mock.ExpectationsWereMet())
}
