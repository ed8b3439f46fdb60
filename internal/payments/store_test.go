package payments

import (
	"context"
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

func paymentRowColumns() []string {
	return []string{"id", "appointment_id", "provider", "order_ref", "payment_ref", "amount_paise", "currency", "status", "failure_reason", "created_at", "updated_at"}
}

func addPaymentRow(rows *pgxmock.Rows, p *Payment) *pgxmock.Rows {
	return rows.AddRow(
		p.ID, p.AppointmentID, p.Provider, p.OrderRef, p.PaymentRef,
		p.AmountPaise, p.Currency, p.Status, p.FailureReason, testNow, testNow,
	)
}

func samplePayment(status string) *Payment {
	return &Payment{
		ID:            uuid.New(),
		AppointmentID: uuid.New(),
		Provider:      "razorpay",
		OrderRef:      "order_abc123",
		AmountPaise:   50000,
		Currency:      "INR",
		Status:        status,
	}
}

func TestCreateDefaultsToCreatedStatus(t *testing.T) {
	mock, store := newMockStore(t)
	p := samplePayment("")
	p.ID = uuid.Nil

	mock.ExpectExec("INSERT INTO payments").
		WithArgs(pgxmock.AnyArg(), p.AppointmentID, "razorpay", "order_abc123", "",
			int64(50000), "INR", StatusCreated, "", testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	created, err := store.Create(context.Background(), p)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, StatusCreated, created.Status)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkCapturedRecordsPaymentRef(t *testing.T) {
	mock, store := newMockStore(t)
	p := samplePayment(StatusCaptured)
	p.PaymentRef = "pay_xyz"

	mock.ExpectQuery("UPDATE payments").
		WithArgs("order_abc123", StatusCaptured, "pay_xyz", testNow, StatusCreated).
		WillReturnRows(addPaymentRow(pgxmock.NewRows(paymentRowColumns()), p))

	got, err := store.MarkCaptured(context.Background(), "order_abc123", "pay_xyz")
	require.NoError(t, err)
	assert.Equal(t, StatusCaptured, got.Status)
	assert.Equal(t, "pay_xyz", got.PaymentRef)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkCapturedOnUnknownOrder(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("UPDATE payments").
		WithArgs("order_missing", StatusCaptured, "pay_xyz", testNow, StatusCreated).
		WillReturnRows(pgxmock.NewRows(paymentRowColumns()))

	_, err := store.MarkCaptured(context.Background(), "order_missing", "pay_xyz")
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailedStampsReason(t *testing.T) {
	mock, store := newMockStore(t)
	p := samplePayment(StatusFailed)
	p.FailureReason = "card declined"

	mock.ExpectQuery("UPDATE payments").
		WithArgs("order_abc123", StatusFailed, "pay_xyz", "card declined", testNow, StatusCreated).
		WillReturnRows(addPaymentRow(pgxmock.NewRows(paymentRowColumns()), p))

	got, err := store.MarkFailed(context.Background(), "order_abc123", "pay_xyz", "card declined")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "card declined", got.FailureReason)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByOrderRefNotFound(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM payments").
		WithArgs("order_missing").
		WillReturnRows(pgxmock.NewRows(paymentRowColumns()))

	_, err := store.GetByOrderRef(context.Background(), "order_missing")
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
