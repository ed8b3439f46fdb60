package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists payment records and their lifecycle transitions.
type Store struct {
	db  DB
	now func() time.Time
}

func NewStore(db DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func NewStoreWithClock(db DB, now func() time.Time) *Store {
	return &Store{db: db, now: now}
}

const paymentColumns = `id, appointment_id, provider, order_ref, payment_ref, amount_paise, currency, status, failure_reason, created_at, updated_at`

// Create inserts a payment in created status.
func (s *Store) Create(ctx context.Context, p *Payment) (*Payment, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = StatusCreated
	}
	now := s.now()
	p.CreatedAt = now
	p.UpdatedAt = now
	if _, err := s.db.Exec(ctx, `
		INSERT INTO payments (id, appointment_id, provider, order_ref, payment_ref, amount_paise, currency, status, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		p.ID, p.AppointmentID, p.Provider, p.OrderRef, p.PaymentRef, p.AmountPaise, p.Currency, p.Status, p.FailureReason, now,
	); err != nil {
		return nil, fmt.Errorf("payments: insert: %w", err)
	}
	return p, nil
}

// GetByOrderRef fetches a payment by the provider's order reference.
func (s *Store) GetByOrderRef(ctx context.Context, orderRef string) (*Payment, error) {
	row := s.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_ref = $1`, orderRef)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payments: get by order ref: %w", err)
	}
	return p, nil
}

// GetByAppointment fetches the most recent payment for an appointment.
func (s *Store) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Payment, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE appointment_id = $1
		ORDER BY created_at DESC LIMIT 1`,
		appointmentID,
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payments: get by appointment: %w", err)
	}
	return p, nil
}

// MarkCaptured records the provider's payment reference and moves the record
// to captured. Idempotent on order ref: capturing twice is a no-op.
func (s *Store) MarkCaptured(ctx context.Context, orderRef, paymentRef string) (*Payment, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE payments
		SET status = $2, payment_ref = $3, updated_at = $4
		WHERE order_ref = $1 AND status IN ($5, $2)
		RETURNING `+paymentColumns,
		orderRef, StatusCaptured, paymentRef, s.now(), StatusCreated,
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payments: mark captured: %w", err)
	}
	return p, nil
}

// MarkFailed records a failed payment attempt with the provider's reason. The
// appointment stays pending_payment; the slot hold TTL does the cleanup.
func (s *Store) MarkFailed(ctx context.Context, orderRef, paymentRef, reason string) (*Payment, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE payments
		SET status = $2, payment_ref = $3, failure_reason = $4, updated_at = $5
		WHERE order_ref = $1 AND status = $6
		RETURNING `+paymentColumns,
		orderRef, StatusFailed, paymentRef, reason, s.now(), StatusCreated,
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payments: mark failed: %w", err)
	}
	return p, nil
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	if err := row.Scan(
		&p.ID, &p.AppointmentID, &p.Provider, &p.OrderRef, &p.PaymentRef,
		&p.AmountPaise, &p.Currency, &p.Status, &p.FailureReason,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}
