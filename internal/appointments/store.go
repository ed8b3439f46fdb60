package appointments

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

// Store persists appointments. Status changes go through guarded UPDATEs
// whose WHERE clause encodes the legal source states, so a racing transition
// loses cleanly instead of clobbering a terminal state.
type Store struct {
	db  DB
	now func() time.Time
}

// NewStore creates an appointment store.
func NewStore(db DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// NewStoreWithClock allows tests to control the store's notion of now.
func NewStoreWithClock(db DB, now func() time.Time) *Store {
	return &Store{db: db, now: now}
}

// WithDB returns a store bound to a different executor, typically a
// transaction, sharing this store's clock.
func (s *Store) WithDB(db DB) *Store {
	return &Store{db: db, now: s.now}
}

const appointmentColumns = `id, slot_id, child_id, guardian_id, doctor_id, status, scheduled_at, chief_complaint,
	started_at, ended_at, canceled_at, cancellation_reason,
	doctor_name, doctor_avatar_url, guardian_name, guardian_phone, child_name, child_date_of_birth,
	created_at, updated_at`

// Create inserts a new appointment. The snapshot fields must already be
// populated; an appointment without them would not survive account deletion.
func (s *Store) Create(ctx context.Context, appt *Appointment) (*Appointment, error) {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	now := s.now()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	if _, err := s.db.Exec(ctx, `
		INSERT INTO appointments (id, slot_id, child_id, guardian_id, doctor_id, status, scheduled_at, chief_complaint,
			doctor_name, doctor_avatar_url, guardian_name, guardian_phone, child_name, child_date_of_birth,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)`,
		appt.ID, appt.SlotID, appt.ChildID, appt.GuardianID, appt.DoctorID, string(appt.Status), appt.ScheduledAt, appt.ChiefComplaint,
		appt.DoctorName, appt.DoctorAvatarURL, appt.GuardianName, appt.GuardianPhone, appt.ChildName, appt.ChildDateOfBirth,
		now,
	); err != nil {
		return nil, fmt.Errorf("appointments: insert: %w", err)
	}
	return appt, nil
}

// Get fetches an appointment by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("appointments: get: %w", err)
	}
	return appt, nil
}

// ListByGuardian returns a guardian's appointments, most recent first.
func (s *Store) ListByGuardian(ctx context.Context, guardianID uuid.UUID, limit int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE guardian_id = $1
		ORDER BY scheduled_at DESC LIMIT $2`,
		guardianID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("appointments: list by guardian: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// ListForDoctorBetween returns a doctor's appointments inside a window,
// soonest first. Canceled appointments are excluded.
func (s *Store) ListForDoctorBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND scheduled_at >= $2 AND scheduled_at < $3 AND status <> $4
		ORDER BY scheduled_at ASC`,
		doctorID, from, to, string(StatusCanceled),
	)
	if err != nil {
		return nil, fmt.Errorf("appointments: list for doctor: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// MarkScheduled moves pending_payment → scheduled after payment capture.
func (s *Store) MarkScheduled(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4
		RETURNING `+appointmentColumns,
		id, string(StatusScheduled), s.now(), string(StatusPendingPayment),
	)
	return s.finishTransition(ctx, row, id, StatusScheduled)
}

// Cancel moves pending_payment|scheduled → canceled, stamping canceled_at and
// the reason. Canceled is terminal.
func (s *Store) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	now := s.now()
	row := s.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2, canceled_at = $3, cancellation_reason = $4, updated_at = $3
		WHERE id = $1 AND status = ANY($5)
		RETURNING `+appointmentColumns,
		id, string(StatusCanceled), now, reason, statusStrings(sources(StatusCanceled)),
	)
	return s.finishTransition(ctx, row, id, StatusCanceled)
}

// Start moves scheduled → live when the call begins, stamping started_at.
func (s *Store) Start(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	now := s.now()
	row := s.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2, started_at = $3, updated_at = $3
		WHERE id = $1 AND status = $4
		RETURNING `+appointmentColumns,
		id, string(StatusLive), now, string(StatusScheduled),
	)
	return s.finishTransition(ctx, row, id, StatusLive)
}

// Complete moves live → completed when the call ends, stamping ended_at.
func (s *Store) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	now := s.now()
	row := s.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2, ended_at = $3, updated_at = $3
		WHERE id = $1 AND status = $4
		RETURNING `+appointmentColumns,
		id, string(StatusCompleted), now, string(StatusLive),
	)
	return s.finishTransition(ctx, row, id, StatusCompleted)
}

// MarkNoShow moves scheduled → no_show. Doctor-initiated; there is no
// automatic timeout.
func (s *Store) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4
		RETURNING `+appointmentColumns,
		id, string(StatusNoShow), s.now(), string(StatusScheduled),
	)
	return s.finishTransition(ctx, row, id, StatusNoShow)
}

// finishTransition scans the guarded update. Zero rows means either the
// appointment does not exist or its current status is not a legal source;
// the two are reported differently.
func (s *Store) finishTransition(ctx context.Context, row pgx.Row, id uuid.UUID, to Status) (*Appointment, error) {
	appt, err := scanAppointment(row)
	if err == nil {
		return appt, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("appointments: transition to %s: %w", to, err)
	}
	current, getErr := s.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("appointments: %s → %s: %w", current.Status, to, ErrInvalidTransition)
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	if err := row.Scan(
		&a.ID, &a.SlotID, &a.ChildID, &a.GuardianID, &a.DoctorID, &a.Status, &a.ScheduledAt, &a.ChiefComplaint,
		&a.StartedAt, &a.EndedAt, &a.CanceledAt, &a.CancellationReason,
		&a.DoctorName, &a.DoctorAvatarURL, &a.GuardianName, &a.GuardianPhone, &a.ChildName, &a.ChildDateOfBirth,
		&a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	var out []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan row: %w", err)
		}
		out = append(out, *appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: iterate rows: %w", err)
	}
	return out, nil
}
