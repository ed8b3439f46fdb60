package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	ReminderStatusPending  = "pending"
	ReminderStatusSent     = "sent"
	ReminderStatusCanceled = "canceled"
)

// Reminder is one scheduled nudge ahead of an appointment.
type Reminder struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	GuardianID    uuid.UUID `json:"guardian_id"`
	SendAt        time.Time `json:"send_at"`
	LeadTime      string    `json:"lead_time"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ReminderStore persists scheduled reminders.
type ReminderStore struct {
	db  DB
	now func() time.Time
}

func NewReminderStore(db DB) *ReminderStore {
	return &ReminderStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func NewReminderStoreWithClock(db DB, now func() time.Time) *ReminderStore {
	return &ReminderStore{db: db, now: now}
}

const reminderColumns = `id, appointment_id, guardian_id, send_at, lead_time, status, created_at, updated_at`

// CreateBatch inserts reminders, skipping (appointment, lead time) pairs that
// already exist so repeated scheduling after webhook retries stays idempotent.
func (s *ReminderStore) CreateBatch(ctx context.Context, reminders []Reminder) (int, error) {
	inserted := 0
	for _, rem := range reminders {
		id := rem.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		ct, err := s.db.Exec(ctx, `
			INSERT INTO reminders (id, appointment_id, guardian_id, send_at, lead_time, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
			ON CONFLICT (appointment_id, lead_time) DO NOTHING`,
			id, rem.AppointmentID, rem.GuardianID, rem.SendAt, rem.LeadTime, ReminderStatusPending, s.now(),
		)
		if err != nil {
			return inserted, fmt.Errorf("notify: insert reminder: %w", err)
		}
		inserted += int(ct.RowsAffected())
	}
	return inserted, nil
}

// ListDue returns pending reminders whose send time has passed, oldest first.
func (s *ReminderStore) ListDue(ctx context.Context, now time.Time, limit int) ([]Reminder, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE status = $1 AND send_at <= $2
		ORDER BY send_at ASC LIMIT $3`,
		ReminderStatusPending, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("notify: list due reminders: %w", err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var rem Reminder
		if err := rows.Scan(&rem.ID, &rem.AppointmentID, &rem.GuardianID, &rem.SendAt, &rem.LeadTime, &rem.Status, &rem.CreatedAt, &rem.UpdatedAt); err != nil {
			return nil, fmt.Errorf("notify: scan reminder: %w", err)
		}
		out = append(out, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notify: iterate reminders: %w", err)
	}
	return out, nil
}

// MarkSent flips a pending reminder to sent. Zero rows means another worker
// got there first; the caller skips the send.
func (s *ReminderStore) MarkSent(ctx context.Context, id uuid.UUID) (bool, error) {
	ct, err := s.db.Exec(ctx, `
		UPDATE reminders SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4`,
		id, ReminderStatusSent, s.now(), ReminderStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("notify: mark reminder sent: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// CancelForAppointment voids all pending reminders when an appointment is
// canceled or rescheduled away.
func (s *ReminderStore) CancelForAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE reminders SET status = $2, updated_at = $3
		WHERE appointment_id = $1 AND status = $4`,
		appointmentID, ReminderStatusCanceled, s.now(), ReminderStatusPending,
	)
	if err != nil {
		return fmt.Errorf("notify: cancel reminders: %w", err)
	}
	return nil
}
