package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx interface for testing. Begin is needed because rule
// replacement must happen inside one transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store persists availability rules and time-off windows.
type Store struct {
	db  DB
	now func() time.Time
}

// NewStore creates an availability store.
func NewStore(db DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// NewStoreWithClock allows tests to control the store's notion of now.
func NewStoreWithClock(db DB, now func() time.Time) *Store {
	return &Store{db: db, now: now}
}

// ReplaceRule deactivates every active rule for (doctor, dayOfWeek) and
// inserts the replacement as the single active rule, in one transaction. A
// concurrent reader never observes a day with zero active rules that had one.
func (s *Store) ReplaceRule(ctx context.Context, rule Rule) (*Rule, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("availability: begin replace rule: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := s.now()
	if _, err := tx.Exec(ctx, `
		UPDATE availability_rules
		SET active = FALSE, updated_at = $3
		WHERE doctor_id = $1 AND day_of_week = $2 AND active = TRUE`,
		rule.DoctorID, rule.DayOfWeek, now,
	); err != nil {
		return nil, fmt.Errorf("availability: deactivate prior rules: %w", err)
	}

	rule.ID = uuid.New()
	rule.Active = true
	rule.CreatedAt = now
	rule.UpdatedAt = now
	if _, err := tx.Exec(ctx, `
		INSERT INTO availability_rules (id, doctor_id, day_of_week, start_time, end_time, slot_duration_minutes, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $7)`,
		rule.ID, rule.DoctorID, rule.DayOfWeek, rule.StartTime, rule.EndTime, rule.SlotDurationMinutes, now,
	); err != nil {
		return nil, fmt.Errorf("availability: insert rule: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("availability: commit replace rule: %w", err)
	}
	return &rule, nil
}

// ActiveRules returns the active rule per day-of-week for a doctor.
func (s *Store) ActiveRules(ctx context.Context, doctorID uuid.UUID) (map[int]Rule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, doctor_id, day_of_week, start_time, end_time, slot_duration_minutes, active, created_at, updated_at
		FROM availability_rules
		WHERE doctor_id = $1 AND active = TRUE
		ORDER BY day_of_week ASC`,
		doctorID,
	)
	if err != nil {
		return nil, fmt.Errorf("availability: list active rules: %w", err)
	}
	defer rows.Close()

	active := make(map[int]Rule)
	for rows.Next() {
		var r Rule
		if err := rows.Scan(&r.ID, &r.DoctorID, &r.DayOfWeek, &r.StartTime, &r.EndTime, &r.SlotDurationMinutes, &r.Active, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("availability: scan rule: %w", err)
		}
		active[r.DayOfWeek] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("availability: iterate rules: %w", err)
	}
	return active, nil
}

// AddTimeOff inserts a time-off window for a doctor.
func (s *Store) AddTimeOff(ctx context.Context, timeOff TimeOff) (*TimeOff, error) {
	timeOff.ID = uuid.New()
	timeOff.CreatedAt = s.now()
	if _, err := s.db.Exec(ctx, `
		INSERT INTO doctor_time_off (id, doctor_id, start_date, end_date, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		timeOff.ID, timeOff.DoctorID, timeOff.StartDate, timeOff.EndDate, timeOff.Reason, timeOff.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("availability: insert time off: %w", err)
	}
	return &timeOff, nil
}

// RemoveTimeOff deletes a time-off window. Unlike rules, time-off carries no
// history requirement and may be removed freely.
func (s *Store) RemoveTimeOff(ctx context.Context, doctorID, id uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `
		DELETE FROM doctor_time_off WHERE id = $1 AND doctor_id = $2`,
		id, doctorID,
	); err != nil {
		return fmt.Errorf("availability: remove time off: %w", err)
	}
	return nil
}

// TimeOffOverlapping returns time-off windows touching [from, to].
func (s *Store) TimeOffOverlapping(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]TimeOff, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, doctor_id, start_date, end_date, reason, created_at
		FROM doctor_time_off
		WHERE doctor_id = $1 AND start_date <= $3 AND end_date >= $2
		ORDER BY start_date ASC`,
		doctorID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("availability: list time off: %w", err)
	}
	defer rows.Close()

	var out []TimeOff
	for rows.Next() {
		var t TimeOff
		if err := rows.Scan(&t.ID, &t.DoctorID, &t.StartDate, &t.EndDate, &t.Reason, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("availability: scan time off: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("availability: iterate time off: %w", err)
	}
	return out, nil
}
