package slots

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

// Store provides the slot lifecycle operations. All state changes that can
// race between guardians go through single conditional UPDATEs so the
// database row is the only lock.
type Store struct {
	db  DB
	now func() time.Time
}

// NewStore creates a slot store.
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

const slotColumns = `id, doctor_id, start_time, end_time, available, holder_id, held_until, created_at, updated_at`

// ListAvailable returns the slots a guardian can currently pick for a doctor,
// ordered by start time. Expired holds are offered again: the predicate treats
// a past held_until the same as available=true, so no sweeper is needed.
func (s *Store) ListAvailable(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Slot, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+slotColumns+`
		FROM appointment_slots
		WHERE doctor_id = $1
		  AND start_time >= $2 AND start_time < $3
		  AND (available = TRUE OR (held_until IS NOT NULL AND held_until <= $4))
		ORDER BY start_time ASC`,
		doctorID, from, to, s.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("slots: list available: %w", err)
	}
	defer rows.Close()
	return scanSlots(rows)
}

// Get fetches a single slot.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := s.db.QueryRow(ctx, `SELECT `+slotColumns+` FROM appointment_slots WHERE id = $1`, id)
	slot, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("slots: get: %w", err)
	}
	return slot, nil
}

// Hold places a TTL-bounded reservation for holderID. The WHERE clause is the
// compare-and-swap: only a free slot, or one whose previous hold has expired,
// matches. Exactly one of two concurrent callers can win; the loser gets
// ErrSlotUnavailable.
func (s *Store) Hold(ctx context.Context, slotID, holderID uuid.UUID, ttl time.Duration) (*Slot, error) {
	if ttl <= 0 {
		ttl = DefaultHoldTTL
	}
	now := s.now()
	row := s.db.QueryRow(ctx, `
		UPDATE appointment_slots
		SET available = FALSE, holder_id = $2, held_until = $3, updated_at = $4
		WHERE id = $1
		  AND (available = TRUE OR (held_until IS NOT NULL AND held_until <= $4))
		RETURNING `+slotColumns,
		slotID, holderID, now.Add(ttl), now,
	)
	slot, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classifyConflict(ctx, slotID)
		}
		return nil, fmt.Errorf("slots: hold: %w", err)
	}
	return slot, nil
}

// Release frees a slot. Releasing an already-free slot is a no-op, not an
// error, so compensation paths can call it unconditionally.
func (s *Store) Release(ctx context.Context, slotID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE appointment_slots
		SET available = TRUE, holder_id = NULL, held_until = NULL, updated_at = $2
		WHERE id = $1`,
		slotID, s.now(),
	)
	if err != nil {
		return fmt.Errorf("slots: release: %w", err)
	}
	return nil
}

// Book consumes holderID's hold: the slot stays unavailable but sheds its
// holder and deadline, so it no longer expires. Fails with ErrSlotUnavailable
// when the hold was lost (expired and taken by someone else) in the meantime.
func (s *Store) Book(ctx context.Context, slotID, holderID uuid.UUID) error {
	ct, err := s.db.Exec(ctx, `
		UPDATE appointment_slots
		SET holder_id = NULL, held_until = NULL, available = FALSE, updated_at = $3
		WHERE id = $1 AND holder_id = $2`,
		slotID, holderID, s.now(),
	)
	if err != nil {
		return fmt.Errorf("slots: book: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrSlotUnavailable
	}
	return nil
}

// CreateBatch inserts generated slots. Conflicts on (doctor_id, start_time)
// are ignored so repeated generation passes stay idempotent even when they
// race. Returns the number of rows actually inserted.
func (s *Store) CreateBatch(ctx context.Context, batch []Slot) (int, error) {
	inserted := 0
	for _, slot := range batch {
		id := slot.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		ct, err := s.db.Exec(ctx, `
			INSERT INTO appointment_slots (id, doctor_id, start_time, end_time, available, created_at, updated_at)
			VALUES ($1, $2, $3, $4, TRUE, $5, $5)
			ON CONFLICT (doctor_id, start_time) DO NOTHING`,
			id, slot.DoctorID, slot.StartTime, slot.EndTime, s.now(),
		)
		if err != nil {
			return inserted, fmt.Errorf("slots: insert generated slot: %w", err)
		}
		inserted += int(ct.RowsAffected())
	}
	return inserted, nil
}

// ExistingStartTimes returns the start times of all slots already present for
// the doctor inside the window, regardless of availability.
func (s *Store) ExistingStartTimes(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (map[time.Time]struct{}, error) {
	rows, err := s.db.Query(ctx, `
		SELECT start_time FROM appointment_slots
		WHERE doctor_id = $1 AND start_time >= $2 AND start_time < $3`,
		doctorID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("slots: existing start times: %w", err)
	}
	defer rows.Close()

	existing := make(map[time.Time]struct{})
	for rows.Next() {
		var st time.Time
		if err := rows.Scan(&st); err != nil {
			return nil, fmt.Errorf("slots: scan start time: %w", err)
		}
		existing[st.UTC()] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("slots: iterate start times: %w", err)
	}
	return existing, nil
}

// classifyConflict distinguishes a lost race from a missing slot after a
// conditional update matched nothing.
func (s *Store) classifyConflict(ctx context.Context, slotID uuid.UUID) error {
	var exists int
	if err := s.db.QueryRow(ctx, `SELECT 1 FROM appointment_slots WHERE id = $1`, slotID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSlotNotFound
		}
		return fmt.Errorf("slots: classify conflict: %w", err)
	}
	return ErrSlotUnavailable
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var slot Slot
	if err := row.Scan(
		&slot.ID,
		&slot.DoctorID,
		&slot.StartTime,
		&slot.EndTime,
		&slot.Available,
		&slot.HolderID,
		&slot.HeldUntil,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &slot, nil
}

func scanSlots(rows pgx.Rows) ([]Slot, error) {
	var out []Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("slots: scan row: %w", err)
		}
		out = append(out, *slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("slots: iterate rows: %w", err)
	}
	return out, nil
}
