package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrProfileNotFound is returned for missing, deleted, or anonymized
// accounts. Callers that hold a prior snapshot should fall back to it.
var ErrProfileNotFound = errors.New("profile not found")

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides read-only profile lookups for snapshotting. Soft-deleted
// rows are treated as absent.
type Store struct {
	db DB
}

// NewStore creates an identity store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// GetDoctor fetches a doctor's display profile.
func (s *Store) GetDoctor(ctx context.Context, id uuid.UUID) (*DoctorProfile, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, full_name, avatar_url, specialty
		FROM doctors WHERE id = $1 AND deleted_at IS NULL`, id)
	var p DoctorProfile
	if err := row.Scan(&p.ID, &p.FullName, &p.AvatarURL, &p.Specialty); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("identity: get doctor: %w", err)
	}
	return &p, nil
}

// GetGuardian fetches a guardian's display profile.
func (s *Store) GetGuardian(ctx context.Context, id uuid.UUID) (*GuardianProfile, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, full_name, phone, email
		FROM guardians WHERE id = $1 AND deleted_at IS NULL`, id)
	var p GuardianProfile
	if err := row.Scan(&p.ID, &p.FullName, &p.Phone, &p.Email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("identity: get guardian: %w", err)
	}
	return &p, nil
}

// GetChild fetches a child profile, scoped to its guardian so one guardian
// can never book for another's child.
func (s *Store) GetChild(ctx context.Context, guardianID, childID uuid.UUID) (*ChildProfile, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, guardian_id, full_name, date_of_birth
		FROM children WHERE id = $1 AND guardian_id = $2 AND deleted_at IS NULL`, childID, guardianID)
	var p ChildProfile
	if err := row.Scan(&p.ID, &p.GuardianID, &p.FullName, &p.DateOfBirth); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("identity: get child: %w", err)
	}
	return &p, nil
}
