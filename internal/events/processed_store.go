package events

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type execQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProcessedStore records webhook events that were already handled, so a
// provider retrying delivery cannot double-apply a payment. The (provider,
// event_id) pair is the primary key; insertion is the claim.
type ProcessedStore struct {
	pool execQuerier
	now  func() time.Time
}

func NewProcessedStore(pool *pgxpool.Pool) *ProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &ProcessedStore{pool: pool, now: time.Now}
}

func newProcessedStoreWithExec(exec execQuerier) *ProcessedStore {
	if exec == nil {
		panic("events: exec required")
	}
	return &ProcessedStore{pool: exec, now: time.Now}
}

// AlreadyProcessed reports whether this provider event id was seen before.
// Handlers call it up front so a retry skips the side effects entirely.
func (s *ProcessedStore) AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM processed_events WHERE provider = $1 AND event_id = $2
	)`
	var seen bool
	if err := s.pool.QueryRow(ctx, query, provider, eventID).Scan(&seen); err != nil {
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return seen, nil
}

// MarkProcessed claims an event id for the provider after its side effects
// committed. Returns false when another delivery got there first.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	const query = `INSERT INTO processed_events (provider, event_id, processed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`
	ct, err := s.pool.Exec(ctx, query, provider, eventID, s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
