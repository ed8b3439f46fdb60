package video

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "video:room:"
	sessionTTL       = 48 * time.Hour

	SessionStatusCreated = "created"
	SessionStatusLive    = "live"
	SessionStatusEnded   = "ended"
)

// RoomSession tracks a provisioned video room in Redis. The row of record is
// the appointment; this state exists so joins and status checks never hit the
// provider.
type RoomSession struct {
	AppointmentID uuid.UUID  `json:"appointment_id"`
	RoomID        string     `json:"room_id"`
	Provider      string     `json:"provider"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
}

// SessionStore manages room sessions in Redis.
type SessionStore struct {
	rdb *redis.Client
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

func sessionKey(appointmentID uuid.UUID) string {
	return sessionKeyPrefix + appointmentID.String()
}

// Save persists or updates a room session.
func (s *SessionStore) Save(ctx context.Context, session *RoomSession) error {
	if session == nil || session.AppointmentID == uuid.Nil {
		return fmt.Errorf("video session: appointment id required")
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("video session: marshal: %w", err)
	}
	return s.rdb.Set(ctx, sessionKey(session.AppointmentID), data, sessionTTL).Err()
}

// Get retrieves a room session, returning nil on a miss.
func (s *SessionStore) Get(ctx context.Context, appointmentID uuid.UUID) (*RoomSession, error) {
	data, err := s.rdb.Get(ctx, sessionKey(appointmentID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("video session: get: %w", err)
	}
	var session RoomSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("video session: unmarshal: %w", err)
	}
	return &session, nil
}

// MarkLive stamps the session live when the doctor opens the room.
func (s *SessionStore) MarkLive(ctx context.Context, appointmentID uuid.UUID) error {
	return s.transition(ctx, appointmentID, SessionStatusLive)
}

// MarkEnded stamps the session ended when the call finishes.
func (s *SessionStore) MarkEnded(ctx context.Context, appointmentID uuid.UUID) error {
	return s.transition(ctx, appointmentID, SessionStatusEnded)
}

func (s *SessionStore) transition(ctx context.Context, appointmentID uuid.UUID, status string) error {
	session, err := s.Get(ctx, appointmentID)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("video session: room for appointment %s not found", appointmentID)
	}
	now := time.Now().UTC()
	session.Status = status
	switch status {
	case SessionStatusLive:
		session.StartedAt = &now
	case SessionStatusEnded:
		session.EndedAt = &now
	}
	return s.Save(ctx, session)
}
