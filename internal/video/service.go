package video

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sproutcare/telehealth-platform/internal/appointments"
	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

// RoomProvider creates rooms with the video backend.
type RoomProvider interface {
	CreateRoom(ctx context.Context, appointmentID uuid.UUID) (roomID string, err error)
	Name() string
}

// ErrRoomNotProvisioned is returned when a join is requested before the
// room exists.
var ErrRoomNotProvisioned = errors.New("video: room not provisioned")

// DefaultTokenTTL bounds how long a join token stays usable.
const DefaultTokenTTL = 2 * time.Hour

// Service provisions rooms on payment capture and issues signed join tokens.
// It satisfies the lifecycle's RoomProvisioner.
type Service struct {
	provider    RoomProvider
	sessions    *SessionStore
	tokenSecret string
	tokenTTL    time.Duration
	logger      *logging.Logger
	now         func() time.Time
}

func NewService(provider RoomProvider, sessions *SessionStore, tokenSecret string, tokenTTL time.Duration, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &Service{
		provider:    provider,
		sessions:    sessions,
		tokenSecret: tokenSecret,
		tokenTTL:    tokenTTL,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock in tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ProvisionRoom creates the video room for a paid appointment. Idempotent: a
// second call for the same appointment finds the existing session and does
// nothing, so webhook retries cannot double-provision.
func (s *Service) ProvisionRoom(ctx context.Context, appt *appointments.Appointment) error {
	existing, err := s.sessions.Get(ctx, appt.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	roomID, err := s.provider.CreateRoom(ctx, appt.ID)
	if err != nil {
		return fmt.Errorf("video: create room: %w", err)
	}
	session := &RoomSession{
		AppointmentID: appt.ID,
		RoomID:        roomID,
		Provider:      s.provider.Name(),
		Status:        SessionStatusCreated,
		CreatedAt:     s.now(),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return err
	}
	s.logger.Info("video room provisioned", "appointment_id", appt.ID.String(), "room_id", roomID)
	return nil
}

// JoinInfo is what a portal client needs to enter the room.
type JoinInfo struct {
	RoomID   string `json:"room_id"`
	Provider string `json:"provider"`
	Token    string `json:"token"`
}

type roomClaims struct {
	RoomID string `json:"room"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Join issues a short-lived HMAC-signed token binding the participant to the
// appointment's room.
func (s *Service) Join(ctx context.Context, appointmentID, participantID uuid.UUID, role string) (*JoinInfo, error) {
	session, err := s.sessions.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrRoomNotProvisioned
	}

	now := s.now()
	claims := roomClaims{
		RoomID: session.RoomID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   participantID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.tokenSecret))
	if err != nil {
		return nil, fmt.Errorf("video: sign room token: %w", err)
	}
	return &JoinInfo{RoomID: session.RoomID, Provider: session.Provider, Token: token}, nil
}

// VerifyRoomToken parses a join token and returns the room and participant it
// grants.
func (s *Service) VerifyRoomToken(tokenString string) (roomID, participantID, role string, err error) {
	claims := roomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.tokenSecret), nil
	})
	if err != nil || !token.Valid {
		return "", "", "", fmt.Errorf("video: invalid room token: %w", err)
	}
	return claims.RoomID, claims.Subject, claims.Role, nil
}
