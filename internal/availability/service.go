package availability

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sproutcare/telehealth-platform/pkg/logging"
)

// RuleStore is the persistence surface the service needs.
type RuleStore interface {
	ReplaceRule(ctx context.Context, rule Rule) (*Rule, error)
	ActiveRules(ctx context.Context, doctorID uuid.UUID) (map[int]Rule, error)
	AddTimeOff(ctx context.Context, timeOff TimeOff) (*TimeOff, error)
	RemoveTimeOff(ctx context.Context, doctorID, id uuid.UUID) error
	TimeOffOverlapping(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]TimeOff, error)
}

// Service owns a doctor's recurring availability and expands it into concrete
// bookable slots.
type Service struct {
	store  RuleStore
	slots  SlotWriter
	logger *logging.Logger
	now    func() time.Time
}

// NewService constructs an availability service.
func NewService(store RuleStore, slots SlotWriter, logger *logging.Logger) *Service {
	if store == nil {
		panic("availability: rule store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:  store,
		slots:  slots,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// SetRuleParams carries a rule replacement request.
type SetRuleParams struct {
	DoctorID            uuid.UUID `json:"-"`
	DayOfWeek           int       `json:"day_of_week"`
	StartTime           string    `json:"start_time"`
	EndTime             string    `json:"end_time"`
	SlotDurationMinutes int       `json:"slot_duration_minutes"`
}

// Validate checks the request before it reaches the store.
func (p *SetRuleParams) Validate() error {
	if p.DayOfWeek < 0 || p.DayOfWeek > 6 {
		return ErrInvalidDayOfWeek
	}
	start, err := clockMinutes(p.StartTime)
	if err != nil {
		return err
	}
	end, err := clockMinutes(p.EndTime)
	if err != nil {
		return err
	}
	if end <= start {
		return ErrInvalidWindow
	}
	if p.SlotDurationMinutes <= 0 {
		return ErrInvalidSlotDuration
	}
	return nil
}

// SetRule replaces the active rule for (doctor, dayOfWeek). Prior rules are
// deactivated, not deleted, preserving history.
func (s *Service) SetRule(ctx context.Context, params SetRuleParams) (*Rule, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	rule, err := s.store.ReplaceRule(ctx, Rule{
		DoctorID:            params.DoctorID,
		DayOfWeek:           params.DayOfWeek,
		StartTime:           params.StartTime,
		EndTime:             params.EndTime,
		SlotDurationMinutes: params.SlotDurationMinutes,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("availability rule replaced",
		"doctor_id", params.DoctorID,
		"day_of_week", params.DayOfWeek,
		"start", params.StartTime,
		"end", params.EndTime,
	)
	return rule, nil
}

// AddTimeOff records a blocked date range for a doctor.
func (s *Service) AddTimeOff(ctx context.Context, doctorID uuid.UUID, startDate, endDate time.Time, reason string) (*TimeOff, error) {
	if endDate.Before(startDate) {
		return nil, ErrInvalidDateRange
	}
	return s.store.AddTimeOff(ctx, TimeOff{
		DoctorID:  doctorID,
		StartDate: startDate,
		EndDate:   endDate,
		Reason:    reason,
	})
}

// RemoveTimeOff deletes a time-off window.
func (s *Service) RemoveTimeOff(ctx context.Context, doctorID, id uuid.UUID) error {
	return s.store.RemoveTimeOff(ctx, doctorID, id)
}

// ListTimeOff returns the doctor's time-off touching the forward window.
func (s *Service) ListTimeOff(ctx context.Context, doctorID uuid.UUID, windowDays int) ([]TimeOff, error) {
	now := s.now()
	return s.store.TimeOffOverlapping(ctx, doctorID, now, now.AddDate(0, 0, windowDays))
}
