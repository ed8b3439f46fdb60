package availability

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sproutcare/telehealth-platform/internal/slots"
)

// SlotWriter is the slice of the slot store the generator needs.
type SlotWriter interface {
	ExistingStartTimes(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (map[time.Time]struct{}, error)
	CreateBatch(ctx context.Context, batch []slots.Slot) (int, error)
}

// GenerateSlots expands the doctor's active rules into concrete slots for the
// next windowDays days. The pass is idempotent: start times that already have
// a slot are skipped here, and the insert carries ON CONFLICT DO NOTHING as
// the backstop for racing passes. Chunks in the past and trailing partial
// chunks are never generated.
func (s *Service) GenerateSlots(ctx context.Context, doctorID uuid.UUID, windowDays int) (int, error) {
	now := s.now()
	windowStart := dateOnly(now)
	windowEnd := windowStart.AddDate(0, 0, windowDays)

	rules, err := s.store.ActiveRules(ctx, doctorID)
	if err != nil {
		return 0, err
	}
	if len(rules) == 0 {
		return 0, nil
	}

	timeOff, err := s.store.TimeOffOverlapping(ctx, doctorID, now, windowEnd)
	if err != nil {
		return 0, err
	}

	existing, err := s.slots.ExistingStartTimes(ctx, doctorID, now, windowEnd)
	if err != nil {
		return 0, err
	}

	var batch []slots.Slot
	for day := windowStart; day.Before(windowEnd); day = day.AddDate(0, 0, 1) {
		rule, ok := rules[int(day.Weekday())]
		if !ok {
			continue
		}
		if coveredByTimeOff(timeOff, day) {
			continue
		}
		batch = append(batch, expandRule(rule, day, now, existing)...)
	}

	if len(batch) == 0 {
		return 0, nil
	}
	inserted, err := s.slots.CreateBatch(ctx, batch)
	if err != nil {
		return inserted, err
	}
	s.logger.Info("slots generated",
		"doctor_id", doctorID,
		"window_days", windowDays,
		"inserted", inserted,
	)
	return inserted, nil
}

// expandRule partitions [start, end) on the given day into slotDuration
// chunks. A final chunk that would overrun the end time is discarded rather
// than shortened.
func expandRule(rule Rule, day, now time.Time, existing map[time.Time]struct{}) []slots.Slot {
	startMin, err := clockMinutes(rule.StartTime)
	if err != nil {
		return nil
	}
	endMin, err := clockMinutes(rule.EndTime)
	if err != nil {
		return nil
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	windowStart := dayStart.Add(time.Duration(startMin) * time.Minute)
	windowEnd := dayStart.Add(time.Duration(endMin) * time.Minute)
	step := time.Duration(rule.SlotDurationMinutes) * time.Minute

	var out []slots.Slot
	for chunkStart := windowStart; !chunkStart.Add(step).After(windowEnd); chunkStart = chunkStart.Add(step) {
		if !chunkStart.After(now) {
			continue
		}
		if _, dup := existing[chunkStart]; dup {
			continue
		}
		out = append(out, slots.Slot{
			DoctorID:  rule.DoctorID,
			StartTime: chunkStart,
			EndTime:   chunkStart.Add(step),
		})
	}
	return out
}

func coveredByTimeOff(windows []TimeOff, day time.Time) bool {
	for i := range windows {
		if windows[i].Covers(day) {
			return true
		}
	}
	return false
}
