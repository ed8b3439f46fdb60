package reschedule

import "time"

// DefaultFee is charged when a guardian cancels or reschedules inside the
// late window.
const DefaultFee = 250

// DefaultWindow is the late-cancellation window before the appointment.
const DefaultWindow = 24 * time.Hour

// Policy computes cancellation/reschedule fees from time-to-appointment.
type Policy struct {
	fee    int
	window time.Duration
}

// NewPolicy creates a fee policy. Non-positive arguments fall back to the
// defaults.
func NewPolicy(fee int, window time.Duration) Policy {
	if fee <= 0 {
		fee = DefaultFee
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return Policy{fee: fee, window: window}
}

// WithinWindow reports whether scheduledAt falls strictly inside
// (now, now+window]. An appointment already in the past is not "within the
// window" for fee purposes.
func (p Policy) WithinWindow(scheduledAt, now time.Time) bool {
	until := scheduledAt.Sub(now)
	return until > 0 && until <= p.window
}

// FeeFor returns the late fee when scheduledAt is inside the window, zero
// otherwise.
func (p Policy) FeeFor(scheduledAt, now time.Time) int {
	if p.WithinWindow(scheduledAt, now) {
		return p.fee
	}
	return 0
}
