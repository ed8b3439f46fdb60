package appointments

// Status is the closed set of appointment lifecycle states. The strings are
// part of the API and stored verbatim.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusScheduled      Status = "scheduled"
	StatusLive           Status = "live"
	StatusCompleted      Status = "completed"
	StatusNoShow         Status = "no_show"
	StatusCanceled       Status = "canceled"
)

// validTransitions lists every legal move. Anything absent is rejected with
// ErrInvalidTransition, including any move out of a terminal state.
var validTransitions = map[Status][]Status{
	StatusPendingPayment: {StatusScheduled, StatusCanceled},
	StatusScheduled:      {StatusLive, StatusCanceled, StatusNoShow},
	StatusLive:           {StatusCompleted},
}

// Valid reports whether s is a known status string.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingPayment, StatusScheduled, StatusLive, StatusCompleted, StatusNoShow, StatusCanceled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return len(validTransitions[s]) == 0 && s.Valid()
}

// CanTransitionTo reports whether s → next is a legal lifecycle move.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// sources returns every status from which `to` can be reached. Used to build
// the guarded UPDATE predicates.
func sources(to Status) []Status {
	var out []Status
	for from, nexts := range validTransitions {
		for _, n := range nexts {
			if n == to {
				out = append(out, from)
			}
		}
	}
	return out
}
