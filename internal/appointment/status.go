package appointment

var transitions = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusCheckedIn, StatusCancelled, StatusNoShow},
	StatusCheckedIn:  {StatusInProgress},
	StatusInProgress: {StatusCompleted},
	StatusCompleted:  {},
	StatusCancelled:  {},
	StatusNoShow:     {},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Reschedulable reports whether an appointment in this status may still move in time.
func (s Status) Reschedulable() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

// Transition validates the edge and returns the next status.
func Transition(from, to Status) (Status, error) {
	if !from.CanTransitionTo(to) {
		return from, &TransitionError{From: from, To: to}
	}
	return to, nil
}
