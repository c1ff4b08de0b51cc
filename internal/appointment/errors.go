package appointment

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTimeRange    = errors.New("end time must be after start time")
	ErrPastAppointment     = errors.New("appointment must start in the future")
	ErrSlotConflict        = errors.New("time slot conflicts with an existing appointment")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrInvalidType         = errors.New("invalid appointment type")

	// ErrWriteConflict is returned by repositories when a concurrent writer got there first.
	ErrWriteConflict = errors.New("concurrent write conflict")
	// ErrProviderBusy means the provider lock could not be taken within the wait budget.
	ErrProviderBusy = errors.New("provider is being booked by another request, please retry")
)

// TransitionError carries the rejected edge. errors.Is(err, ErrInvalidTransition) holds.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
