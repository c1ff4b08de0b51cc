package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/notify"
)

const (
	EventAppointmentCreated     = "APPOINTMENT_CREATED"
	EventAppointmentUpdated     = "APPOINTMENT_UPDATED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentDeleted     = "APPOINTMENT_DELETED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentCheckedIn   = "APPOINTMENT_CHECKED_IN"
	EventAppointmentStarted     = "APPOINTMENT_IN_PROGRESS"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentNoShow      = "APPOINTMENT_NO_SHOW"
)

var transitionEvents = map[Status]string{
	StatusConfirmed:  EventAppointmentConfirmed,
	StatusCheckedIn:  EventAppointmentCheckedIn,
	StatusInProgress: EventAppointmentStarted,
	StatusCompleted:  EventAppointmentCompleted,
	StatusCancelled:  EventAppointmentCancelled,
	StatusNoShow:     EventAppointmentNoShow,
}

func newEvent(eventType string, a *Appointment, at time.Time, data map[string]string) notify.Event {
	return notify.Event{
		ID:            uuid.New(),
		Type:          eventType,
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		BranchID:      a.BranchID,
		ProviderID:    a.ProviderID,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		Status:        string(a.Status),
		OccurredAt:    at,
		Data:          data,
	}
}

// publish hands the event to the notifier after the write is committed. The send gets its own
// deadline and survives cancellation of the caller's context; a failure is logged and counted.
func (s *Service) publish(ctx context.Context, eventType string, a *Appointment, data map[string]string) {
	if s.notifier == nil || a == nil {
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	if err := s.notifier.Send(sendCtx, newEvent(eventType, a, s.clock.Now(), data)); err != nil {
		s.metrics.IncNotifyFailure(eventType)
		s.logger.Warn("notification failed",
			zap.String("event_type", eventType),
			zap.Stringer("appointment_id", a.ID),
			zap.Error(err),
		)
	}
}
