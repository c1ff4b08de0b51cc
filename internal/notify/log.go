package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes events to the logger. Used when no broker is configured.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, ev Event) error {
	s.logger.Info("appointment event",
		zap.String("event_type", ev.Type),
		zap.Stringer("event_id", ev.ID),
		zap.Stringer("appointment_id", ev.AppointmentID),
		zap.String("status", ev.Status),
		zap.Time("start_time", ev.StartTime),
	)
	return nil
}
