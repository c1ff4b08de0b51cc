package appointment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// MarkOverdueNoShows is intended to be called by the worker periodically. Scheduled and confirmed
// appointments that ended more than the no-show grace period ago become no-shows.
func (s *Service) MarkOverdueNoShows(ctx context.Context) (int, error) {
	grace := s.cfg.NoShowGrace
	if grace < 0 {
		grace = 0
	}
	cutoff := s.clock.Now().Add(-grace)

	overdue, err := s.repo.List(ctx, Filter{
		Statuses:   []Status{StatusScheduled, StatusConfirmed},
		EndsBefore: cutoff,
	})
	if err != nil {
		return 0, fmt.Errorf("find overdue appointments: %w", err)
	}

	marked := 0
	for _, a := range overdue {
		if err := ctx.Err(); err != nil {
			return marked, err
		}
		_, err := s.MarkNoShow(ctx, a.ID)
		switch {
		case err == nil:
			marked++
		case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrAppointmentNotFound), errors.Is(err, ErrWriteConflict):
			// moved on since the listing
			s.logger.Debug("skip no-show", zap.Stringer("appointment_id", a.ID), zap.Error(err))
		default:
			s.logger.Error("failed to mark no-show", zap.Stringer("appointment_id", a.ID), zap.Error(err))
		}
	}

	return marked, nil
}
