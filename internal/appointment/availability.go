package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/clinic-scheduling/internal/availability"
)

// IsTimeSlotAvailable reports whether [start, end) is free. With a provider the check covers that
// provider everywhere; without one it covers every appointment of the branch.
func (s *Service) IsTimeSlotAvailable(ctx context.Context, branchID uuid.UUID, providerID *uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (_ bool, err error) {
	ctx, done := s.instrument(ctx, opAvailable)
	defer done(&err)

	if err := validateRange(start, end); err != nil {
		return false, err
	}

	existing, err := s.blocking(ctx, branchID, providerID, start, end)
	if err != nil {
		return false, err
	}

	exclude := uuid.Nil
	if excludeID != nil {
		exclude = *excludeID
	}
	return len(Conflicts(existing, start, end, exclude)) == 0, nil
}

// GetAvailableSlots lists start times on date where an appointment of durationMinutes fits inside
// the branch's operating hours without overlapping a booking. Starts not after now are dropped.
// Results are computed on every call.
func (s *Service) GetAvailableSlots(ctx context.Context, branchID uuid.UUID, providerID *uuid.UUID, date time.Time, durationMinutes int) (_ []time.Time, err error) {
	ctx, done := s.instrument(ctx, opSlots,
		attribute.String("branch_id", branchID.String()),
		attribute.Int("duration_minutes", durationMinutes),
	)
	defer done(&err)

	if durationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive, got %d minutes", ErrInvalidTimeRange, durationMinutes)
	}

	windows, err := s.hours.Windows(ctx, branchID, date)
	if err != nil {
		return nil, fmt.Errorf("load operating hours: %w", err)
	}
	if len(windows) == 0 {
		return []time.Time{}, nil
	}

	lo, hi := windows[0].Start, windows[0].End
	for _, w := range windows[1:] {
		if w.Start.Before(lo) {
			lo = w.Start
		}
		if w.End.After(hi) {
			hi = w.End
		}
	}

	existing, err := s.blocking(ctx, branchID, providerID, lo, hi)
	if err != nil {
		return nil, err
	}

	slots := availability.Slots(windows, time.Duration(durationMinutes)*time.Minute, s.granularity,
		busyIntervals(existing), s.clock.Now())
	if slots == nil {
		slots = []time.Time{}
	}
	return slots, nil
}

func (s *Service) blocking(ctx context.Context, branchID uuid.UUID, providerID *uuid.UUID, start, end time.Time) ([]Appointment, error) {
	if providerID != nil {
		appts, err := s.repo.GetByProviderAndWindow(ctx, *providerID, start, end)
		if err != nil {
			return nil, fmt.Errorf("load provider appointments: %w", err)
		}
		return appts, nil
	}

	appts, err := s.repo.GetByBranchAndWindow(ctx, branchID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load branch appointments: %w", err)
	}
	return appts, nil
}
