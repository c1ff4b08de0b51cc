package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Queries are plain read filters ordered by start time, then id. None of them error on an empty
// result.

// GetAppointment returns nil, nil when the id is unknown.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (s *Service) ListByBranch(ctx context.Context, branchID uuid.UUID) ([]Appointment, error) {
	return s.list(ctx, Filter{BranchID: branchID})
}

// ListByDate returns appointments starting on date's calendar day in the engine's time zone.
func (s *Service) ListByDate(ctx context.Context, branchID uuid.UUID, date time.Time) ([]Appointment, error) {
	from, to := s.dayBounds(date)
	return s.list(ctx, Filter{BranchID: branchID, From: from, To: to})
}

func (s *Service) ListToday(ctx context.Context, branchID uuid.UUID) ([]Appointment, error) {
	return s.ListByDate(ctx, branchID, s.clock.Now())
}

// ListUpcoming returns non-cancelled appointments starting within the next days days.
func (s *Service) ListUpcoming(ctx context.Context, branchID uuid.UUID, days int) ([]Appointment, error) {
	if days <= 0 {
		return []Appointment{}, nil
	}
	now := s.clock.Now()
	return s.list(ctx, Filter{
		BranchID: branchID,
		Statuses: activeStatuses(),
		From:     now,
		To:       now.AddDate(0, 0, days),
	})
}

func (s *Service) ListByStatus(ctx context.Context, branchID uuid.UUID, status Status) ([]Appointment, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("unknown status %q", status)
	}
	return s.list(ctx, Filter{BranchID: branchID, Statuses: []Status{status}})
}

// ListByDateRange returns appointments starting in [from, to).
func (s *Service) ListByDateRange(ctx context.Context, branchID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	return s.list(ctx, Filter{BranchID: branchID, From: from, To: to})
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	return s.list(ctx, Filter{PatientID: patientID})
}

// ListByProvider returns the provider's appointments starting in [from, to). Zero bounds are open.
func (s *Service) ListByProvider(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	return s.list(ctx, Filter{ProviderID: providerID, From: from, To: to})
}

func (s *Service) ListSeries(ctx context.Context, seriesID uuid.UUID) ([]Appointment, error) {
	return s.list(ctx, Filter{SeriesID: seriesID})
}

func (s *Service) list(ctx context.Context, f Filter) ([]Appointment, error) {
	appts, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	if appts == nil {
		appts = []Appointment{}
	}
	return appts, nil
}

func (s *Service) dayBounds(date time.Time) (time.Time, time.Time) {
	y, m, d := date.In(s.loc).Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	return from, from.AddDate(0, 0, 1)
}

func activeStatuses() []Status {
	return []Status{StatusScheduled, StatusConfirmed, StatusCheckedIn, StatusInProgress, StatusCompleted, StatusNoShow}
}
