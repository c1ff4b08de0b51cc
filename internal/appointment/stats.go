package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Statistics struct {
	BranchID uuid.UUID
	From     time.Time
	To       time.Time

	Total      int
	ByStatus   map[Status]int
	ByType     map[Type]int
	ByProvider map[uuid.UUID]int
	Unassigned int

	// BookedMinutes sums the durations of non-cancelled appointments.
	BookedMinutes int

	CancellationRate float64
	NoShowRate       float64
	CompletionRate   float64
}

// Statistics aggregates the branch's appointments starting in [from, to).
func (s *Service) Statistics(ctx context.Context, branchID uuid.UUID, from, to time.Time) (_ *Statistics, err error) {
	ctx, done := s.instrument(ctx, "statistics")
	defer done(&err)

	appts, err := s.ListByDateRange(ctx, branchID, from, to)
	if err != nil {
		return nil, err
	}
	st := Aggregate(appts)
	st.BranchID = branchID
	st.From = from
	st.To = to
	return st, nil
}

// Aggregate computes counts and rates over appts.
func Aggregate(appts []Appointment) *Statistics {
	st := &Statistics{
		Total:      len(appts),
		ByStatus:   make(map[Status]int),
		ByType:     make(map[Type]int),
		ByProvider: make(map[uuid.UUID]int),
	}

	var booked time.Duration
	for _, a := range appts {
		st.ByStatus[a.Status]++
		st.ByType[a.Type]++
		if a.ProviderID != nil {
			st.ByProvider[*a.ProviderID]++
		} else {
			st.Unassigned++
		}
		if a.Blocks() {
			booked += a.Duration()
		}
	}
	st.BookedMinutes = int(booked / time.Minute)

	if st.Total > 0 {
		total := float64(st.Total)
		st.CancellationRate = float64(st.ByStatus[StatusCancelled]) / total
		st.NoShowRate = float64(st.ByStatus[StatusNoShow]) / total
		st.CompletionRate = float64(st.ByStatus[StatusCompleted]) / total
	}
	return st
}

func (st *Statistics) String() string {
	return fmt.Sprintf("total=%d completed=%d cancelled=%d no_show=%d booked_minutes=%d",
		st.Total, st.ByStatus[StatusCompleted], st.ByStatus[StatusCancelled], st.ByStatus[StatusNoShow], st.BookedMinutes)
}
