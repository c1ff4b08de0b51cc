package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/hours"
)

func TestGetAvailableSlots_SkipsBookedRanges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.book(t, &providerA, at(9, 0), at(9, 30))
	env.book(t, &providerA, at(10, 0), at(11, 0))
	env.book(t, &providerB, at(11, 0), at(12, 0))

	slots, err := env.svc.GetAvailableSlots(ctx, testBranch, &providerA, at(0, 0), 30)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if len(slots) < 2 {
		t.Fatalf("expected slots, got %v", slots)
	}
	if !slots[0].Equal(at(9, 30)) || !slots[1].Equal(at(11, 0)) {
		t.Fatalf("expected 09:30 then 11:00, got %s and %s", slots[0].Format("15:04"), slots[1].Format("15:04"))
	}
	if last := slots[len(slots)-1]; !last.Equal(at(16, 30)) {
		t.Fatalf("expected last slot 16:30, got %s", last.Format("15:04"))
	}

	booked, _ := env.repo.GetByProviderAndWindow(ctx, providerA, at(0, 0), at(23, 59))
	for i, s := range slots {
		if i > 0 && !s.After(slots[i-1]) {
			t.Fatalf("slots not strictly ascending at %d", i)
		}
		end := s.Add(30 * time.Minute)
		if len(Conflicts(booked, s, end, uuid.Nil)) > 0 {
			t.Fatalf("slot %s overlaps an existing booking", s.Format("15:04"))
		}
	}
}

func TestGetAvailableSlots_BranchWideWithoutProvider(t *testing.T) {
	env := newTestEnv(t)

	env.book(t, &providerB, at(9, 0), at(10, 0))

	slots, err := env.svc.GetAvailableSlots(context.Background(), testBranch, nil, at(0, 0), 60)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if !slots[0].Equal(at(10, 0)) {
		t.Fatalf("expected any booking in the branch to block, first slot %s", slots[0].Format("15:04"))
	}
}

func TestGetAvailableSlots_DropsPastStarts(t *testing.T) {
	env := newTestEnv(t)
	env.clock.Set(at(12, 10))

	slots, err := env.svc.GetAvailableSlots(context.Background(), testBranch, &providerA, at(0, 0), 30)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if !slots[0].Equal(at(12, 15)) {
		t.Fatalf("expected first slot 12:15, got %s", slots[0].Format("15:04"))
	}
}

func TestGetAvailableSlots_EdgeCases(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.GetAvailableSlots(ctx, testBranch, &providerA, at(0, 0), 0); !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange for zero duration, got %v", err)
	}

	saturday := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	slots, err := env.svc.GetAvailableSlots(ctx, testBranch, &providerA, saturday, 30)
	if err != nil || len(slots) != 0 {
		t.Fatalf("expected no slots on a closed day, got %v, %v", slots, err)
	}

	slots, err = env.svc.GetAvailableSlots(ctx, testBranch, &providerA, at(0, 0), 9*60)
	if err != nil || len(slots) != 0 {
		t.Fatalf("expected no slots longer than the opening hours, got %v, %v", slots, err)
	}
}

func TestGetAvailableSlots_UsesBranchHours(t *testing.T) {
	sched := hours.Schedule{
		Timezone: "UTC",
		Weekly: map[string]hours.Day{
			"wednesday": {Open: "08:00", Close: "12:00", Breaks: []hours.Window{{Start: "10:00", End: "10:30"}}},
		},
	}
	env := newTestEnv(t, WithHours(hours.NewStatic(hours.DefaultSchedule(), map[uuid.UUID]hours.Schedule{testBranch: sched})))

	slots, err := env.svc.GetAvailableSlots(context.Background(), testBranch, nil, at(0, 0), 60)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}

	want := []time.Time{at(8, 0), at(8, 15), at(8, 30), at(8, 45), at(9, 0), at(10, 30), at(10, 45), at(11, 0)}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d: %v", len(want), len(slots), slots)
	}
	for i := range want {
		if !slots[i].Equal(want[i]) {
			t.Fatalf("slot %d: expected %s, got %s", i, want[i].Format("15:04"), slots[i].Format("15:04"))
		}
	}
}

func TestIsTimeSlotAvailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.book(t, &providerA, at(9, 0), at(9, 30))

	cases := []struct {
		name     string
		provider *uuid.UUID
		start    time.Time
		end      time.Time
		exclude  *uuid.UUID
		want     bool
	}{
		{"overlap same provider", &providerA, at(9, 15), at(9, 45), nil, false},
		{"adjacent after", &providerA, at(9, 30), at(10, 0), nil, true},
		{"adjacent before", &providerA, at(8, 30), at(9, 0), nil, true},
		{"other provider", &providerB, at(9, 0), at(9, 30), nil, true},
		{"excluding itself", &providerA, at(9, 0), at(9, 30), &a.ID, true},
		{"branch wide", nil, at(9, 10), at(9, 20), nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := env.svc.IsTimeSlotAvailable(ctx, testBranch, tc.provider, tc.start, tc.end, tc.exclude)
			if err != nil {
				t.Fatalf("available: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}

	got, err := env.svc.IsTimeSlotAvailable(ctx, otherBranch, nil, at(9, 0), at(9, 30), nil)
	if err != nil || !got {
		t.Fatalf("expected another branch to be free, got %v, %v", got, err)
	}
	if _, err := env.svc.IsTimeSlotAvailable(ctx, testBranch, &providerA, at(9, 0), at(8, 0), nil); !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
	}
}

func TestConflicts_SkipsCancelledAndExcluded(t *testing.T) {
	keep := Appointment{ID: uuid.New(), StartTime: at(9, 0), EndTime: at(10, 0), Status: StatusConfirmed}
	cancelled := Appointment{ID: uuid.New(), StartTime: at(9, 0), EndTime: at(10, 0), Status: StatusCancelled}
	self := Appointment{ID: uuid.New(), StartTime: at(9, 30), EndTime: at(10, 30), Status: StatusScheduled}

	got := Conflicts([]Appointment{keep, cancelled, self}, at(9, 45), at(10, 15), self.ID)
	if len(got) != 1 || got[0].ID != keep.ID {
		t.Fatalf("expected only the confirmed appointment, got %v", got)
	}
	if !availability.Overlaps(keep.StartTime, keep.EndTime, at(9, 45), at(10, 15)) {
		t.Fatal("sanity: expected overlap")
	}
}
