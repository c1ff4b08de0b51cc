package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/notify"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

func TestCreate_AdjacentOverlapAndOtherProvider(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.book(t, &providerA, at(9, 0), at(9, 30))
	if first.Status != StatusScheduled || first.ID == uuid.Nil || first.Version != 1 {
		t.Fatalf("unexpected stored appointment: %+v", first)
	}
	if !first.CreatedAt.Equal(testNow) {
		t.Fatalf("expected createdAt from clock, got %s", first.CreatedAt)
	}

	env.book(t, &providerA, at(9, 30), at(10, 0))

	_, err := env.svc.CreateAppointment(ctx, Appointment{
		PatientID: secondPatient, BranchID: testBranch, ProviderID: &providerA,
		StartTime: at(9, 15), EndTime: at(9, 45),
	})
	if !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("expected ErrSlotConflict, got %v", err)
	}

	env.book(t, &providerB, at(9, 0), at(9, 30))

	if got := env.sender.types(); len(got) != 3 {
		t.Fatalf("expected 3 created events, got %v", got)
	}
	if env.metrics.outcomes["create/conflict"] != 1 {
		t.Fatalf("expected one conflict outcome, got %v", env.metrics.outcomes)
	}
}

func TestCreate_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   Appointment
		want error
	}{
		{
			name: "yesterday",
			in:   Appointment{StartTime: testNow.Add(-24 * time.Hour), EndTime: testNow.Add(-23 * time.Hour)},
			want: ErrPastAppointment,
		},
		{
			name: "starting now",
			in:   Appointment{StartTime: testNow, EndTime: testNow.Add(30 * time.Minute)},
			want: ErrPastAppointment,
		},
		{
			name: "end equals start",
			in:   Appointment{StartTime: at(9, 0), EndTime: at(9, 0)},
			want: ErrInvalidTimeRange,
		},
		{
			name: "end before start",
			in:   Appointment{StartTime: at(10, 0), EndTime: at(9, 0)},
			want: ErrInvalidTimeRange,
		},
		{
			name: "unknown type",
			in:   Appointment{StartTime: at(9, 0), EndTime: at(9, 30), Type: "massage"},
			want: ErrInvalidType,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.in.PatientID = testPatient
			tc.in.BranchID = testBranch
			tc.in.ProviderID = &providerA
			_, err := env.svc.CreateAppointment(ctx, tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	all, _ := env.repo.List(ctx, Filter{})
	if len(all) != 0 {
		t.Fatalf("expected no writes after validation failures, got %d", len(all))
	}
	if len(env.sender.types()) != 0 {
		t.Fatal("expected no events after validation failures")
	}
}

func TestCreate_DefaultsTypeAndIgnoresCallerStatus(t *testing.T) {
	env := newTestEnv(t)

	a, err := env.svc.CreateAppointment(context.Background(), Appointment{
		ID:        uuid.New(),
		PatientID: testPatient,
		BranchID:  testBranch,
		StartTime: at(9, 0),
		EndTime:   at(9, 30),
		Status:    StatusCompleted,
		Version:   42,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Type != TypeConsultation {
		t.Fatalf("expected default type consultation, got %s", a.Type)
	}
	if a.Status != StatusScheduled || a.Version != 1 {
		t.Fatalf("expected fresh scheduled record, got status=%s version=%d", a.Status, a.Version)
	}
}

func TestCreate_EmergencySameDay(t *testing.T) {
	env := newTestEnv(t)
	env.clock.Set(at(12, 0))
	ctx := context.Background()

	_, err := env.svc.CreateAppointment(ctx, Appointment{
		PatientID: testPatient, BranchID: testBranch, ProviderID: &providerA,
		StartTime: at(11, 0), EndTime: at(11, 30), Type: TypeEmergency,
	})
	if err != nil {
		t.Fatalf("expected same-day emergency to be accepted, got %v", err)
	}

	_, err = env.svc.CreateAppointment(ctx, Appointment{
		PatientID: testPatient, BranchID: testBranch, ProviderID: &providerA,
		StartTime: at(11, 0).Add(-24 * time.Hour), EndTime: at(11, 30).Add(-24 * time.Hour), Type: TypeEmergency,
	})
	if !errors.Is(err, ErrPastAppointment) {
		t.Fatalf("expected yesterday's emergency to fail, got %v", err)
	}

	_, err = env.svc.CreateAppointment(ctx, Appointment{
		PatientID: testPatient, BranchID: testBranch, ProviderID: &providerB,
		StartTime: at(11, 0), EndTime: at(11, 30), Type: TypeConsultation,
	})
	if !errors.Is(err, ErrPastAppointment) {
		t.Fatalf("expected same-day consultation in the past to fail, got %v", err)
	}
}

func TestCreate_ConcurrentOverlappingExactlyOneWins(t *testing.T) {
	env := newTestEnv(t)

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	start := make(chan struct{})

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			offset := time.Duration(i%3) * 10 * time.Minute
			_, err := env.svc.CreateAppointment(context.Background(), Appointment{
				PatientID:  uuid.New(),
				BranchID:   testBranch,
				ProviderID: &providerA,
				StartTime:  at(9, 0).Add(offset),
				EndTime:    at(9, 45).Add(offset),
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrSlotConflict):
				conflicts++
			default:
				others = append(others, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if successes != 1 || conflicts != n-1 || len(others) != 0 {
		t.Fatalf("expected 1 success and %d conflicts, got %d successes, %d conflicts, others=%v",
			n-1, successes, conflicts, others)
	}
}

type flakyRepo struct {
	*MemoryRepository
	mu           sync.Mutex
	insertLosses int
	updateLosses int
}

func (r *flakyRepo) Insert(ctx context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	if r.insertLosses > 0 {
		r.insertLosses--
		r.mu.Unlock()
		return nil, ErrWriteConflict
	}
	r.mu.Unlock()
	return r.MemoryRepository.Insert(ctx, a)
}

func (r *flakyRepo) Update(ctx context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	if r.updateLosses > 0 {
		r.updateLosses--
		r.mu.Unlock()
		return nil, ErrWriteConflict
	}
	r.mu.Unlock()
	return r.MemoryRepository.Update(ctx, a)
}

func newFlakyService(t *testing.T, repo *flakyRepo) (*Service, *countingMetrics) {
	t.Helper()
	env := newTestEnv(t)
	m := newCountingMetrics()
	svc := NewService(repo, nil, env.svc.cfg, WithClock(env.clock), WithMetrics(m))
	return svc, m
}

func TestCreate_RetriesOnceAfterLostRace(t *testing.T) {
	repo := &flakyRepo{MemoryRepository: NewMemoryRepository(), insertLosses: 1}
	svc, m := newFlakyService(t, repo)

	_, err := svc.CreateAppointment(context.Background(), Appointment{
		PatientID: testPatient, BranchID: testBranch, ProviderID: &providerA,
		StartTime: at(9, 0), EndTime: at(9, 30),
	})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if m.retries != 1 {
		t.Fatalf("expected 1 retry, got %d", m.retries)
	}

	repo.insertLosses = 2
	_, err = svc.CreateAppointment(context.Background(), Appointment{
		PatientID: testPatient, BranchID: testBranch, ProviderID: &providerA,
		StartTime: at(10, 0), EndTime: at(10, 30),
	})
	if !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("expected second loss to surface as ErrSlotConflict, got %v", err)
	}
}

func TestTransition_SecondLostRaceIsWriteConflict(t *testing.T) {
	repo := &flakyRepo{MemoryRepository: NewMemoryRepository()}
	svc, _ := newFlakyService(t, repo)

	a, err := svc.CreateAppointment(context.Background(), Appointment{
		PatientID: testPatient, BranchID: testBranch, StartTime: at(9, 0), EndTime: at(9, 30),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	repo.updateLosses = 2
	if _, err := svc.Confirm(context.Background(), a.ID); !errors.Is(err, ErrWriteConflict) {
		t.Fatalf("expected ErrWriteConflict, got %v", err)
	}
	stored, _ := repo.GetByID(context.Background(), a.ID)
	if stored.Status != StatusScheduled {
		t.Fatalf("expected status untouched, got %s", stored.Status)
	}
}

type busyLocker struct{}

func (busyLocker) WithProviderLock(context.Context, uuid.UUID, func(context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

func TestCreate_ProviderLockBusy(t *testing.T) {
	env := newTestEnv(t)
	svc := NewService(env.repo, busyLocker{}, env.svc.cfg, WithClock(env.clock))

	_, err := svc.CreateAppointment(context.Background(), Appointment{
		PatientID: testPatient, BranchID: testBranch, ProviderID: &providerA,
		StartTime: at(9, 0), EndTime: at(9, 30),
	})
	if !errors.Is(err, ErrProviderBusy) {
		t.Fatalf("expected ErrProviderBusy, got %v", err)
	}

	// no provider, no lock
	if _, err := svc.CreateAppointment(context.Background(), Appointment{
		PatientID: testPatient, BranchID: testBranch, StartTime: at(9, 0), EndTime: at(9, 30),
	}); err != nil {
		t.Fatalf("expected unassigned booking to skip the lock, got %v", err)
	}
}

func TestReschedule_MoveAndMoveBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.book(t, &providerA, at(9, 0), at(9, 30))
	if _, err := env.svc.Confirm(ctx, a.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	moved, err := env.svc.Reschedule(ctx, a.ID, at(10, 0), at(10, 30))
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if moved.Status != StatusConfirmed {
		t.Fatalf("expected status to survive reschedule, got %s", moved.Status)
	}
	ev := env.sender.last()
	if ev.Type != EventAppointmentRescheduled || ev.Data["previous_start"] != at(9, 0).Format(time.RFC3339) {
		t.Fatalf("unexpected reschedule event: %+v", ev)
	}

	ok, err := env.svc.IsTimeSlotAvailable(ctx, testBranch, &providerA, at(9, 0), at(9, 30), nil)
	if err != nil || !ok {
		t.Fatalf("expected old slot to be free, ok=%v err=%v", ok, err)
	}

	back, err := env.svc.Reschedule(ctx, a.ID, at(9, 0), at(9, 30))
	if err != nil {
		t.Fatalf("reschedule back: %v", err)
	}
	if !back.StartTime.Equal(at(9, 0)) || !back.EndTime.Equal(at(9, 30)) {
		t.Fatalf("expected original times, got %s-%s", back.StartTime, back.EndTime)
	}
}

func TestReschedule_Failures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.book(t, &providerA, at(9, 0), at(9, 30))
	env.book(t, &providerA, at(10, 0), at(10, 30))

	if _, err := env.svc.Reschedule(ctx, a.ID, at(10, 15), at(10, 45)); !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("expected ErrSlotConflict, got %v", err)
	}
	stored, _ := env.svc.GetAppointment(ctx, a.ID)
	if !stored.StartTime.Equal(at(9, 0)) {
		t.Fatalf("expected failed reschedule to leave the record alone, got %s", stored.StartTime)
	}

	if _, err := env.svc.Reschedule(ctx, a.ID, testNow.Add(-time.Hour), testNow); !errors.Is(err, ErrPastAppointment) {
		t.Fatalf("expected ErrPastAppointment, got %v", err)
	}
	if _, err := env.svc.Reschedule(ctx, a.ID, at(11, 0), at(11, 0)); !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
	}
	if _, err := env.svc.Reschedule(ctx, uuid.New(), at(11, 0), at(11, 30)); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}

	if _, err := env.svc.Cancel(ctx, a.ID, "patient request"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := env.svc.Reschedule(ctx, a.ID, at(11, 0), at(11, 30)); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for cancelled appointment, got %v", err)
	}
}

func TestCancel_FreesSlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.book(t, &providerA, at(9, 0), at(9, 30))
	env.clock.Advance(time.Minute)

	cancelled, err := env.svc.Cancel(ctx, a.ID, "feeling better")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled || cancelled.CancellationReason != "feeling better" {
		t.Fatalf("unexpected cancelled record: %+v", cancelled)
	}
	if cancelled.CancelledAt == nil || !cancelled.CancelledAt.Equal(testNow.Add(time.Minute)) {
		t.Fatalf("expected cancelledAt from clock, got %v", cancelled.CancelledAt)
	}

	ev := env.sender.last()
	if ev.Type != EventAppointmentCancelled || ev.Data["reason"] != "feeling better" {
		t.Fatalf("unexpected cancel event: %+v", ev)
	}

	ok, err := env.svc.IsTimeSlotAvailable(ctx, testBranch, &providerA, at(9, 0), at(9, 30), nil)
	if err != nil || !ok {
		t.Fatalf("expected slot to be free after cancel, ok=%v err=%v", ok, err)
	}
	env.book(t, &providerA, at(9, 0), at(9, 30))
}

func TestTransitions_LifecycleAndTerminalStates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.book(t, &providerA, at(9, 0), at(9, 30))

	steps := []struct {
		do   func(context.Context, uuid.UUID) (*Appointment, error)
		want Status
	}{
		{env.svc.Confirm, StatusConfirmed},
		{env.svc.CheckIn, StatusCheckedIn},
		{env.svc.StartVisit, StatusInProgress},
		{env.svc.Complete, StatusCompleted},
	}
	for _, step := range steps {
		got, err := step.do(ctx, a.ID)
		if err != nil {
			t.Fatalf("transition to %s: %v", step.want, err)
		}
		if got.Status != step.want {
			t.Fatalf("expected %s, got %s", step.want, got.Status)
		}
	}

	_, err := env.svc.Cancel(ctx, a.ID, "too late")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	var te *TransitionError
	if !errors.As(err, &te) || te.From != StatusCompleted || te.To != StatusCancelled {
		t.Fatalf("expected TransitionError completed->cancelled, got %v", err)
	}

	stored, _ := env.svc.GetAppointment(ctx, a.ID)
	if stored.Status != StatusCompleted {
		t.Fatalf("expected failed transition to leave status, got %s", stored.Status)
	}

	want := []string{
		EventAppointmentCreated, EventAppointmentConfirmed, EventAppointmentCheckedIn,
		EventAppointmentStarted, EventAppointmentCompleted,
	}
	got := env.sender.types()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, got)
		}
	}
	if env.metrics.transitions != 4 {
		t.Fatalf("expected 4 counted transitions, got %d", env.metrics.transitions)
	}
}

func TestTransitions_IllegalEdges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.book(t, &providerA, at(9, 0), at(9, 30))
	if _, err := env.svc.CheckIn(ctx, a.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected scheduled->checked_in to fail, got %v", err)
	}

	if _, err := env.svc.MarkNoShow(ctx, a.ID); err != nil {
		t.Fatalf("no-show: %v", err)
	}
	if _, err := env.svc.Confirm(ctx, a.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected no_show->confirmed to fail, got %v", err)
	}

	if _, err := env.svc.Confirm(ctx, uuid.New()); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestDelete_IsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.svc.DeleteAppointment(ctx, uuid.New()); err != nil {
		t.Fatalf("expected delete of unknown id to succeed, got %v", err)
	}
	if len(env.sender.types()) != 0 {
		t.Fatal("expected no event for a no-op delete")
	}

	a := env.book(t, &providerA, at(9, 0), at(9, 30))
	if err := env.svc.DeleteAppointment(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := env.svc.DeleteAppointment(ctx, a.ID); err != nil {
		t.Fatalf("second delete: %v", err)
	}

	if got, err := env.svc.GetAppointment(ctx, a.ID); got != nil || err != nil {
		t.Fatalf("expected nil, nil after delete, got %v, %v", got, err)
	}
	if ev := env.sender.last(); ev.Type != EventAppointmentDeleted || ev.AppointmentID != a.ID {
		t.Fatalf("unexpected delete event: %+v", ev)
	}
	if len(env.sender.types()) != 2 {
		t.Fatalf("expected created and deleted events only, got %v", env.sender.types())
	}
}

func TestUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.book(t, &providerA, at(9, 0), at(9, 30))
	env.book(t, &providerB, at(9, 0), at(9, 30))
	if _, err := env.svc.Confirm(ctx, a.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// the clock passing the start does not block edits
	env.clock.Set(at(9, 10))
	edit, _ := env.svc.GetAppointment(ctx, a.ID)
	edit.Notes = "bring previous audiogram"
	edit.Type = TypeHearingTest
	edit.Status = StatusCompleted

	updated, err := env.svc.UpdateAppointment(ctx, *edit)
	if err != nil {
		t.Fatalf("update notes: %v", err)
	}
	if updated.Notes != "bring previous audiogram" || updated.Type != TypeHearingTest {
		t.Fatalf("expected notes and type applied, got %+v", updated)
	}
	if updated.Status != StatusConfirmed {
		t.Fatalf("expected update not to touch status, got %s", updated.Status)
	}
	if !updated.UpdatedAt.Equal(at(9, 10)) {
		t.Fatalf("expected updatedAt from clock, got %s", updated.UpdatedAt)
	}

	reassign := *updated
	reassign.ProviderID = &providerB
	if _, err := env.svc.UpdateAppointment(ctx, reassign); !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("expected reassignment onto a busy provider to conflict, got %v", err)
	}

	if _, err := env.svc.UpdateAppointment(ctx, Appointment{ID: uuid.New()}); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}

	bad := *updated
	bad.Type = "unknown"
	if _, err := env.svc.UpdateAppointment(ctx, bad); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestNotificationFailureDoesNotRollBack(t *testing.T) {
	env := newTestEnv(t)
	env.sender.err = errors.New("smtp unreachable")

	a := env.book(t, &providerA, at(9, 0), at(9, 30))

	stored, err := env.svc.GetAppointment(context.Background(), a.ID)
	if err != nil || stored == nil {
		t.Fatalf("expected appointment to persist despite notify failure, got %v, %v", stored, err)
	}
	if env.metrics.notifyFailures != 1 {
		t.Fatalf("expected one counted notify failure, got %d", env.metrics.notifyFailures)
	}
}

func TestNotificationOutlivesCancelledContext(t *testing.T) {
	env := newTestEnv(t)
	a := env.book(t, &providerA, at(9, 0), at(9, 30))

	var sawCancelled bool
	env.svc.notifier = notify.SenderFunc(func(ctx context.Context, _ notify.Event) error {
		sawCancelled = ctx.Err() != nil
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	env.svc.publish(ctx, EventAppointmentConfirmed, a, nil)

	if sawCancelled {
		t.Fatal("expected notification context to be detached from the caller")
	}
}

func TestCreate_EmergencySameDayUsesBranchZone(t *testing.T) {
	env := newTestEnv(t, WithHours(losAngelesHours(t)))
	ctx := context.Background()

	// 01:00 on Wednesday in Los Angeles
	env.clock.Set(time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC))

	// 23:00 on Tuesday local, the same UTC day as now
	yesterdayLocal := time.Date(2026, 1, 28, 7, 0, 0, 0, time.UTC)
	_, err := env.svc.CreateAppointment(ctx, Appointment{
		PatientID: testPatient, BranchID: testBranch, ProviderID: &providerA,
		StartTime: yesterdayLocal, EndTime: yesterdayLocal.Add(30 * time.Minute), Type: TypeEmergency,
	})
	if !errors.Is(err, ErrPastAppointment) {
		t.Fatalf("expected an emergency on the previous local day to fail, got %v", err)
	}

	// 00:30 on Wednesday local
	todayLocal := time.Date(2026, 1, 28, 8, 30, 0, 0, time.UTC)
	if _, err := env.svc.CreateAppointment(ctx, Appointment{
		PatientID: testPatient, BranchID: testBranch, ProviderID: &providerA,
		StartTime: todayLocal, EndTime: todayLocal.Add(20 * time.Minute), Type: TypeEmergency,
	}); err != nil {
		t.Fatalf("expected an emergency earlier the same local day to pass, got %v", err)
	}
}

func TestUpdate_NilProviderKeepsAssignment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.book(t, &providerA, at(9, 0), at(9, 30))

	updated, err := env.svc.UpdateAppointment(ctx, Appointment{ID: a.ID, Notes: "call ahead"})
	if err != nil {
		t.Fatalf("update notes: %v", err)
	}
	if updated.ProviderID == nil || *updated.ProviderID != providerA || updated.Notes != "call ahead" {
		t.Fatalf("expected provider kept and notes applied, got %+v", updated)
	}
	if !updated.StartTime.Equal(a.StartTime) || updated.Type != a.Type {
		t.Fatalf("expected times and type kept, got %+v", updated)
	}

	_, err = env.svc.CreateAppointment(ctx, Appointment{
		PatientID: secondPatient, BranchID: testBranch, ProviderID: &providerA,
		StartTime: at(9, 0), EndTime: at(9, 30),
	})
	if !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("expected the provider to stay booked, got %v", err)
	}

	cleared, err := env.svc.UnassignProvider(ctx, a.ID)
	if err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if cleared.ProviderID != nil || cleared.Notes != "call ahead" {
		t.Fatalf("expected provider cleared and notes kept, got %+v", cleared)
	}
	if _, err := env.svc.CreateAppointment(ctx, Appointment{
		PatientID: secondPatient, BranchID: testBranch, ProviderID: &providerA,
		StartTime: at(9, 0), EndTime: at(9, 30),
	}); err != nil {
		t.Fatalf("expected the provider to be free after unassigning, got %v", err)
	}

	if _, err := env.svc.UnassignProvider(ctx, uuid.New()); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestUpdate_TimesFrozenOutsideReschedulableStates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.book(t, &providerA, at(9, 0), at(9, 30))
	for _, step := range []func(context.Context, uuid.UUID) (*Appointment, error){
		env.svc.Confirm, env.svc.CheckIn, env.svc.StartVisit, env.svc.Complete,
	} {
		if _, err := step(ctx, a.ID); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}

	_, err := env.svc.UpdateAppointment(ctx, Appointment{ID: a.ID, StartTime: at(10, 0), EndTime: at(10, 30)})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition moving a completed visit, got %v", err)
	}

	updated, err := env.svc.UpdateAppointment(ctx, Appointment{ID: a.ID, Notes: "audiogram filed"})
	if err != nil {
		t.Fatalf("expected notes on a completed visit to be editable, got %v", err)
	}
	if !updated.StartTime.Equal(at(9, 0)) || updated.Status != StatusCompleted {
		t.Fatalf("unexpected record after notes edit: %+v", updated)
	}
}
