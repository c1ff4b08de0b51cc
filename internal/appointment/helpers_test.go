package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/clock"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/notify"
)

var (
	testBranch    = uuid.MustParse("3f7d1c52-8f4e-4a8b-9d9b-1b1f2b6a0c01")
	otherBranch   = uuid.MustParse("3f7d1c52-8f4e-4a8b-9d9b-1b1f2b6a0c02")
	providerA     = uuid.MustParse("9a0e5f7c-2b1d-4c3e-8f6a-5d4c3b2a1f01")
	providerB     = uuid.MustParse("9a0e5f7c-2b1d-4c3e-8f6a-5d4c3b2a1f02")
	testPatient   = uuid.MustParse("c1d2e3f4-a5b6-4c7d-8e9f-0a1b2c3d4e01")
	secondPatient = uuid.MustParse("c1d2e3f4-a5b6-4c7d-8e9f-0a1b2c3d4e02")
)

// testNow is Tuesday 2026-01-27 08:00 UTC; at() builds times on Wednesday 2026-01-28.
var testNow = time.Date(2026, 1, 27, 8, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return time.Date(2026, 1, 28, h, m, 0, 0, time.UTC)
}

func ptr[T any](v T) *T {
	return &v
}

type recordingSender struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (r *recordingSender) Send(_ context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingSender) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recordingSender) last() notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type countingMetrics struct {
	mu             sync.Mutex
	outcomes       map[string]int
	retries        int
	transitions    int
	notifyFailures int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{outcomes: make(map[string]int)}
}

func (m *countingMetrics) ObserveOperation(op, outcome string, _ time.Duration) {
	m.mu.Lock()
	m.outcomes[op+"/"+outcome]++
	m.mu.Unlock()
}

func (m *countingMetrics) IncRetry(string) {
	m.mu.Lock()
	m.retries++
	m.mu.Unlock()
}

func (m *countingMetrics) IncTransition(string, string) {
	m.mu.Lock()
	m.transitions++
	m.mu.Unlock()
}

func (m *countingMetrics) IncNotifyFailure(string) {
	m.mu.Lock()
	m.notifyFailures++
	m.mu.Unlock()
}

type testEnv struct {
	svc     *Service
	repo    *MemoryRepository
	clock   *clock.Fake
	sender  *recordingSender
	metrics *countingMetrics
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	env := &testEnv{
		repo:    NewMemoryRepository(),
		clock:   clock.NewFake(testNow),
		sender:  &recordingSender{},
		metrics: newCountingMetrics(),
	}
	cfg := config.Config{
		SlotGranularity: 15 * time.Minute,
		Location:        time.UTC,
		NoShowGrace:     30 * time.Minute,
		NotifyTimeout:   time.Second,
	}

	all := append([]Option{
		WithClock(env.clock),
		WithNotifier(env.sender),
		WithMetrics(env.metrics),
	}, opts...)
	env.svc = NewService(env.repo, nil, cfg, all...)
	return env
}

func (e *testEnv) book(t *testing.T, provider *uuid.UUID, start, end time.Time) *Appointment {
	t.Helper()
	a, err := e.svc.CreateAppointment(context.Background(), Appointment{
		PatientID:  testPatient,
		BranchID:   testBranch,
		ProviderID: provider,
		StartTime:  start,
		EndTime:    end,
		Type:       TypeConsultation,
	})
	if err != nil {
		t.Fatalf("book %s-%s: %v", start.Format("15:04"), end.Format("15:04"), err)
	}
	return a
}
