package appointment

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestMarkOverdueNoShows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	scheduled := env.book(t, nil, at(9, 0), at(9, 30))
	confirmed := env.book(t, nil, at(10, 0), at(10, 30))
	completed := env.book(t, nil, at(11, 0), at(11, 30))
	cancelled := env.book(t, nil, at(8, 0), at(8, 30))
	inGrace := env.book(t, nil, at(11, 20), at(11, 50))

	if _, err := env.svc.Confirm(ctx, confirmed.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := env.svc.Confirm(ctx, completed.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := env.svc.CheckIn(ctx, completed.ID); err != nil {
		t.Fatalf("check in: %v", err)
	}
	if _, err := env.svc.StartVisit(ctx, completed.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := env.svc.Complete(ctx, completed.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := env.svc.Cancel(ctx, cancelled.ID, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// grace is 30 minutes, so the cutoff is 11:40
	env.clock.Set(at(12, 10))

	marked, err := env.svc.MarkOverdueNoShows(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if marked != 2 {
		t.Fatalf("expected 2 no-shows, got %d", marked)
	}

	want := map[uuid.UUID]Status{
		scheduled.ID: StatusNoShow,
		confirmed.ID: StatusNoShow,
		completed.ID: StatusCompleted,
		cancelled.ID: StatusCancelled,
		inGrace.ID:   StatusScheduled,
	}
	for id, status := range want {
		got, _ := env.svc.GetAppointment(ctx, id)
		if got.Status != status {
			t.Fatalf("appointment %s: expected %s, got %s", got.ID, status, got.Status)
		}
	}

	again, err := env.svc.MarkOverdueNoShows(ctx)
	if err != nil || again != 0 {
		t.Fatalf("expected second sweep to be a no-op, got %d (%v)", again, err)
	}
}
