package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_CountsOperations(t *testing.T) {
	c := NewCollector("scheduling")

	c.ObserveOperation("create", "ok", 5*time.Millisecond)
	c.ObserveOperation("create", "ok", 7*time.Millisecond)
	c.ObserveOperation("create", "conflict", time.Millisecond)
	c.IncRetry("create")
	c.IncTransition("scheduled", "confirmed")
	c.IncNotifyFailure("APPOINTMENT_CREATED")
	c.AddRelayed(3)

	if got := testutil.ToFloat64(c.OperationsTotal.WithLabelValues("create", "ok")); got != 2 {
		t.Fatalf("expected 2 ok creates, got %v", got)
	}
	if got := testutil.ToFloat64(c.OperationsTotal.WithLabelValues("create", "conflict")); got != 1 {
		t.Fatalf("expected 1 conflict, got %v", got)
	}
	if got := testutil.ToFloat64(c.RetriesTotal.WithLabelValues("create")); got != 1 {
		t.Fatalf("expected 1 retry, got %v", got)
	}
	if got := testutil.ToFloat64(c.TransitionsTotal.WithLabelValues("scheduled", "confirmed")); got != 1 {
		t.Fatalf("expected 1 transition, got %v", got)
	}
	if got := testutil.ToFloat64(c.EventsRelayedTotal); got != 3 {
		t.Fatalf("expected 3 relayed, got %v", got)
	}
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector("scheduling")
	b := NewCollector("scheduling")
	a.IncRetry("reschedule")

	if got := testutil.ToFloat64(b.RetriesTotal.WithLabelValues("reschedule")); got != 0 {
		t.Fatalf("expected collectors not to share state, got %v", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("scheduling")
	c.IncNotifyFailure("APPOINTMENT_CANCELLED")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "scheduling_notify_failures_total") {
		t.Fatal("expected notify failure metric in exposition")
	}
}
