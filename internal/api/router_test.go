package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func probe(err error) func(context.Context) error {
	return func(context.Context) error { return err }
}

func TestReadiness(t *testing.T) {
	cases := []struct {
		name       string
		checks     []Check
		wantStatus string
		wantCode   int
	}{
		{
			name:       "all up",
			checks:     []Check{{Name: "postgres", Required: true, Probe: probe(nil)}, {Name: "redis", Probe: probe(nil)}},
			wantStatus: "ok",
			wantCode:   http.StatusOK,
		},
		{
			name:       "optional down",
			checks:     []Check{{Name: "postgres", Required: true, Probe: probe(nil)}, {Name: "kafka", Probe: probe(errors.New("refused"))}},
			wantStatus: "degraded",
			wantCode:   http.StatusOK,
		},
		{
			name:       "required down",
			checks:     []Check{{Name: "kafka", Probe: probe(errors.New("refused"))}, {Name: "postgres", Required: true, Probe: probe(errors.New("refused"))}},
			wantStatus: "error",
			wantCode:   http.StatusServiceUnavailable,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := NewRouter(RouterConfig{Checks: tc.checks, Env: "test"})
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rec.Code)
			}
			var body ReadinessResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tc.wantStatus || len(body.Dependencies) != len(tc.checks) {
				t.Fatalf("unexpected body: %+v", body)
			}
		})
	}
}

func TestLivenessCarriesRequestID(t *testing.T) {
	router := NewRouter(RouterConfig{Version: "v1"})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Header().Get("X-Request-ID") != "abc-123" {
		t.Fatalf("unexpected response: %d %q", rec.Code, rec.Header().Get("X-Request-ID"))
	}
}

func TestMetricsAndOutbox(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	pending := int64(7)
	router := NewRouter(RouterConfig{
		Metrics: metrics,
		OutboxPending: func(context.Context) (int64, error) {
			return pending, nil
		},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected metrics handler to serve, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ops/outbox", nil))
	var body OutboxResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body.Pending != 7 {
		t.Fatalf("unexpected outbox response: %+v (%v)", body, err)
	}

	rec = httptest.NewRecorder()
	NewRouter(RouterConfig{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected no metrics route without a handler, got %d", rec.Code)
	}
}
