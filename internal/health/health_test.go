package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type outboxStatsStub struct {
	domain.OutboxRepository
	stats domain.OutboxStats
	err   error
}

func (s outboxStatsStub) Stats(context.Context) (domain.OutboxStats, error) {
	return s.stats, s.err
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var response Response
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return response
}

func TestHealthHandler(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("storage", NewStorageChecker(pingerFunc(func(context.Context) error { return nil })))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	response := decodeResponse(t, w)
	if response.Status != StatusHealthy {
		t.Errorf("expected status healthy, got %s", response.Status)
	}
	if response.Version != "v1.0.0" {
		t.Errorf("expected version v1.0.0, got %s", response.Version)
	}
	if response.Checks["storage"].Name != "storage" {
		t.Errorf("expected storage check, got %+v", response.Checks)
	}
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("storage", NewStorageChecker(pingerFunc(func(context.Context) error {
		return errors.New("connection refused")
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
	response := decodeResponse(t, w)
	if response.Status != StatusUnhealthy {
		t.Errorf("expected status unhealthy, got %s", response.Status)
	}
	if response.Checks["storage"].Message != "connection refused" {
		t.Errorf("unexpected message: %+v", response.Checks["storage"])
	}
}

func TestHealthHandler_DegradedOutboxKeepsReady(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	outbox := NewOutboxChecker(outboxStatsStub{stats: domain.OutboxStats{
		PendingCount:    4,
		OldestPendingAt: now.Add(-10 * time.Minute),
	}}, time.Minute)
	outbox.now = func() time.Time { return now }

	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("outbox", outbox)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("degraded must keep 200, got %d", w.Code)
	}
	if response := decodeResponse(t, w); response.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", response.Status)
	}

	ready := httptest.NewRecorder()
	handler.ReadinessHandler(ready, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if ready.Code != http.StatusOK {
		t.Errorf("degraded must stay ready, got %d", ready.Code)
	}
}

func TestOutboxChecker(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		repo outboxStatsStub
		want Status
	}{
		{name: "empty", repo: outboxStatsStub{}, want: StatusHealthy},
		{name: "fresh backlog", repo: outboxStatsStub{stats: domain.OutboxStats{PendingCount: 1, OldestPendingAt: now}}, want: StatusHealthy},
		{name: "stale backlog", repo: outboxStatsStub{stats: domain.OutboxStats{PendingCount: 1, OldestPendingAt: now.Add(-time.Hour)}}, want: StatusDegraded},
		{name: "stats error", repo: outboxStatsStub{err: errors.New("boom")}, want: StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewOutboxChecker(tt.repo, time.Minute)
			checker.now = func() time.Time { return now }
			if got := checker.Check(context.Background()).Status; got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestLivenessHandler(t *testing.T) {
	w := httptest.NewRecorder()
	LivenessHandler(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Errorf("expected body 'ok', got %s", w.Body.String())
	}
}

func TestReadinessHandler_NotReady(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("storage", NewFuncChecker("storage", func(context.Context) error {
		return errors.New("not ready")
	}))

	w := httptest.NewRecorder()
	handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
	if w.Body.String() != "not ready" {
		t.Errorf("expected body 'not ready', got %s", w.Body.String())
	}
}

func TestFuncChecker_ReceivesDeadline(t *testing.T) {
	checker := NewFuncChecker("storage", func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("no deadline")
		}
		return nil
	})

	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("storage", checker)
	if status := handler.Run(context.Background()).Status; status != StatusHealthy {
		t.Fatalf("checks must run with a deadline, got %s", status)
	}
}
