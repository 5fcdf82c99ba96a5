package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/storage/memory"
)

func okPing(context.Context) error { return nil }

func TestHealthHandler(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("postgres", NewPingChecker("postgres", okPing))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var response Response
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != StatusHealthy {
		t.Errorf("expected status healthy, got %s", response.Status)
	}
	if response.Version != "v1.0.0" {
		t.Errorf("expected version v1.0.0, got %s", response.Version)
	}
	if len(response.Checks) != 1 {
		t.Errorf("expected 1 check, got %d", len(response.Checks))
	}
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("postgres", NewPingChecker("postgres", okPing))
	handler.RegisterChecker("redis", NewPingChecker("redis", func(context.Context) error {
		return errors.New("dial tcp: connection refused")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", w.Code)
	}
	var response Response
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != StatusUnhealthy {
		t.Errorf("expected status unhealthy, got %s", response.Status)
	}
	if response.Checks["redis"].Message != "dial tcp: connection refused" {
		t.Errorf("unexpected redis check: %+v", response.Checks["redis"])
	}
}

func TestRun_CheckRespectsTimeout(t *testing.T) {
	handler := NewHandler("dev")
	handler.timeout = 20 * time.Millisecond
	handler.RegisterChecker("slow", NewPingChecker("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	start := time.Now()
	status, checks := handler.Run(context.Background())
	if status != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", status)
	}
	if checks["slow"].Status != StatusUnhealthy {
		t.Fatalf("unexpected check: %+v", checks["slow"])
	}
	if time.Since(start) > time.Second {
		t.Fatalf("check was not bounded by timeout")
	}
}

func TestLivenessHandler(t *testing.T) {
	w := httptest.NewRecorder()
	LivenessHandler(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil || body["status"] != "alive" {
		t.Errorf("unexpected body %v (%v)", body, err)
	}
}

func TestReadinessHandler(t *testing.T) {
	cases := []struct {
		name string
		ping func(context.Context) error
		code int
		want string
	}{
		{name: "ready", ping: okPing, code: http.StatusOK, want: "ready"},
		{name: "not ready", ping: func(context.Context) error { return errors.New("down") }, code: http.StatusServiceUnavailable, want: "not ready"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewHandler("v1.0.0")
			handler.RegisterChecker("postgres", NewPingChecker("postgres", tc.ping))

			w := httptest.NewRecorder()
			handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if w.Code != tc.code {
				t.Fatalf("expected status %d, got %d", tc.code, w.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["status"] != tc.want {
				t.Errorf("expected %q, got %q", tc.want, body["status"])
			}
		})
	}
}

func TestOutboxBacklogChecker(t *testing.T) {
	repo := memory.NewOutboxRepository()
	checker := NewOutboxBacklogChecker(repo, 1, 0)

	if check := checker.Check(context.Background()); check.Status != StatusHealthy {
		t.Fatalf("empty outbox must be healthy, got %+v", check)
	}

	for i := 0; i < 2; i++ {
		if _, err := repo.Enqueue(domain.OutboxMessage{AggregateType: domain.AggregateOrder, AggregateID: "1", EventType: domain.EventOrderCreated}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	check := checker.Check(context.Background())
	if check.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %+v", check)
	}

	// Degraded не переводит сервис в not ready.
	handler := NewHandler("dev")
	handler.RegisterChecker("outbox", checker)
	w := httptest.NewRecorder()
	handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for degraded service, got %d", w.Code)
	}
}

func TestOutboxBacklogChecker_Age(t *testing.T) {
	repo := memory.NewOutboxRepository()
	if _, err := repo.Enqueue(domain.OutboxMessage{AggregateType: domain.AggregateOrder, AggregateID: "1", EventType: domain.EventOrderCreated}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	checker := NewOutboxBacklogChecker(repo, 0, time.Minute)
	checker.now = func() time.Time { return time.Now().Add(time.Hour) }

	if check := checker.Check(context.Background()); check.Status != StatusDegraded {
		t.Fatalf("expected degraded by age, got %+v", check)
	}
}
