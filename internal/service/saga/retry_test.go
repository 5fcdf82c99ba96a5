package saga

import (
	"context"
	"errors"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/rpc"
)

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	if cfg.MaxAttempts != 3 {
		t.Fatalf("unexpected MaxAttempts: %d", cfg.MaxAttempts)
	}
	if cfg.InitialDelay <= 0 || cfg.MaxDelay <= 0 {
		t.Fatalf("delays must be positive: %+v", cfg)
	}
	if cfg.BackoffFactor <= 1 {
		t.Fatalf("backoff factor should be > 1: %f", cfg.BackoffFactor)
	}
}

func TestRetryConfigWithDefaults(t *testing.T) {
	cfg := RetryConfig{InitialDelay: -time.Second, BackoffFactor: 0.5}.withDefaults()
	if cfg.MaxAttempts != 3 || cfg.InitialDelay != 0 || cfg.BackoffFactor != 2 || cfg.MaxDelay != 2*time.Second {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func newTestRetrier(cfg RetryConfig) (*retrier, *[]time.Duration) {
	var delays []time.Duration
	r := newRetrier(cfg, rpc.IsTransport, log.New().WithField("test", "retry"))
	r.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return r, &delays
}

func TestRetrier(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 4, InitialDelay: 10 * time.Millisecond, MaxDelay: 25 * time.Millisecond, BackoffFactor: 2}
	transient := domain.Unavailable("failed to reach product-service", errors.New("connection refused"))

	t.Run("retry then success", func(t *testing.T) {
		r, delays := newTestRetrier(cfg)
		attempts := 0
		err := r.do(context.Background(), "adjust_stock", func() error {
			attempts++
			if attempts < 3 {
				return transient
			}
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if attempts != 3 {
			t.Fatalf("expected 3 attempts, got %d", attempts)
		}
		want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}
		if len(*delays) != len(want) || (*delays)[0] != want[0] || (*delays)[1] != want[1] {
			t.Fatalf("unexpected delays: %v", *delays)
		}
	})

	t.Run("non-retryable", func(t *testing.T) {
		r, delays := newTestRetrier(cfg)
		attempts := 0
		rejected := domain.InvalidInput("Insufficient stock for Widget.")
		err := r.do(context.Background(), "adjust_stock", func() error {
			attempts++
			return rejected
		})
		if !errors.Is(err, rejected) {
			t.Fatalf("expected domain error, got %v", err)
		}
		if attempts != 1 || len(*delays) != 0 {
			t.Fatalf("expected single attempt, got %d (delays %v)", attempts, *delays)
		}
	})

	t.Run("exhausted with capped delay", func(t *testing.T) {
		r, delays := newTestRetrier(cfg)
		attempts := 0
		err := r.do(context.Background(), "adjust_stock", func() error {
			attempts++
			return transient
		})
		if !errors.Is(err, domain.ErrServiceUnavailable) {
			t.Fatalf("expected transport error, got %v", err)
		}
		if attempts != 4 {
			t.Fatalf("expected 4 attempts, got %d", attempts)
		}
		if got := (*delays)[len(*delays)-1]; got != 25*time.Millisecond {
			t.Fatalf("expected capped delay, got %v", got)
		}
	})
}

func TestRetrierStopsOnCancelledContext(t *testing.T) {
	r := newRetrier(RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour}, rpc.IsTransport, log.New().WithField("test", "retry"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := r.do(ctx, "adjust_stock", func() error {
		attempts++
		return domain.Unavailable("failed to reach product-service", nil)
	})
	if err == nil || attempts != 1 {
		t.Fatalf("expected one attempt and error, got %d, %v", attempts, err)
	}
}
