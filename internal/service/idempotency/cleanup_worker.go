package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

var (
	cleanupRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oms_idempotency_cleanup_runs_total",
		Help: "Idempotency cleanup runs grouped by result.",
	}, []string{"result"})
	cleanupDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oms_idempotency_cleanup_deleted_total",
		Help: "Expired idempotency records deleted by the cleanup worker.",
	})
)

// CleanupWorker вычищает просроченные Idempotency-Key. Для Redis это почти no-op:
// ключи там истекают по TTL сами.
type CleanupWorker struct {
	repo     domain.IdempotencyRepository
	logger   *log.Entry
	interval time.Duration
	batch    int
	now      func() time.Time
}

// NewCleanupWorker: interval<=0 означает раз в минуту, batch<=0 означает 500.
func NewCleanupWorker(repo domain.IdempotencyRepository, interval time.Duration, batch int, logger *log.Entry) *CleanupWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 500
	}
	if logger == nil {
		logger = log.WithField("component", "idempotency-cleanup")
	}
	return &CleanupWorker{
		repo:     repo,
		logger:   logger,
		interval: interval,
		batch:    batch,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run чистит сразу при старте и далее по таймеру, пока жив ctx.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("idempotency cleanup disabled: no repository")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for w.tick(ctx) {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick возвращает false, если ctx отменён посреди очистки.
func (w *CleanupWorker) tick(ctx context.Context) bool {
	removed, err := w.Sweep(ctx, w.now())
	if errors.Is(err, context.Canceled) {
		return false
	}
	if err != nil {
		cleanupRuns.WithLabelValues("error").Inc()
		w.logger.WithError(err).Warn("idempotency cleanup failed")
		return true
	}
	cleanupRuns.WithLabelValues("ok").Inc()
	if removed > 0 {
		w.logger.WithField("deleted", removed).Info("expired idempotency keys removed")
	}
	return true
}

// Sweep удаляет порциями всё, что истекло к before. Неполная порция значит, что хвост пуст.
func (w *CleanupWorker) Sweep(ctx context.Context, before time.Time) (int, error) {
	var removed int
	for ctx.Err() == nil {
		n, err := w.repo.DeleteExpired(before, w.batch)
		removed += n
		cleanupDeleted.Add(float64(n))
		if err != nil || n < w.batch {
			return removed, err
		}
	}
	return removed, ctx.Err()
}
