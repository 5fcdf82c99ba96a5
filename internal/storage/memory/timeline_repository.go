package memory

import (
	"slices"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// TimelineRepository держит историю заказов в памяти процесса.
type TimelineRepository struct {
	mu      sync.RWMutex
	byOrder map[int64][]domain.TimelineEvent
}

func NewTimelineRepository() domain.TimelineRepository {
	return &TimelineRepository{byOrder: make(map[int64][]domain.TimelineEvent)}
}

// Append вставляет событие по времени. События с равным временем остаются в порядке записи.
func (r *TimelineRepository) Append(event domain.TimelineEvent) error {
	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	history := r.byOrder[event.OrderID]
	at := len(history)
	for at > 0 && history[at-1].Occurred.After(event.Occurred) {
		at--
	}
	r.byOrder[event.OrderID] = slices.Insert(history, at, event)
	return nil
}

func (r *TimelineRepository) List(orderID int64) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append(make([]domain.TimelineEvent, 0, len(r.byOrder[orderID])), r.byOrder[orderID]...), nil
}

var _ domain.TimelineRepository = (*TimelineRepository)(nil)
