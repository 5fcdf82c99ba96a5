package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// timelineRepository пишет историю заказа в timeline_events. Строки не удаляются
// вместе с заказом: история удалённого заказа остаётся для аудита.
type timelineRepository struct {
	db *sql.DB
}

func NewTimelineRepository(store *Store) domain.TimelineRepository {
	return &timelineRepository{db: store.DB()}
}

func (r *timelineRepository) Append(ev domain.TimelineEvent) error {
	at := ev.Occurred
	if at.IsZero() {
		at = time.Now().UTC()
	}

	ctx, cancel := withTimeout(context.Background())
	defer cancel()

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO timeline_events (order_id, type, reason, occurred) VALUES ($1,$2,$3,$4)`,
		ev.OrderID, ev.Type, ev.Reason, at,
	); err != nil {
		return fmt.Errorf("timeline append %s for order %d: %w", ev.Type, ev.OrderID, err)
	}
	return nil
}

// List: по времени, при равном времени по id вставки.
func (r *timelineRepository) List(orderID int64) ([]domain.TimelineEvent, error) {
	ctx, cancel := withTimeout(context.Background())
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT type, reason, occurred FROM timeline_events WHERE order_id = $1 ORDER BY occurred, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("timeline of order %d: %w", orderID, err)
	}
	defer rows.Close()

	history := []domain.TimelineEvent{}
	for rows.Next() {
		ev := domain.TimelineEvent{OrderID: orderID}
		if err := rows.Scan(&ev.Type, &ev.Reason, &ev.Occurred); err != nil {
			return nil, fmt.Errorf("scan timeline row: %w", err)
		}
		ev.Occurred = ev.Occurred.UTC()
		history = append(history, ev)
	}
	return history, rows.Err()
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
