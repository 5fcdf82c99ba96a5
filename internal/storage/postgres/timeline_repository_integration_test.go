package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

func TestTimelineRepository_PostgresAppendAndList(t *testing.T) {
	store := freshStore(t)
	orders := NewOrderRepository(store)
	timeline := NewTimelineRepository(store)

	order, err := orders.CreateWithItems(context.Background(), sampleOrder(1))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if err := timeline.Append(domain.TimelineEvent{OrderID: order.ID, Type: domain.EventOrderCreated}); err != nil {
		t.Fatalf("append with zero occurred: %v", err)
	}
	later := time.Now().UTC().Add(time.Minute).Round(time.Microsecond)
	if err := timeline.Append(domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     domain.EventOrderStatusChanged,
		Reason:   "PROCESSING -> SHIPPED",
		Occurred: later,
	}); err != nil {
		t.Fatalf("append with explicit occurred: %v", err)
	}

	events, err := timeline.List(order.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != domain.EventOrderCreated || events[0].Occurred.IsZero() {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].Reason != "PROCESSING -> SHIPPED" || !events[1].Occurred.Equal(later) {
		t.Fatalf("unexpected second event: %+v", events[1])
	}

	empty, err := timeline.List(order.ID + 100)
	if err != nil {
		t.Fatalf("list unknown order: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no events, got %+v", empty)
	}
}
