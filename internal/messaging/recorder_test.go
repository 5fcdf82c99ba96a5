package messaging

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/metrics"
	"github.com/vladislavdragonenkov/ordersvc/internal/storage/memory"
)

type failingOutbox struct {
	domain.OutboxRepository
}

func (failingOutbox) Enqueue(domain.OutboxMessage) (domain.OutboxMessage, error) {
	return domain.OutboxMessage{}, errors.New("outbox down")
}

func TestRecorder_WritesOutboxAndTimeline(t *testing.T) {
	outbox := memory.NewOutboxRepository()
	timeline := memory.NewTimelineRepository()
	reg := prometheus.NewRegistry()
	rec := NewRecorder(outbox, timeline, metrics.NewSagaMetrics(reg), nil)

	order := domain.Order{ID: 7, UserID: 1, Status: domain.OrderStatusCancelled, TotalAmount: decimal.RequireFromString("19.98")}
	rec.Record(domain.EventOrderCancelled, order, "customer request")

	pending := outbox.AllPending()
	require.Len(t, pending, 1)
	require.Equal(t, "7", pending[0].AggregateID)
	require.Equal(t, domain.EventOrderCancelled, pending[0].EventType)

	var payload OrderEvent
	require.NoError(t, json.Unmarshal(pending[0].Payload, &payload))
	require.Equal(t, "customer request", payload.Reason)
	require.Equal(t, "19.98", payload.TotalAmount)

	events, err := timeline.List(7)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, domain.EventOrderCancelled, events[0].Type)
	require.False(t, events[0].Occurred.IsZero())

	count, err := testutil.GatherAndCount(reg, "oms_order_events_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestRecorder_OutboxFailureStillWritesTimeline(t *testing.T) {
	timeline := memory.NewTimelineRepository()
	rec := NewRecorder(failingOutbox{}, timeline, nil, nil)

	rec.Record(domain.EventOrderCreated, domain.Order{ID: 3}, "")

	events, err := timeline.List(3)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var rec *Recorder
	require.NotPanics(t, func() {
		rec.Record(domain.EventOrderCreated, domain.Order{ID: 1}, "")
	})
}
