package messaging

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/metrics"
)

// Recorder пишет событие заказа в outbox и в timeline.
//
// Ошибки записи только логируются: событие вторично по отношению к заказу.
type Recorder struct {
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	metrics  *metrics.SagaMetrics
	logger   *log.Entry
	now      func() time.Time
}

// NewRecorder создаёт Recorder. Любой из приёмников может быть nil.
func NewRecorder(outbox domain.OutboxRepository, timeline domain.TimelineRepository, m *metrics.SagaMetrics, logger *log.Entry) *Recorder {
	if logger == nil {
		logger = log.New().WithField("component", "order-events")
	}
	return &Recorder{
		outbox:   outbox,
		timeline: timeline,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Record сохраняет событие eventType по снимку заказа. Nil-Recorder ничего не делает.
func (r *Recorder) Record(eventType string, order domain.Order, reason string) {
	if r == nil {
		return
	}
	fields := log.Fields{
		"order_id": order.ID,
		"event":    eventType,
	}

	if r.outbox != nil {
		msg, err := NewOrderMessage(eventType, order, reason)
		if err != nil {
			r.logger.WithError(err).WithFields(fields).Error("marshal event failed")
		} else if _, err := r.outbox.Enqueue(msg); err != nil {
			r.logger.WithError(err).WithFields(fields).Error("enqueue event failed")
		} else if r.metrics != nil {
			r.metrics.EventRecorded("outbox", eventType)
		}
	}

	if r.timeline != nil {
		event := domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     eventType,
			Reason:   reason,
			Occurred: r.now(),
		}
		if err := r.timeline.Append(event); err != nil {
			r.logger.WithError(err).WithFields(fields).Warn("append timeline event failed")
		} else if r.metrics != nil {
			r.metrics.EventRecorded("timeline", eventType)
		}
	}
}
