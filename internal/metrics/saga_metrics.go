// Package metrics содержит Prometheus-метрики оформления заказа.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты шага саги для метки result.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// SagaMetrics: метрики саги createOrder.
type SagaMetrics struct {
	started      prometheus.Counter
	completed    prometheus.Counter
	failed       *prometheus.CounterVec
	compensated  *prometheus.CounterVec
	active       prometheus.Gauge
	duration     prometheus.Histogram
	stepDuration *prometheus.HistogramVec
	events       *prometheus.CounterVec
}

// NewSagaMetrics регистрирует метрики в registerer (nil: глобальный регистр).
// Повторная регистрация возвращает уже существующие коллекторы.
func NewSagaMetrics(registerer prometheus.Registerer) *SagaMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &SagaMetrics{
		started: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oms_saga_started_total",
			Help: "Order sagas started.",
		})),
		completed: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oms_saga_completed_total",
			Help: "Order sagas that produced an order.",
		})),
		failed: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oms_saga_failed_total",
			Help: "Order sagas that failed, by failing step and error kind.",
		}, []string{"step", "kind"})),
		compensated: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oms_saga_compensations_total",
			Help: "Compensating actions executed, by step and result.",
		}, []string{"step", "result"})),
		active: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oms_active_sagas",
			Help: "Order sagas currently in flight.",
		})),
		duration: register(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "oms_saga_duration_seconds",
			Help:    "Duration of the whole order saga.",
			Buckets: prometheus.DefBuckets,
		})),
		stepDuration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oms_saga_step_duration_seconds",
			Help:    "Duration of individual saga steps.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"step", "result"})),
		events: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oms_order_events_total",
			Help: "Order events recorded, by sink (timeline|outbox) and type.",
		}, []string{"sink", "type"})),
	}
}

// register регистрирует коллектор или возвращает ранее зарегистрированный того же типа.
func register[C prometheus.Collector](registerer prometheus.Registerer, c C) C {
	err := registerer.Register(c)
	if err == nil {
		return c
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(C); ok {
			return existing
		}
	}
	panic(fmt.Sprintf("register collector: %v", err))
}

// SagaStarted отмечает начало саги.
func (m *SagaMetrics) SagaStarted() {
	m.started.Inc()
	m.active.Inc()
}

// SagaCompleted отмечает успешное завершение.
func (m *SagaMetrics) SagaCompleted(d time.Duration) {
	m.completed.Inc()
	m.finish(d)
}

// SagaFailed отмечает неуспех на шаге step с классом ошибки kind.
func (m *SagaMetrics) SagaFailed(step, kind string, d time.Duration) {
	m.failed.WithLabelValues(step, kind).Inc()
	m.finish(d)
}

func (m *SagaMetrics) finish(d time.Duration) {
	m.active.Dec()
	m.duration.Observe(d.Seconds())
}

// StepObserved записывает длительность шага.
func (m *SagaMetrics) StepObserved(step string, err error, d time.Duration) {
	m.stepDuration.WithLabelValues(step, result(err)).Observe(d.Seconds())
}

// Compensation учитывает компенсирующее действие.
func (m *SagaMetrics) Compensation(step string, err error) {
	m.compensated.WithLabelValues(step, result(err)).Inc()
}

// EventRecorded учитывает запись события в timeline или outbox.
func (m *SagaMetrics) EventRecorded(sink, eventType string) {
	m.events.WithLabelValues(sink, eventType).Inc()
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
