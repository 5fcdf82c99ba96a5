package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/config"
	"github.com/vladislavdragonenkov/ordersvc/internal/messaging"
	"github.com/vladislavdragonenkov/ordersvc/internal/metrics"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/orders"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/saga"
)

// createOrchestrator собирает сагу createOrder из зависимостей и настроек saga.*.
func createOrchestrator(deps *Dependencies, cfg config.Config, m *metrics.SagaMetrics, events *messaging.Recorder, logger *log.Entry) *saga.Orchestrator {
	return saga.NewOrchestrator(
		deps.Users,
		deps.Inventory,
		deps.Payments,
		deps.Orders,
		saga.WithLogger(logger.WithField("layer", "saga")),
		saga.WithMetrics(m),
		saga.WithEvents(events),
		saga.WithStockRetry(saga.RetryConfig{
			MaxAttempts:  cfg.Saga.StockRetryAttempts,
			InitialDelay: cfg.Saga.StockRetryBaseDelay,
			MaxDelay:     cfg.Saga.StockRetryMaxDelay,
		}),
		saga.WithCompensations(cfg.Saga.CompensationsEnabled),
	)
}

// createOrderService собирает сервис чтения и администрирования заказов.
func createOrderService(deps *Dependencies, cfg config.Config, events *messaging.Recorder, logger *log.Entry) *orders.Service {
	return orders.NewService(
		deps.Orders,
		deps.Timeline,
		orders.WithLogger(logger.WithField("layer", "orders")),
		orders.WithEvents(events),
		orders.WithStrictTransitions(cfg.Saga.StrictTransitions),
	)
}
