package domain

import "time"

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  int64
	Type     string
	Reason   string
	Occurred time.Time
}

// Типы событий таймлайна и outbox.
const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderCancelled     = "OrderCancelled"
	EventOrderDeleted       = "OrderDeleted"
	EventOrderSagaFailed    = "OrderSagaFailed"
	EventStockCompensated   = "StockCompensated"
	EventPaymentRefunded    = "PaymentRefunded"
)

// AggregateOrder: тип агрегата в outbox.
const AggregateOrder = "order"
