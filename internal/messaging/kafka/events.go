package kafka

// Топики по умолчанию.
const (
	TopicOrderEvents     = "orders.order.events"
	TopicDeadLetterQueue = "orders.dlq"
)

// Заголовки Kafka-сообщений.
const (
	HeaderEventType = "x-event-type"
	HeaderOutboxID  = "x-outbox-id"
	HeaderAggregate = "x-aggregate-type"
)
