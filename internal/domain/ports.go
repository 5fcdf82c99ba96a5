package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// UserDirectory описывает обращение к сервису пользователей.
type UserDirectory interface {
	// GetUser возвращает пользователя с адресами или NotFound.
	GetUser(ctx context.Context, userID int64) (User, error)
}

// Inventory описывает обращение к каталогу товаров.
type Inventory interface {
	// GetProduct возвращает товар с текущим остатком или NotFound.
	GetProduct(ctx context.Context, productID int64) (Product, error)
	// AdjustStock применяет изменение остатка; повтор с тем же ключом не применяется дважды.
	AdjustStock(ctx context.Context, adj StockAdjustment) (Product, error)
}

// PaymentProcessor описывает взаимодействие с платёжным шлюзом.
type PaymentProcessor interface {
	// Charge списывает сумму и возвращает идентификатор транзакции.
	Charge(ctx context.Context, method string, amount decimal.Decimal) (string, error)
	// Refund возвращает средства по транзакции (компенсация).
	Refund(ctx context.Context, transactionID string, amount decimal.Decimal) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID int64) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// SagaStep задаёт константы шагов для метрик/логов.
type SagaStep string

const (
	SagaStepLoadUser     SagaStep = "load_user"
	SagaStepCheckStock   SagaStep = "check_stock"
	SagaStepCharge       SagaStep = "charge"
	SagaStepPersist      SagaStep = "persist"
	SagaStepAdjustStock  SagaStep = "adjust_stock"
	SagaStepRestoreStock SagaStep = "restore_stock"
	SagaStepRefund       SagaStep = "refund"
	SagaStepCancel       SagaStep = "cancel"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
