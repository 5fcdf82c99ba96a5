// Package messaging описывает формат событий заказа, общий для всех брокеров.
package messaging

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// OrderEvent: полезная нагрузка событий заказа в outbox.
type OrderEvent struct {
	OrderID       int64     `json:"orderId"`
	UserID        int64     `json:"userId"`
	Status        string    `json:"status"`
	TotalAmount   string    `json:"totalAmount"`
	TransactionID string    `json:"transactionId,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// NewOrderMessage собирает outbox-сообщение по снимку заказа.
func NewOrderMessage(eventType string, order domain.Order, reason string) (domain.OutboxMessage, error) {
	payload, err := json.Marshal(OrderEvent{
		OrderID:       order.ID,
		UserID:        order.UserID,
		Status:        string(order.Status),
		TotalAmount:   order.TotalAmount.StringFixed(domain.MoneyScale),
		TransactionID: order.TransactionID,
		Reason:        reason,
		OccurredAt:    time.Now().UTC(),
	})
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return domain.OutboxMessage{
		AggregateType: domain.AggregateOrder,
		AggregateID:   strconv.FormatInt(order.ID, 10),
		EventType:     eventType,
		Payload:       payload,
	}, nil
}

// Envelope: то, что уходит в брокер.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// NewEnvelope оборачивает outbox-сообщение. Пустой payload публикуется как null.
func NewEnvelope(msg domain.OutboxMessage, now time.Time) Envelope {
	payload := json.RawMessage(msg.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return Envelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       payload,
		PublishedAt:   now.UTC(),
	}
}

// PartitionKey: ключ упорядочивания: события одного заказа идут в одну партицию.
func PartitionKey(msg domain.OutboxMessage) string {
	if msg.AggregateID != "" {
		return msg.AggregateID
	}
	return msg.ID
}
