package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/messaging"
)

// OutboxTopicPublisher публикует outbox-сообщения в заданный топик.
// Ключом сообщения служит id заказа, поэтому события одного заказа упорядочены.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
	now      func() time.Time
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
		now:      time.Now,
	}
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errors.New("kafka outbox publisher is not initialized")
	}

	body, err := json.Marshal(messaging.NewEnvelope(event, p.now()))
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	return p.producer.Send(Message{
		Topic: p.topic,
		Key:   messaging.PartitionKey(event),
		Value: body,
		Headers: map[string]string{
			HeaderEventType: event.EventType,
			HeaderOutboxID:  event.ID,
			HeaderAggregate: event.AggregateType,
		},
	})
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
