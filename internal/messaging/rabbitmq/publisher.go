// Package rabbitmq публикует события outbox в topic exchange RabbitMQ.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/messaging"
)

const publishTimeout = 5 * time.Second

// Channel: подмножество *amqp.Channel, которым пользуется паблишер.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Confirm(noWait bool) error
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
	Close() error
}

// Options задаёт топологию.
type Options struct {
	Exchange   string
	RoutingKey string
	Queue      string
}

// Publisher реализует domain.OutboxPublisher.
type Publisher struct {
	ch     Channel
	conn   *amqp.Connection
	opts   Options
	logger *log.Entry
	now    func() time.Time
}

// Dial подключается к брокеру и объявляет топологию.
func Dial(url string, opts Options) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	p, err := NewPublisher(ch, opts)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewPublisher объявляет durable exchange, очередь и привязку, включает publisher confirms.
func NewPublisher(ch Channel, opts Options) (*Publisher, error) {
	if opts.Exchange == "" || opts.RoutingKey == "" {
		return nil, errors.New("rabbitmq exchange and routing key are required")
	}

	if err := ch.ExchangeDeclare(opts.Exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if opts.Queue != "" {
		q, err := ch.QueueDeclare(opts.Queue, true, false, false, false, nil)
		if err != nil {
			return nil, fmt.Errorf("declare queue: %w", err)
		}
		if err := ch.QueueBind(q.Name, opts.RoutingKey, opts.Exchange, false, nil); err != nil {
			return nil, fmt.Errorf("queue bind: %w", err)
		}
	}
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}

	return &Publisher{
		ch:   ch,
		opts: opts,
		logger: log.WithFields(log.Fields{
			"component": "rabbitmq-publisher",
			"exchange":  opts.Exchange,
		}),
		now: time.Now,
	}, nil
}

// Publish отправляет сообщение и ждёт подтверждения брокера.
func (p *Publisher) Publish(event domain.OutboxMessage) error {
	body, err := json.Marshal(messaging.NewEnvelope(event, p.now()))
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	conf, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.opts.Exchange, p.opts.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Type:         event.EventType,
		Timestamp:    p.now().UTC(),
		Headers: amqp.Table{
			"aggregate_type": event.AggregateType,
			"aggregate_id":   messaging.PartitionKey(event),
		},
		Body: body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.EventType, err)
	}
	if conf == nil {
		return nil
	}

	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait publish confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("broker nacked %s %s", event.EventType, event.ID)
	}

	p.logger.WithFields(log.Fields{
		"outbox_id":  event.ID,
		"event_type": event.EventType,
	}).Debug("message published to rabbitmq")
	return nil
}

// Close закрывает канал и соединение, если оно принадлежит паблишеру.
func (p *Publisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}
	return err
}

var _ domain.OutboxPublisher = (*Publisher)(nil)
