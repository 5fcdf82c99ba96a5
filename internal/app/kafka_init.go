package app

import (
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/config"
	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ordersvc/internal/messaging/rabbitmq"
)

// publishers: основной publisher outbox, publisher DLQ и то, что нужно закрыть при остановке.
type publishers struct {
	main       domain.OutboxPublisher
	deadLetter domain.OutboxPublisher
	closers    []io.Closer
}

func (p publishers) close(logger *log.Entry) {
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].Close(); err != nil {
			logger.WithError(err).Warn("failed to close broker connection")
		}
	}
}

// initPublishers подключается к брокеру из outbox.broker. Для "none" возвращает пустой набор.
func initPublishers(cfg config.Config, logger *log.Entry) (publishers, error) {
	switch cfg.Outbox.Broker {
	case config.BrokerKafka:
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.App.Name)
		if err != nil {
			return publishers{}, err
		}
		logger.WithFields(log.Fields{
			"brokers": cfg.Kafka.Brokers,
			"topic":   cfg.Kafka.Topic,
		}).Info("kafka producer initialized")
		return publishers{
			main:       kafka.NewOutboxPublisher(producer, cfg.Kafka.Topic),
			deadLetter: kafka.NewOutboxPublisher(producer, cfg.Kafka.DLQTopic),
			closers:    []io.Closer{producer},
		}, nil

	case config.BrokerRabbitMQ:
		main, err := rabbitmq.Dial(cfg.RabbitMQ.URL, rabbitmq.Options{
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			Queue:      cfg.RabbitMQ.Queue,
		})
		if err != nil {
			return publishers{}, err
		}
		dead, err := rabbitmq.Dial(cfg.RabbitMQ.URL, rabbitmq.Options{
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey + ".dead",
			Queue:      cfg.RabbitMQ.Queue + ".dead",
		})
		if err != nil {
			_ = main.Close()
			return publishers{}, err
		}
		logger.WithField("exchange", cfg.RabbitMQ.Exchange).Info("rabbitmq publisher initialized")
		return publishers{main: main, deadLetter: dead, closers: []io.Closer{main, dead}}, nil

	default:
		logger.Info("outbox broker disabled, events stay in the outbox")
		return publishers{}, nil
	}
}
