package kafka

import (
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// Message: одна запись для отправки в Kafka.
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

func (m Message) toSarama(ts time.Time) *sarama.ProducerMessage {
	out := &sarama.ProducerMessage{
		Topic:     m.Topic,
		Key:       sarama.StringEncoder(m.Key),
		Value:     sarama.ByteEncoder(m.Value),
		Timestamp: ts,
	}
	for k, v := range m.Headers {
		out.Headers = append(out.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	return out
}

// Producer отправляет сообщения синхронно и ждёт подтверждения брокера.
// Один Producer разделяют основной паблишер и DLQ.
type Producer struct {
	sync   sarama.SyncProducer
	logger *log.Entry
}

// producerConfig: идемпотентная запись с подтверждением от всех ISR.
// Idempotent требует MaxOpenRequests=1.
func producerConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.Idempotent = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

func NewProducer(brokers []string, clientID string) (*Producer, error) {
	sp, err := sarama.NewSyncProducer(brokers, producerConfig(clientID))
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return newProducer(sp, log.WithField("component", "kafka-producer")), nil
}

func newProducer(sp sarama.SyncProducer, logger *log.Entry) *Producer {
	return &Producer{sync: sp, logger: logger}
}

// Send блокируется до ответа брокера.
func (p *Producer) Send(msg Message) error {
	fields := log.Fields{"topic": msg.Topic, "key": msg.Key}

	partition, offset, err := p.sync.SendMessage(msg.toSarama(time.Now()))
	if err != nil {
		p.logger.WithError(err).WithFields(fields).Error("kafka send failed")
		return fmt.Errorf("send to %s: %w", msg.Topic, err)
	}

	fields["partition"] = partition
	fields["offset"] = offset
	p.logger.WithFields(fields).Debug("kafka message sent")
	return nil
}

func (p *Producer) Close() error {
	if err := p.sync.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
