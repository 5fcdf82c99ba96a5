package kafka

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
)

func TestProducerConfig(t *testing.T) {
	cfg := producerConfig("order-service")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("producer config must be valid: %v", err)
	}
	if !cfg.Producer.Idempotent || cfg.Producer.RequiredAcks != sarama.WaitForAll {
		t.Fatalf("expected idempotent producer with acks=all, got %+v", cfg.Producer)
	}
	if cfg.ClientID != "order-service" {
		t.Fatalf("unexpected client id %q", cfg.ClientID)
	}
}

func TestMessage_ToSarama(t *testing.T) {
	ts := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	out := Message{
		Topic:   TopicOrderEvents,
		Key:     "9",
		Value:   []byte(`{}`),
		Headers: map[string]string{HeaderEventType: "OrderCreated"},
	}.toSarama(ts)

	key, _ := out.Key.Encode()
	if out.Topic != TopicOrderEvents || string(key) != "9" || !out.Timestamp.Equal(ts) {
		t.Fatalf("unexpected message %+v", out)
	}
	if len(out.Headers) != 1 || string(out.Headers[0].Value) != "OrderCreated" {
		t.Fatalf("unexpected headers %+v", out.Headers)
	}
}

func TestProducer_SendAndClose(t *testing.T) {
	producer, mock := newTestProducer(t)
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"orderId":1}` {
			t.Errorf("unexpected value %s", val)
		}
		return nil
	})

	if err := producer.Send(Message{Topic: TopicOrderEvents, Key: "1", Value: []byte(`{"orderId":1}`)}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := producer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_SendError(t *testing.T) {
	producer, mock := newTestProducer(t)
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	if err := producer.Send(Message{Topic: TopicOrderEvents, Key: "1", Value: []byte("{}")}); err == nil {
		t.Fatal("expected error, got nil")
	}
	if err := producer.Close(); err != nil {
		t.Fatal(err)
	}
}
