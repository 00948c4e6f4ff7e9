package repository

import (
	"context"
	"time"

	"CoveredCall/internal/domain/models"
	domrepo "CoveredCall/internal/domain/repository"
	pkgkafka "CoveredCall/pkg/kafka"
)

// KafkaPublisher implements EventPublisher for Kafka.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishEvent(ctx context.Context, eventType, ticker string, payload interface{}) error {
	return p.producer.Write(ctx, p.topic, pkgkafka.Message{
		Key:       ticker,
		EventType: eventType,
		Value:     models.Event{Type: eventType, Ticker: ticker, OccurredAt: time.Now().UTC(), Payload: payload},
	})
}

// PublishMessage lets the log collector ship error digests on the same topic.
func (p *KafkaPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.PublishEvent(ctx, topic, "", payload)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NoopPublisher drops events; used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishEvent(context.Context, string, string, interface{}) error { return nil }
func (NoopPublisher) PublishMessage(context.Context, string, interface{}) error { return nil }
func (NoopPublisher) Close() error { return nil }

var (
	_ domrepo.EventPublisher = (*KafkaPublisher)(nil)
	_ domrepo.EventPublisher = NoopPublisher{}
)
