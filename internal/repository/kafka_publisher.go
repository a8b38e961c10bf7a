package repository

import (
	"context"

	"MealSignal/internal/domain/models"
	pkgkafka "MealSignal/pkg/kafka"
)

// KafkaEventPublisher writes domain events to one topic, keyed by Event.Key.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, ev models.Event) error {
	var key []byte
	if ev.Key != "" {
		key = []byte(ev.Key)
	}
	return p.producer.Publish(ctx, p.topic, key, ev)
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopPublisher drops every event. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.Event) error { return nil }
func (NopPublisher) Close() error                                { return nil }
