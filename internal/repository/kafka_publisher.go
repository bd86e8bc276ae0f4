package repository

import (
	"context"
	"fmt"

	"SignalPilot/internal/domain/models"
	"SignalPilot/internal/domain/repository"
	pkgkafka "SignalPilot/pkg/kafka"
)

// MessageProducer is the part of *kafka.Producer the repositories use.
type MessageProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

var _ MessageProducer = (*pkgkafka.Producer)(nil)

// KafkaPublisher implements SignalPublisher for Kafka. Signals are keyed by
// asset so one asset's outcomes stay ordered within a partition.
type KafkaPublisher struct {
	producer MessageProducer
	topic    string
}

var _ repository.SignalPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer MessageProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, s *models.Signal) error {
	if s == nil {
		return nil
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(s.Asset), s); err != nil {
		return fmt.Errorf("publish signal %s: %w", s.Key(), err)
	}
	return nil
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, signals []*models.Signal) error {
	msgs := make([]pkgkafka.Message, 0, len(signals))
	for _, s := range signals {
		if s == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{
			Key:     []byte(s.Asset),
			Value:   s,
			Headers: map[string]string{"result": string(s.Result)},
		})
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := p.producer.PublishBatch(ctx, p.topic, msgs); err != nil {
		return fmt.Errorf("publish %d signals: %w", len(msgs), err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
