package repository

import (
	"context"

	"UrbanPull/internal/domain/models"
	"UrbanPull/internal/domain/repository"
	pkgkafka "UrbanPull/pkg/kafka"
)

// KafkaPublisher implements Publisher for Kafka. Messages are keyed by
// series so one series stays on one partition.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, s *models.IndicatorSnapshot) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.SeriesKey()), s)
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, snaps []*models.IndicatorSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(snaps))
	for _, s := range snaps {
		if s == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{Key: []byte(s.SeriesKey()), Value: s})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
