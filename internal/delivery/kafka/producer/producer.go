package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"

	kafka "github.com/proticket/marketplace-core/internal/delivery/kafka"
	"github.com/proticket/marketplace-core/pkg/logger"
)

type Producer interface {
	PublishOrderConfirmed(ctx context.Context, event kafka.OrderConfirmedEvent) error
	PublishOrderFailed(ctx context.Context, event kafka.OrderFailedEvent) error
	PublishReconciliationAlert(ctx context.Context, event kafka.ReconciliationAlertEvent) error
	Close() error
}

type implProducer struct {
	l    logger.Logger
	prod sarama.SyncProducer
}

func NewProducer(prod sarama.SyncProducer, l logger.Logger) Producer {
	return &implProducer{
		l:    l,
		prod: prod,
	}
}

func (p *implProducer) PublishOrderConfirmed(ctx context.Context, event kafka.OrderConfirmedEvent) error {
	event.Timestamp = time.Now()
	val, err := json.Marshal(event)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.PublishOrderConfirmed: %v", err)
		return err
	}

	return p.send(kafka.TopicOrderConfirmed, event.EventID, val)
}

func (p *implProducer) PublishOrderFailed(ctx context.Context, event kafka.OrderFailedEvent) error {
	event.Timestamp = time.Now()
	val, err := json.Marshal(event)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.PublishOrderFailed: %v", err)
		return err
	}

	return p.send(kafka.TopicOrderFailed, event.EventID, val)
}

func (p *implProducer) PublishReconciliationAlert(ctx context.Context, event kafka.ReconciliationAlertEvent) error {
	event.Timestamp = time.Now()
	val, err := json.Marshal(event)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.PublishReconciliationAlert: %v", err)
		return err
	}

	return p.send(kafka.TopicReconciliationAlert, event.EventID, val)
}

func (p *implProducer) send(topic, key string, val []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key), // Partition by event_id for ordering
		Value: sarama.ByteEncoder(val),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("timestamp"),
				Value: []byte(time.Now().Format(time.RFC3339)),
			},
		},
	}

	_, _, err := p.prod.SendMessage(msg)
	return err
}

func (p *implProducer) Close() error {
	if p.prod == nil {
		return nil
	}
	return p.prod.Close()
}

// noopProducer stands in when Kafka is disabled.
type noopProducer struct{}

func NewNoopProducer() Producer {
	return noopProducer{}
}

func (noopProducer) PublishOrderConfirmed(context.Context, kafka.OrderConfirmedEvent) error {
	return nil
}

func (noopProducer) PublishOrderFailed(context.Context, kafka.OrderFailedEvent) error {
	return nil
}

func (noopProducer) PublishReconciliationAlert(context.Context, kafka.ReconciliationAlertEvent) error {
	return nil
}

func (noopProducer) Close() error { return nil }
