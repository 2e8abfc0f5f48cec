package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/billvault/checkout-service/internal/domain"
	"github.com/segmentio/kafka-go"
)

type DefaultKafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

var _ domain.PublisherPort = (*DefaultKafkaPublisher)(nil)

func NewDefaultKafkaPublisher(brokers []string, topic string) *DefaultKafkaPublisher {
	return &DefaultKafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.LeastBytes{},
		},
		topic: topic,
	}
}

func (k *DefaultKafkaPublisher) Publish(topic string, msgs ...domain.Message) error {
	var km []kafka.Message
	for _, m := range msgs {
		km = append(km, kafka.Message{
			Key:   m.Key,
			Value: m.Value,
			Time:  time.Now(),
			Topic: topic,
		})
	}

	return k.writer.WriteMessages(context.Background(), km...)
}

func (k *DefaultKafkaPublisher) PublishTransaction(event TransactionEvent) error {
	v, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return k.Publish(k.topic, domain.Message{Key: []byte(event.UserID), Value: v})
}

func (k *DefaultKafkaPublisher) PublishReconciliationAlert(alert ReconciliationAlert) error {
	v, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	return k.Publish(k.topic+"-alerts", domain.Message{Key: []byte(alert.TransactionID), Value: v})
}
