package kafka

import (
	"context"
	"strings"

	"github.com/IBM/sarama"

	"palmshell-dispatch/internal/service/notify"
)

var newSyncProducer = sarama.NewSyncProducer

// Producer publishes encoded events to one topic.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducer creates a synchronous producer. It returns nil when Kafka is not configured.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 || strings.TrimSpace(topic) == "" {
		return nil, nil
	}

	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true

	p, err := newSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &Producer{producer: p, topic: topic}, nil
}

var _ notify.EventProducer = (*Producer)(nil)

// Publish sends value under key and waits for the broker ack.
func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	})
	return err
}

// Close flushes and closes the producer.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.producer.Close()
}
