package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mesafast/mesafast-backend/pkg/config"
)

// Publisher is the transport used by the outbox publisher to hand
// events to the broker.
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
	Close() error
}

// Producer wraps a kafka-go writer configured for the order events topic.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer builds a producer from the Kafka section of the config.
func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.OrdersTopic == "" {
		return nil, fmt.Errorf("kafka orders topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.OrdersTopic,
		// Hash on the message key so all events for one order stay on
		// one partition.
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{writer: writer}, nil
}

// Publish writes a single message keyed by the aggregate id so that
// events for the same order land on the same partition in order.
func (p *Producer) Publish(ctx context.Context, key string, payload []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now().UTC(),
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
