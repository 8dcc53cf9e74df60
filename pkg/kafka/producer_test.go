package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/mesafast/mesafast-backend/pkg/config"
)

func TestNewProducerValidation(t *testing.T) {
	if _, err := NewProducer(config.KafkaConfig{OrdersTopic: "orders"}); err == nil {
		t.Fatal("expected error without brokers")
	}
	if _, err := NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}}); err == nil {
		t.Fatal("expected error without topic")
	}
}

func TestNewProducerPartitionsByKey(t *testing.T) {
	p, err := NewProducer(config.KafkaConfig{
		Brokers:     []string{"localhost:9092"},
		OrdersTopic: "mesafast.order-events",
	})
	if err != nil {
		t.Fatalf("expected producer got %v", err)
	}

	// Per-order ordering depends on the balancer hashing the message key.
	if _, ok := p.writer.Balancer.(*kafka.Hash); !ok {
		t.Fatalf("expected key-hashing balancer got %T", p.writer.Balancer)
	}
	if p.writer.Topic != "mesafast.order-events" {
		t.Fatalf("unexpected topic %q", p.writer.Topic)
	}
}
