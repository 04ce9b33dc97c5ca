package kafka

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"

	"github.com/example/ec-inventory-engine/internal/events"
)

// EnvelopeHandler processes one decoded event envelope.
type EnvelopeHandler func(ctx context.Context, env events.Envelope) error

// Consumer reads event envelopes from a Kafka topic as part of a consumer
// group.
type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader}
}

// Consume reads messages until the context is cancelled. Handler errors are
// logged and the offset advances; malformed payloads are skipped.
func (c *Consumer) Consume(ctx context.Context, handler EnvelopeHandler) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[Kafka] Error reading message: %v", err)
			continue
		}

		var env events.Envelope
		if err := json.Unmarshal(msg.Value, &env); err != nil {
			log.Printf("[Kafka] Skipping malformed message at offset %d: %v", msg.Offset, err)
			continue
		}

		if err := handler(ctx, env); err != nil {
			log.Printf("[Kafka] Error handling %s event: %v", env.EventType, err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
