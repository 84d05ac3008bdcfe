package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// DLQTopicPrefix is the prefix for all dead-letter topics.
const DLQTopicPrefix = "courserating.dlq"

// DLQProducer publishes messages that exhausted their handler retries to a
// dead-letter topic so they can be inspected and replayed.
type DLQProducer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewDLQProducer creates a producer dedicated to dead-letter publishing.
// Batching is disabled so a failed message lands in the DLQ immediately.
func NewDLQProducer(brokers []string, logger *slog.Logger) *DLQProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		BatchTimeout: 100 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return &DLQProducer{writer: w, logger: logger}
}

// DLQTopic returns the dead-letter topic for an original topic.
func DLQTopic(originalTopic string) string {
	return fmt.Sprintf("%s.%s", DLQTopicPrefix, originalTopic)
}

// Publish writes the original message to the dead-letter topic, annotated
// with where it came from and why it failed.
func (p *DLQProducer) Publish(ctx context.Context, original kafka.Message, lastErr error, consumerGroup string) error {
	headers := append([]kafka.Header{}, original.Headers...)
	headers = append(headers,
		kafka.Header{Key: "dlq.original_topic", Value: []byte(original.Topic)},
		kafka.Header{Key: "dlq.original_partition", Value: []byte(fmt.Sprintf("%d", original.Partition))},
		kafka.Header{Key: "dlq.original_offset", Value: []byte(fmt.Sprintf("%d", original.Offset))},
		kafka.Header{Key: "dlq.consumer_group", Value: []byte(consumerGroup)},
		kafka.Header{Key: "dlq.error", Value: []byte(lastErr.Error())},
	)

	msg := kafka.Message{
		Topic:   DLQTopic(original.Topic),
		Key:     original.Key,
		Value:   original.Value,
		Headers: headers,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing to dead-letter topic %s: %w", msg.Topic, err)
	}

	p.logger.WarnContext(ctx, "message sent to dead-letter topic",
		slog.String("dlq_topic", msg.Topic),
		slog.String("original_topic", original.Topic),
		slog.Int64("original_offset", original.Offset),
		slog.String("error", lastErr.Error()),
	)
	return nil
}

// Close closes the underlying writer.
func (p *DLQProducer) Close() error {
	return p.writer.Close()
}
