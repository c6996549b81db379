package stream

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// DeadLetterer surfaces messages that cannot be processed so they stop
// blocking partition progress. Implementations must never make processing
// outcomes depend on their own success.
type DeadLetterer interface {
	DeadLetter(ctx context.Context, msg kafka.Message, reason string) error
}

// DLQProducer publishes unprocessable messages to a dead-letter topic,
// preserving the original payload and recording where it came from and why it
// was rejected.
type DLQProducer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewDLQProducer creates a DLQProducer for the given brokers and dead-letter
// topic.
func NewDLQProducer(brokers []string, topic string, logger *slog.Logger) *DLQProducer {
	return &DLQProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		logger: logger,
	}
}

// Ensure DLQProducer implements DeadLetterer
var _ DeadLetterer = (*DLQProducer)(nil)

// DeadLetter writes the original message to the dead-letter topic.
func (d *DLQProducer) DeadLetter(ctx context.Context, msg kafka.Message, reason string) error {
	err := d.writer.WriteMessages(ctx, kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: []kafka.Header{
			{Key: "x-dead-letter-reason", Value: []byte(reason)},
			{Key: "x-original-topic", Value: []byte(msg.Topic)},
		},
	})
	if err != nil {
		return err
	}

	d.logger.WarnContext(ctx, "message dead-lettered",
		slog.String("reason", reason),
		slog.String("topic", msg.Topic),
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset))
	return nil
}

// Close flushes and closes the underlying writer.
func (d *DLQProducer) Close() error {
	return d.writer.Close()
}
