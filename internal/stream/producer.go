package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/payledger/payledger/internal/core/domain"
	"github.com/payledger/payledger/internal/core/ports"
	"github.com/segmentio/kafka-go"
)

// Producer publishes transaction events to the settlement topic. Messages are
// keyed by account ID so that all events for one account land on the same
// partition, which keeps consumer-group ordering consistent with the
// per-account lanes.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewProducer creates a Producer for the given brokers and topic.
func NewProducer(brokers []string, topic string, logger *slog.Logger) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		logger: logger,
	}
}

// Ensure Producer implements ports.TransactionPublisher
var _ ports.TransactionPublisher = (*Producer)(nil)

// PublishTransaction emits the settlement event for a freshly created pending
// transaction.
func (p *Producer) PublishTransaction(ctx context.Context, txn domain.Transaction) error {
	ev := TransactionEvent{
		TxnID:     txn.TxnID,
		AccountID: txn.AccountID,
		Amount:    txn.Amount,
		TxnType:   string(txn.TxnType),
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode transaction event %s: %w", txn.TxnID, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(txn.AccountID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to write transaction event %s: %w", txn.TxnID, err)
	}

	p.logger.DebugContext(ctx, "transaction event published",
		slog.String("txn_id", txn.TxnID), slog.String("account_id", txn.AccountID))
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
