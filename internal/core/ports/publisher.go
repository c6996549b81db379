package ports

import (
	"context"

	"github.com/payledger/payledger/internal/core/domain"
)

// TransactionPublisher emits a transaction event for asynchronous settlement.
// The broker-facing implementation lives in internal/stream.
type TransactionPublisher interface {
	PublishTransaction(ctx context.Context, txn domain.Transaction) error
}
