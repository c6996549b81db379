package stream

import (
	"encoding/json"
	"fmt"

	"github.com/payledger/payledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// TransactionEvent is the broker payload contract for settlement events.
// Amount is decoded through decimal to keep exact fixed-point semantics;
// values outside representable precision are a decode failure.
type TransactionEvent struct {
	TxnID     string          `json:"txn_id"`
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	TxnType   string          `json:"txn_type"`
}

// DecodeTransactionEvent parses and validates a broker payload. Any error is
// non-retriable: the message is malformed and must be dead-lettered, not
// redelivered.
func DecodeTransactionEvent(payload []byte) (TransactionEvent, error) {
	var ev TransactionEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return TransactionEvent{}, fmt.Errorf("malformed transaction event: %w", err)
	}
	if ev.TxnID == "" {
		return TransactionEvent{}, fmt.Errorf("malformed transaction event: txn_id is required")
	}
	if ev.AccountID == "" {
		return TransactionEvent{}, fmt.Errorf("malformed transaction event: account_id is required")
	}
	if ev.Amount.IsNegative() {
		return TransactionEvent{}, fmt.Errorf("malformed transaction event: amount must be non-negative")
	}
	if !domain.ValidTransactionType(ev.TxnType) {
		return TransactionEvent{}, fmt.Errorf("malformed transaction event: unknown txn_type %q", ev.TxnType)
	}
	return ev, nil
}
