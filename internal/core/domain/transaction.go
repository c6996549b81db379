package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType indicates whether a transaction adds funds to or removes
// funds from an account.
type TransactionType string

const (
	Credit   TransactionType = "credit"
	Purchase TransactionType = "purchase"
)

// ValidTransactionType reports whether s is a known transaction type.
func ValidTransactionType(s string) bool {
	switch TransactionType(s) {
	case Credit, Purchase:
		return true
	}
	return false
}

// TransactionStatus is the settlement state of a transaction. Transitions are
// monotonic: pending -> success or pending -> failed; nothing leaves a
// terminal state.
type TransactionStatus string

const (
	StatusPending TransactionStatus = "pending"
	StatusSuccess TransactionStatus = "success"
	StatusFailed  TransactionStatus = "failed"
)

// IsTerminal reports whether the status admits no further transition.
func (s TransactionStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Transaction is a single ledger entry against one account.
type Transaction struct {
	TxnID        string            `json:"txnID"`        // Primary Key, immutable once created
	AccountID    string            `json:"accountID"`    // FK -> Account.accountID (Not Null)
	Amount       decimal.Decimal   `json:"amount"`       // Non-negative; precise decimal type
	CurrencyCode string            `json:"currencyCode"` // Must match the account's currency to settle
	TxnType      TransactionType   `json:"txnType"`      // credit or purchase
	Status       TransactionStatus `json:"status"`       // pending, success or failed
	CreatedAt    time.Time         `json:"createdAt"`    // Set at creation, never mutated
}
