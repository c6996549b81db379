package services

import (
	"github.com/payledger/payledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// Decision is the outcome of settling one pending transaction: the terminal
// status it should move to and the delta to apply to the account balance.
type Decision struct {
	Status domain.TransactionStatus
	Delta  decimal.Decimal
}

// Decide resolves a pending transaction against the current account state.
//
// It is deterministic and side-effect free: it takes in-memory snapshots and
// returns a decision the caller must apply atomically. That determinism is
// what makes redelivery and conflict retries safe. Business outcomes
// (insufficient funds, currency mismatch) are decisions, not errors.
//
// Callers must ensure txn.Status == pending and
// txn.AccountID == account.AccountID before calling.
func Decide(txn domain.Transaction, account domain.Account) Decision {
	if txn.CurrencyCode != account.CurrencyCode {
		// A cross-currency delta must never be applied silently.
		return Decision{Status: domain.StatusFailed, Delta: decimal.Zero}
	}

	switch txn.TxnType {
	case domain.Purchase:
		if account.Balance.LessThan(txn.Amount) {
			return Decision{Status: domain.StatusFailed, Delta: decimal.Zero}
		}
		return Decision{Status: domain.StatusSuccess, Delta: txn.Amount.Neg()}
	case domain.Credit:
		// Credits always settle; no funds check.
		return Decision{Status: domain.StatusSuccess, Delta: txn.Amount}
	default:
		return Decision{Status: domain.StatusFailed, Delta: decimal.Zero}
	}
}
