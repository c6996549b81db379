package repositories

import (
	"context"

	"github.com/payledger/payledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// LedgerRepository is the contract the settlement pipeline and the HTTP layer
// depend on for the two ledger-owned tables (transactions, accounts).
//
// ApplySettlement is the sole mutation point for settlement effects. The
// per-account processing lane in the consumer is advisory; the conditional
// update here is the authoritative safety net against lost updates, including
// races across process instances.
type LedgerRepository interface {
	// CreateTransaction inserts a new pending transaction row.
	CreateTransaction(ctx context.Context, txn domain.Transaction) error

	// FindTransactionByID returns apperrors.ErrNotFound when no row exists.
	FindTransactionByID(ctx context.Context, txnID string) (*domain.Transaction, error)

	// FindAccountByID returns apperrors.ErrNotFound when no row exists.
	FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error)

	// FindAccountByUserID returns the user's settlement account.
	FindAccountByUserID(ctx context.Context, userID string) (*domain.Account, error)

	// CreateAccount inserts a new account row.
	CreateAccount(ctx context.Context, account domain.Account) error

	// ApplySettlement moves the transaction from pending to newStatus and
	// applies delta to the account balance as one atomic unit. The account
	// update is conditional on the balance still being expectedBalance; if a
	// concurrent writer changed it, or the transaction already left pending,
	// nothing is applied and apperrors.ErrConflict is returned. A zero delta
	// touches only the transaction row.
	ApplySettlement(ctx context.Context, txnID string, newStatus domain.TransactionStatus, accountID string, delta decimal.Decimal, expectedBalance decimal.Decimal) error

	// ListTransactionsByAccountID returns transactions newest first, with
	// token-based pagination. The returned token is nil on the last page.
	ListTransactionsByAccountID(ctx context.Context, accountID string, limit int, nextToken *string) ([]domain.Transaction, *string, error)
}
