package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/payledger/payledger/internal/apperrors"
	"github.com/payledger/payledger/internal/core/domain"
	"github.com/payledger/payledger/internal/core/ports"
	portsrepo "github.com/payledger/payledger/internal/core/ports/repositories"
	"github.com/shopspring/decimal"
)

// TransactionService initiates transactions and exposes the read-only query
// surface. Settlement itself happens asynchronously in the consumer; this
// service only writes the pending row and hands the event to the broker.
type TransactionService struct {
	ledgerRepo portsrepo.LedgerRepository
	publisher  ports.TransactionPublisher
	logger     *slog.Logger
}

// NewTransactionService creates a new TransactionService.
func NewTransactionService(ledgerRepo portsrepo.LedgerRepository, publisher ports.TransactionPublisher, logger *slog.Logger) *TransactionService {
	return &TransactionService{
		ledgerRepo: ledgerRepo,
		publisher:  publisher,
		logger:     logger,
	}
}

// InitiateTransaction records a pending transaction against the caller's
// account and publishes the settlement event. The transaction currency is the
// account's currency; cross-currency events can still arrive from other
// producers and are rejected by the settlement engine.
func (s *TransactionService) InitiateTransaction(ctx context.Context, userID string, amount decimal.Decimal, txnType domain.TransactionType) (*domain.Transaction, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount must be non-negative", apperrors.ErrValidation)
	}
	if !domain.ValidTransactionType(string(txnType)) {
		return nil, fmt.Errorf("%w: txn_type must be either 'credit' or 'purchase'", apperrors.ErrValidation)
	}

	account, err := s.ledgerRepo.FindAccountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	txn := domain.Transaction{
		TxnID:        "tx-" + uuid.NewString(),
		AccountID:    account.AccountID,
		Amount:       amount,
		CurrencyCode: account.CurrencyCode,
		TxnType:      txnType,
		Status:       domain.StatusPending,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.ledgerRepo.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	if err := s.publisher.PublishTransaction(ctx, txn); err != nil {
		// The pending row stays behind; a sweeper or manual replay can
		// re-publish it. Surface the failure to the caller.
		s.logger.ErrorContext(ctx, "failed to publish transaction event",
			slog.String("txn_id", txn.TxnID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to publish transaction %s: %w", txn.TxnID, err)
	}

	return &txn, nil
}

// GetTransaction returns a transaction if it belongs to the caller's account.
func (s *TransactionService) GetTransaction(ctx context.Context, userID, txnID string) (*domain.Transaction, error) {
	account, err := s.ledgerRepo.FindAccountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	txn, err := s.ledgerRepo.FindTransactionByID(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if txn.AccountID != account.AccountID {
		// Do not leak other users' transaction IDs.
		return nil, apperrors.ErrNotFound
	}
	return txn, nil
}

// ListTransactions returns the caller's transactions, newest first.
func (s *TransactionService) ListTransactions(ctx context.Context, userID string, limit int, nextToken *string) ([]domain.Transaction, *string, error) {
	account, err := s.ledgerRepo.FindAccountByUserID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return s.ledgerRepo.ListTransactionsByAccountID(ctx, account.AccountID, limit, nextToken)
}
