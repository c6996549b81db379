package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/payledger/payledger/internal/apperrors"
	portsrepo "github.com/payledger/payledger/internal/core/ports/repositories"
	"github.com/payledger/payledger/internal/core/services"
	"github.com/payledger/payledger/pkg/backoff"
)

// Settler drives one transaction event to a durable outcome: load the
// transaction and account, decide, apply atomically. It owns the retry policy
// around the ledger store; the decision itself lives in services.Decide.
type Settler struct {
	repo         portsrepo.LedgerRepository
	logger       *slog.Logger
	maxAttempts  int
	backoffBase  time.Duration
	storeTimeout time.Duration
}

// NewSettler creates a Settler.
func NewSettler(repo portsrepo.LedgerRepository, logger *slog.Logger, maxAttempts int, backoffBase, storeTimeout time.Duration) *Settler {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Settler{
		repo:         repo,
		logger:       logger,
		maxAttempts:  maxAttempts,
		backoffBase:  backoffBase,
		storeTimeout: storeTimeout,
	}
}

// Settle processes one event. It returns nil when the event is finished:
// settled to a terminal status, recognized as a duplicate, or unprocessable
// in a way that retrying cannot fix (unknown transaction or account). It
// returns an error only when the retry budget is exhausted or the context
// ends; the caller should dead-letter the message in the former case.
//
// Conflicts from the store's conditional update cause a reload and a fresh
// decision; because the decision is deterministic over the reloaded state,
// repeating it is always safe.
func (s *Settler) Settle(ctx context.Context, ev TransactionEvent) error {
	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoff.ExponentialWithJitter(s.backoffBase, attempt-1)
			if err := backoff.SleepWithContext(ctx, delay); err != nil {
				return err
			}
		}

		err := s.settleOnce(ctx, ev)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, apperrors.ErrConflict) {
			s.logger.InfoContext(ctx, "settlement conflict, reloading",
				slog.String("txn_id", ev.TxnID), slog.Int("attempt", attempt+1))
		} else {
			s.logger.WarnContext(ctx, "transient settlement failure",
				slog.String("txn_id", ev.TxnID), slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()))
		}
		lastErr = err
	}
	return fmt.Errorf("settlement retries exhausted for transaction %s: %w", ev.TxnID, lastErr)
}

func (s *Settler) settleOnce(ctx context.Context, ev TransactionEvent) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	txn, err := s.repo.FindTransactionByID(ctx, ev.TxnID)
	if errors.Is(err, apperrors.ErrNotFound) {
		// Producer/store inconsistency; retrying cannot conjure the row.
		s.logger.WarnContext(ctx, "transaction not found in ledger, dropping event",
			slog.String("txn_id", ev.TxnID))
		return nil
	}
	if err != nil {
		return err
	}

	if txn.Status.IsTerminal() {
		// Duplicate delivery; the earlier settlement already applied.
		s.logger.DebugContext(ctx, "transaction already terminal, skipping",
			slog.String("txn_id", txn.TxnID), slog.String("status", string(txn.Status)))
		return nil
	}

	// The stored row is authoritative; the event's account_id and amount are
	// only routing hints.
	account, err := s.repo.FindAccountByID(ctx, txn.AccountID)
	if errors.Is(err, apperrors.ErrNotFound) {
		s.logger.WarnContext(ctx, "account not found in ledger, dropping event",
			slog.String("txn_id", txn.TxnID), slog.String("account_id", txn.AccountID))
		return nil
	}
	if err != nil {
		return err
	}

	decision := services.Decide(*txn, *account)
	err = s.repo.ApplySettlement(ctx, txn.TxnID, decision.Status, account.AccountID, decision.Delta, account.Balance)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "transaction settled",
		slog.String("txn_id", txn.TxnID),
		slog.String("account_id", account.AccountID),
		slog.String("status", string(decision.Status)),
		slog.String("delta", decision.Delta.String()))
	return nil
}
