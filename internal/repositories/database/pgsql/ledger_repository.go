package pgsql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/payledger/payledger/internal/apperrors"
	"github.com/payledger/payledger/internal/core/domain"
	portsrepo "github.com/payledger/payledger/internal/core/ports/repositories"
	"github.com/payledger/payledger/internal/utils/pagination"
	"github.com/shopspring/decimal"
)

const defaultListLimit = 20

// PgxLedgerRepository persists the two ledger-owned tables: transactions and
// accounts.
type PgxLedgerRepository struct {
	BaseRepository
}

// NewLedgerRepository creates a new repository over the ledger tables.
func NewLedgerRepository(pool *pgxpool.Pool) *PgxLedgerRepository {
	return &PgxLedgerRepository{BaseRepository{Pool: pool}}
}

// Ensure PgxLedgerRepository implements portsrepo.LedgerRepository
var _ portsrepo.LedgerRepository = (*PgxLedgerRepository)(nil)

// CreateTransaction inserts a new pending transaction row.
func (r *PgxLedgerRepository) CreateTransaction(ctx context.Context, txn domain.Transaction) error {
	query := `
		INSERT INTO transactions (txn_id, account_id, amount, currency_code, txn_type, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err := r.Pool.Exec(ctx, query,
		txn.TxnID,
		txn.AccountID,
		txn.Amount,
		txn.CurrencyCode,
		string(txn.TxnType),
		string(txn.Status),
		txn.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique violation
			return fmt.Errorf("%w: transaction %s already exists", apperrors.ErrDuplicate, txn.TxnID)
		}
		return fmt.Errorf("failed to save transaction %s: %w", txn.TxnID, err)
	}
	return nil
}

// FindTransactionByID retrieves a transaction by its ID.
func (r *PgxLedgerRepository) FindTransactionByID(ctx context.Context, txnID string) (*domain.Transaction, error) {
	query := `
		SELECT txn_id, account_id, amount, currency_code, txn_type, status, created_at
		FROM transactions
		WHERE txn_id = $1;
	`
	var txn domain.Transaction
	err := r.Pool.QueryRow(ctx, query, txnID).Scan(
		&txn.TxnID,
		&txn.AccountID,
		&txn.Amount,
		&txn.CurrencyCode,
		&txn.TxnType,
		&txn.Status,
		&txn.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find transaction %s: %w", txnID, err)
	}
	return &txn, nil
}

// CreateAccount inserts a new account row.
func (r *PgxLedgerRepository) CreateAccount(ctx context.Context, account domain.Account) error {
	query := `
		INSERT INTO accounts (account_id, user_id, currency_code, balance, locked_balance, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := r.Pool.Exec(ctx, query,
		account.AccountID,
		account.UserID,
		account.CurrencyCode,
		account.Balance,
		account.LockedBalance,
		account.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique violation
			return fmt.Errorf("%w: account %s already exists", apperrors.ErrDuplicate, account.AccountID)
		}
		return fmt.Errorf("failed to save account %s: %w", account.AccountID, err)
	}
	return nil
}

// FindAccountByID retrieves an account by its ID.
func (r *PgxLedgerRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	return r.findAccount(ctx, "account_id", accountID)
}

// FindAccountByUserID retrieves the account owned by a user.
func (r *PgxLedgerRepository) FindAccountByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	return r.findAccount(ctx, "user_id", userID)
}

func (r *PgxLedgerRepository) findAccount(ctx context.Context, column, value string) (*domain.Account, error) {
	query := fmt.Sprintf(`
		SELECT account_id, user_id, currency_code, balance, locked_balance, updated_at
		FROM accounts
		WHERE %s = $1;
	`, column)

	var acc domain.Account
	err := r.Pool.QueryRow(ctx, query, value).Scan(
		&acc.AccountID,
		&acc.UserID,
		&acc.CurrencyCode,
		&acc.Balance,
		&acc.LockedBalance,
		&acc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find account by %s %s: %w", column, value, err)
	}
	return &acc, nil
}

// ApplySettlement updates the transaction status and the account balance as
// one database transaction. Both updates are conditional: the transaction row
// must still be pending and the balance must still be what the caller read.
// Either condition failing rolls everything back and returns ErrConflict so
// the consumer can reload and re-decide.
func (r *PgxLedgerRepository) ApplySettlement(ctx context.Context, txnID string, newStatus domain.TransactionStatus, accountID string, delta decimal.Decimal, expectedBalance decimal.Decimal) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if rbErr := r.Rollback(ctx, tx); rbErr != nil {
			slog.WarnContext(ctx, "settlement rollback failed", slog.String("txn_id", txnID), slog.String("error", rbErr.Error()))
		}
	}()

	ct, err := tx.Exec(ctx, `
		UPDATE transactions
		SET status = $2
		WHERE txn_id = $1 AND status = 'pending';
	`, txnID, string(newStatus))
	if err != nil {
		return fmt.Errorf("failed to update status of transaction %s: %w", txnID, err)
	}
	if ct.RowsAffected() == 0 {
		// Already terminal (duplicate delivery racing us) or deleted.
		return fmt.Errorf("%w: transaction %s is no longer pending", apperrors.ErrConflict, txnID)
	}

	if !delta.IsZero() {
		ct, err = tx.Exec(ctx, `
			UPDATE accounts
			SET balance = balance + $2, updated_at = $3
			WHERE account_id = $1 AND balance = $4;
		`, accountID, delta, time.Now().UTC(), expectedBalance)
		if err != nil {
			return fmt.Errorf("failed to update balance of account %s: %w", accountID, err)
		}
		if ct.RowsAffected() == 0 {
			// A concurrent writer moved the balance since it was read.
			return fmt.Errorf("%w: balance of account %s changed since read", apperrors.ErrConflict, accountID)
		}
	}

	return r.Commit(ctx, tx)
}

// ListTransactionsByAccountID returns transactions newest first with
// token-based pagination.
func (r *PgxLedgerRepository) ListTransactionsByAccountID(ctx context.Context, accountID string, limit int, nextToken *string) ([]domain.Transaction, *string, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT txn_id, account_id, amount, currency_code, txn_type, status, created_at
		FROM transactions
		WHERE account_id = $1
	`
	args := []any{accountID}

	if nextToken != nil && *nextToken != "" {
		createdAt, txnID, err := pagination.DecodeToken(*nextToken)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
		}
		query += ` AND (created_at, txn_id) < ($2, $3)`
		args = append(args, createdAt, txnID)
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC, txn_id DESC LIMIT %d;`, limit+1)

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list transactions for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var txn domain.Transaction
		if err := rows.Scan(
			&txn.TxnID,
			&txn.AccountID,
			&txn.Amount,
			&txn.CurrencyCode,
			&txn.TxnType,
			&txn.Status,
			&txn.CreatedAt,
		); err != nil {
			return nil, nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}

	var newToken *string
	if len(txns) > limit {
		txns = txns[:limit]
		last := txns[len(txns)-1]
		token := pagination.EncodeToken(last.CreatedAt, last.TxnID)
		newToken = &token
	}

	return txns, newToken, nil
}
