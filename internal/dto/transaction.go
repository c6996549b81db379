package dto

import (
	"time"

	"github.com/payledger/payledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CreateTransactionRequest carries the payload for initiating a transaction.
// The account and currency come from the authenticated caller, not the body.
type CreateTransactionRequest struct {
	Amount  decimal.Decimal `json:"amount" binding:"required"`
	TxnType string          `json:"txn_type" binding:"required"`
}

// TransactionResponse is the public view of a transaction.
type TransactionResponse struct {
	TxnID        string          `json:"txn_id"`
	AccountID    string          `json:"account_id"`
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currency_code"`
	TxnType      string          `json:"txn_type"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ListTransactionsResponse pages through a caller's transactions, newest
// first. NextToken is absent on the last page.
type ListTransactionsResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	NextToken    *string               `json:"next_token,omitempty"`
}

// ToTransactionResponse maps a domain transaction to its response DTO.
func ToTransactionResponse(txn *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		TxnID:        txn.TxnID,
		AccountID:    txn.AccountID,
		Amount:       txn.Amount,
		CurrencyCode: txn.CurrencyCode,
		TxnType:      string(txn.TxnType),
		Status:       string(txn.Status),
		CreatedAt:    txn.CreatedAt,
	}
}

// ToListTransactionsResponse maps a page of transactions and its continuation
// token.
func ToListTransactionsResponse(txns []domain.Transaction, nextToken *string) ListTransactionsResponse {
	out := make([]TransactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, ToTransactionResponse(&txns[i]))
	}
	return ListTransactionsResponse{Transactions: out, NextToken: nextToken}
}
