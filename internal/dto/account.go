package dto

import (
	"time"

	"github.com/payledger/payledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// BalanceResponse is the public view of a settlement account.
type BalanceResponse struct {
	AccountID    string          `json:"account_id"`
	Balance      decimal.Decimal `json:"balance"`
	CurrencyCode string          `json:"currency_code"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ToBalanceResponse maps a domain account to its response DTO.
func ToBalanceResponse(account *domain.Account) BalanceResponse {
	return BalanceResponse{
		AccountID:    account.AccountID,
		Balance:      account.Balance,
		CurrencyCode: account.CurrencyCode,
		UpdatedAt:    account.UpdatedAt,
	}
}
