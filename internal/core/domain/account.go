package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account represents a user's settlement account within the core domain.
// This is the primary representation used by services.
//
// The account row is the unit of serialization: concurrent settlements
// against the same account must not interleave their read-modify-write of
// Balance. The repository enforces this with a conditional update.
type Account struct {
	AccountID     string          `json:"accountID"`     // Primary Key
	UserID        string          `json:"userID"`        // FK -> users.user_id (Not Null)
	CurrencyCode  string          `json:"currencyCode"`  // Account's settlement currency
	Balance       decimal.Decimal `json:"balance"`       // Invariant: >= 0 after every committed settlement
	LockedBalance decimal.Decimal `json:"lockedBalance"` // Held but unsettled funds; reserved for holds
	UpdatedAt     time.Time       `json:"updatedAt"`     // Timestamp of last balance mutation
}
