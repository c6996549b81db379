package services

import (
	"context"

	"github.com/payledger/payledger/internal/core/domain"
	portsrepo "github.com/payledger/payledger/internal/core/ports/repositories"
)

// AccountService exposes read operations over accounts. All balance mutation
// goes through the settlement pipeline, never through this service.
type AccountService struct {
	ledgerRepo portsrepo.LedgerRepository
}

// NewAccountService creates a new AccountService.
func NewAccountService(ledgerRepo portsrepo.LedgerRepository) *AccountService {
	return &AccountService{ledgerRepo: ledgerRepo}
}

// GetAccountForUser returns the settlement account owned by userID.
func (s *AccountService) GetAccountForUser(ctx context.Context, userID string) (*domain.Account, error) {
	return s.ledgerRepo.FindAccountByUserID(ctx, userID)
}
