package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/payledger/payledger/internal/apperrors"
	"github.com/payledger/payledger/internal/core/domain"
	portsrepo "github.com/payledger/payledger/internal/core/ports/repositories"
	"github.com/payledger/payledger/internal/utils"
	"github.com/shopspring/decimal"
)

// UserService contains business logic for user registration, authentication
// and profile management.
type UserService struct {
	userRepo        portsrepo.UserRepository
	ledgerRepo      portsrepo.LedgerRepository
	defaultCurrency string
}

// NewUserService creates a new UserService.
func NewUserService(userRepo portsrepo.UserRepository, ledgerRepo portsrepo.LedgerRepository, defaultCurrency string) *UserService {
	return &UserService{
		userRepo:        userRepo,
		ledgerRepo:      ledgerRepo,
		defaultCurrency: defaultCurrency,
	}
}

// RegisterUser creates a new user and their settlement account. The account
// starts at zero balance in the service's default currency; credits fund it.
func (s *UserService) RegisterUser(ctx context.Context, email, password string, profile domain.Profile) (*domain.User, error) {
	if _, err := s.userRepo.FindUserByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: an account already exists with this email address", apperrors.ErrDuplicate)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	profileData, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile data: %w", err)
	}

	now := time.Now().UTC()
	user := domain.User{
		UserID:       uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		TokenVersion: 0,
		ProfileData:  profileData,
		KYCStatus:    "pending",
		CreatedAt:    now,
	}

	if err := s.userRepo.SaveUser(ctx, user); err != nil {
		return nil, err
	}

	account := domain.Account{
		AccountID:     "acc-" + uuid.NewString(),
		UserID:        user.UserID,
		CurrencyCode:  s.defaultCurrency,
		Balance:       decimal.Zero,
		LockedBalance: decimal.Zero,
		UpdatedAt:     now,
	}
	if err := s.ledgerRepo.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account for user %s: %w", user.UserID, err)
	}

	return &user, nil
}

// Authenticate verifies the credentials and rotates the user's token version
// so that previously issued tokens stop validating. It returns the user with
// the new token version already set.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.userRepo.FindUserByEmail(ctx, email)
	if err != nil {
		// Do not distinguish unknown email from bad password.
		return nil, apperrors.ErrValidation
	}
	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		return nil, apperrors.ErrValidation
	}

	newVersion := user.TokenVersion + 1
	if err := s.userRepo.UpdateTokenVersion(ctx, user.UserID, newVersion); err != nil {
		return nil, fmt.Errorf("failed to rotate token version for user %s: %w", user.UserID, err)
	}
	user.TokenVersion = newVersion
	return user, nil
}

// VerifyTokenVersion checks that a token's version still matches the stored
// one. Used by the auth middleware to reject tokens invalidated by a later
// login.
func (s *UserService) VerifyTokenVersion(ctx context.Context, userID string, tokenVersion int) error {
	user, err := s.userRepo.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.TokenVersion != tokenVersion {
		return fmt.Errorf("%w: token has been invalidated", apperrors.ErrValidation)
	}
	return nil
}

// GetUserByID fetches a user by ID.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	return s.userRepo.FindUserByID(ctx, userID)
}

// UpdateProfile merges the given names into the user's profile document.
// Nil fields are left untouched.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, firstName, lastName *string) (*domain.User, error) {
	user, err := s.userRepo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var profile domain.Profile
	if len(user.ProfileData) > 0 {
		if err := json.Unmarshal(user.ProfileData, &profile); err != nil {
			return nil, fmt.Errorf("failed to decode profile data for user %s: %w", userID, err)
		}
	}
	if firstName != nil {
		profile.FirstName = *firstName
	}
	if lastName != nil {
		profile.LastName = *lastName
	}

	profileData, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile data: %w", err)
	}
	if err := s.userRepo.UpdateProfileData(ctx, userID, profileData); err != nil {
		return nil, err
	}

	user.ProfileData = profileData
	return user, nil
}
