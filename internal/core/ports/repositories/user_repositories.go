package repositories

import (
	"context"
	"encoding/json"

	"github.com/payledger/payledger/internal/core/domain"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	// SaveUser inserts a new user. Returns apperrors.ErrDuplicate when the
	// email is already registered.
	SaveUser(ctx context.Context, user domain.User) error

	// FindUserByID returns apperrors.ErrNotFound when no row exists.
	FindUserByID(ctx context.Context, userID string) (*domain.User, error)

	// FindUserByEmail returns apperrors.ErrNotFound when no row exists.
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// UpdateProfileData replaces the user's profile_data document.
	UpdateProfileData(ctx context.Context, userID string, profileData json.RawMessage) error

	// UpdateTokenVersion stores a freshly rotated token version.
	UpdateTokenVersion(ctx context.Context, userID string, tokenVersion int) error
}
