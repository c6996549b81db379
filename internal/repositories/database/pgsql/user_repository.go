package pgsql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/payledger/payledger/internal/apperrors"
	"github.com/payledger/payledger/internal/core/domain"
	portsrepo "github.com/payledger/payledger/internal/core/ports/repositories"
)

// PgxUserRepository persists users.
type PgxUserRepository struct {
	BaseRepository
}

// NewUserRepository creates a new repository for user data.
func NewUserRepository(pool *pgxpool.Pool) *PgxUserRepository {
	return &PgxUserRepository{BaseRepository{Pool: pool}}
}

// Ensure PgxUserRepository implements portsrepo.UserRepository
var _ portsrepo.UserRepository = (*PgxUserRepository)(nil)

// SaveUser inserts a new user.
func (r *PgxUserRepository) SaveUser(ctx context.Context, user domain.User) error {
	query := `
		INSERT INTO users (user_id, email, password_hash, token_version, profile_data, kyc_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err := r.Pool.Exec(ctx, query,
		user.UserID,
		user.Email,
		user.PasswordHash,
		user.TokenVersion,
		user.ProfileData,
		user.KYCStatus,
		user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique violation
			return fmt.Errorf("%w: email already registered", apperrors.ErrDuplicate)
		}
		return fmt.Errorf("failed to save user %s: %w", user.UserID, err)
	}
	return nil
}

// FindUserByID retrieves a user by ID.
func (r *PgxUserRepository) FindUserByID(ctx context.Context, userID string) (*domain.User, error) {
	return r.findUser(ctx, "user_id", userID)
}

// FindUserByEmail retrieves a user by email.
func (r *PgxUserRepository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findUser(ctx, "email", email)
}

func (r *PgxUserRepository) findUser(ctx context.Context, column, value string) (*domain.User, error) {
	query := fmt.Sprintf(`
		SELECT user_id, email, password_hash, token_version, profile_data, kyc_status, created_at
		FROM users
		WHERE %s = $1;
	`, column)

	var user domain.User
	var profileData []byte
	err := r.Pool.QueryRow(ctx, query, value).Scan(
		&user.UserID,
		&user.Email,
		&user.PasswordHash,
		&user.TokenVersion,
		&profileData,
		&user.KYCStatus,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user by %s: %w", column, err)
	}
	user.ProfileData = json.RawMessage(profileData)
	return &user, nil
}

// UpdateProfileData replaces the user's profile_data document.
func (r *PgxUserRepository) UpdateProfileData(ctx context.Context, userID string, profileData json.RawMessage) error {
	ct, err := r.Pool.Exec(ctx, `UPDATE users SET profile_data = $2 WHERE user_id = $1;`, userID, profileData)
	if err != nil {
		return fmt.Errorf("failed to update profile for user %s: %w", userID, err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// UpdateTokenVersion stores a freshly rotated token version.
func (r *PgxUserRepository) UpdateTokenVersion(ctx context.Context, userID string, tokenVersion int) error {
	ct, err := r.Pool.Exec(ctx, `UPDATE users SET token_version = $2 WHERE user_id = $1;`, userID, tokenVersion)
	if err != nil {
		return fmt.Errorf("failed to update token version for user %s: %w", userID, err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
