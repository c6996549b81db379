package dto

import (
	"encoding/json"
	"time"

	"github.com/payledger/payledger/internal/core/domain"
)

// RegisterRequest carries the payload for user registration.
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=12"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// LoginRequest carries the payload for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse returns a freshly issued JWT.
type TokenResponse struct {
	Token string `json:"token"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	KYCStatus string    `json:"kyc_status"`
	CreatedAt time.Time `json:"created_at"`
}

// ToUserResponse maps a domain user to its response DTO.
func ToUserResponse(user *domain.User) UserResponse {
	var profile domain.Profile
	if len(user.ProfileData) > 0 {
		// Ignore decode failures here; the profile fields just stay empty.
		_ = json.Unmarshal(user.ProfileData, &profile)
	}
	return UserResponse{
		UserID:    user.UserID,
		Email:     user.Email,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		KYCStatus: user.KYCStatus,
		CreatedAt: user.CreatedAt,
	}
}
