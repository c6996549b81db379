package domain

import (
	"encoding/json"
	"time"
)

// User represents a registered user of the service.
type User struct {
	UserID       string          `json:"userID"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	TokenVersion int             `json:"-"` // Rotated on login; stale JWTs are rejected
	ProfileData  json.RawMessage `json:"profileData"`
	KYCStatus    string          `json:"kycStatus"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Profile is the structured view of User.ProfileData.
type Profile struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}
