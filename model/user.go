// Package model provides data models for the account backend.
package model

import (
	"strings"
	"time"
)

// Role is the enumerated account role
type Role string

const (
	// RoleUser is the default role for new accounts
	RoleUser Role = "user"
	// RoleAdmin can administer other accounts
	RoleAdmin Role = "admin"
)

// ParseRole normalizes a role name and reports whether it is known
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleUser, RoleAdmin:
		return r, true
	default:
		return "", false
	}
}

// User represents an account document in the users collection
type User struct {
	Key          string `json:"_key,omitempty"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"password,omitempty"` // empty for OAuth-only accounts
	Role         Role   `json:"role"`
	Department   string `json:"department,omitempty"`
	GoogleID     string `json:"google_id,omitempty"`
	ProfilePic   string `json:"profile_pic,omitempty"`

	IsVerified                 bool       `json:"is_verified"`
	VerificationToken          string     `json:"verification_token,omitempty"`
	VerificationTokenExpiresAt *time.Time `json:"verification_token_expires_at,omitempty"`
	ResetPasswordToken         string     `json:"reset_password_token,omitempty"`
	ResetPasswordExpiresAt     *time.Time `json:"reset_password_expires_at,omitempty"`

	// APIKeys maps provider name to ciphertext produced by keycodec
	APIKeys map[string]string `json:"api_keys,omitempty"`

	LastActive *time.Time `json:"last_active"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewUser creates a new unverified user with default values
func NewUser(name, email string) *User {
	now := time.Now().UTC()
	return &User{
		Name:      name,
		Email:     email,
		Role:      RoleUser,
		APIKeys:   map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsAdmin returns true if user is admin
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// HasPassword reports whether the account can use credential login
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// ClearVerification drops the one-time verification code
func (u *User) ClearVerification() {
	u.VerificationToken = ""
	u.VerificationTokenExpiresAt = nil
}

// ClearResetToken drops the one-time reset token
func (u *User) ClearResetToken() {
	u.ResetPasswordToken = ""
	u.ResetPasswordExpiresAt = nil
}

// Touch stamps lastActive and updatedAt
func (u *User) Touch(now time.Time) {
	u.LastActive = &now
	u.UpdatedAt = now
}

// UserResponse is the sanitized user shape returned to clients.
// It never carries the password hash, tokens or API keys.
type UserResponse struct {
	ID         string     `json:"_id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	ProfilePic string     `json:"profilePic,omitempty"`
	Role       Role       `json:"role"`
	Department string     `json:"department,omitempty"`
	IsVerified bool       `json:"isVerified"`
	LastActive *time.Time `json:"lastActive"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Sanitize strips secrets from the user
func (u *User) Sanitize() UserResponse {
	return UserResponse{
		ID:         u.Key,
		Name:       u.Name,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
		Role:       u.Role,
		Department: u.Department,
		IsVerified: u.IsVerified,
		LastActive: u.LastActive,
		CreatedAt:  u.CreatedAt,
	}
}

// UserSummary is the compact identity used by login and the OAuth redirect
type UserSummary struct {
	ID         string `json:"_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	ProfilePic string `json:"profilePic,omitempty"`
	Role       Role   `json:"role"`
	IsVerified bool   `json:"isVerified"`
}

// Summary returns the compact identity of the user
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:         u.Key,
		Name:       u.Name,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
		Role:       u.Role,
		IsVerified: u.IsVerified,
	}
}

// UserWithGptCount is a user row in the paginated admin listing
type UserWithGptCount struct {
	ID         string     `json:"_id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Role       Role       `json:"role"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastActive *time.Time `json:"lastActive"`
	GptCount   int        `json:"gptCount"`
}
