package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/Cognio-so/agt-tester/internal/apperr"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength applies to signup and to both password change routes
const MinPasswordLength = 6

var (
	errUserNotFound       = apperr.NotFound("User not found")
	errInvalidCredentials = apperr.Validation("Invalid credentials")
)

func internal(msg string, err error) error {
	return apperr.Internal(msg, err)
}

// ============================================================================
// PASSWORD HASHING
// ============================================================================

// HashPassword generates a bcrypt hash of the password
func HashPassword(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with a hash
func CheckPasswordHash(password, hash string) bool {
	if hash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// validateNewPassword is the single password policy for new passwords
func validateNewPassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}
	return nil
}

// ============================================================================
// TOKEN GENERATION
// ============================================================================

// GenerateVerificationCode returns a uniformly random 6-digit code
func GenerateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// GenerateSecureToken returns length random bytes hex encoded.
// Used for password reset tokens and OAuth state.
func GenerateSecureToken(length int) (string, error) {
	if length <= 0 {
		length = 32 // Default to 32 bytes
	}

	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}

	return hex.EncodeToString(bytes), nil
}
