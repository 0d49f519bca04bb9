package auth

// SignupRequest defines the body for credential signup
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// VerifyEmailRequest carries the emailed 6-digit code
type VerifyEmailRequest struct {
	Code string `json:"code"`
}

// LoginRequest defines the body for credential login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPasswordRequest starts the reset flow
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest completes the reset flow; the token is in the path
type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// UpdateProfileRequest changes name and email. Either may be empty.
type UpdateProfileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PasswordChangeRequest is shared by both password routes
type PasswordChangeRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// APIKeysRequest maps provider name to plaintext key
type APIKeysRequest struct {
	APIKeys map[string]string `json:"apiKeys"`
}

// PermissionsRequest changes role and department of a user
type PermissionsRequest struct {
	Role       string `json:"role"`
	Department string `json:"department"`
}
