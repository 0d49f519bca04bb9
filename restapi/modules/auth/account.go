package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Cognio-so/agt-tester/database"
	"github.com/Cognio-so/agt-tester/events/modules/accounts"
	"github.com/Cognio-so/agt-tester/internal/apperr"
	"github.com/Cognio-so/agt-tester/internal/storage"
	"github.com/Cognio-so/agt-tester/internal/tokens"
	"github.com/Cognio-so/agt-tester/model"
	"go.uber.org/zap"
)

const (
	verificationTTL = 24 * time.Hour
	resetTokenTTL   = 24 * time.Hour
	resetTokenBytes = 32
)

// Signup creates an unverified account and emails its verification code.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*model.User, error) {
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	if name == "" || email == "" || req.Password == "" {
		return nil, apperr.Validation("All fields are required")
	}

	if _, err := s.store.FindUserByEmail(ctx, email); err == nil {
		return nil, apperr.Validation("User already exists")
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, internal("Server error", err)
	}

	if err := validateNewPassword(req.Password); err != nil {
		return nil, apperr.Validation("Password must be at least 6 characters long")
	}

	hash, err := HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, internal("Server error", err)
	}
	code, err := GenerateVerificationCode()
	if err != nil {
		return nil, internal("Server error", err)
	}

	now := s.now()
	expires := now.Add(verificationTTL)
	u := model.NewUser(name, email)
	u.PasswordHash = hash
	u.VerificationToken = code
	u.VerificationTokenExpiresAt = &expires
	u.CreatedAt, u.UpdatedAt = now, now

	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, database.ErrDuplicateEmail) {
			return nil, apperr.Validation("User already exists")
		}
		return nil, internal("Server error", err)
	}

	s.logMailError("verification", u.Email, s.mailer.SendVerificationEmail(u.Email, code))
	s.Publish(ctx, accounts.EventSignedUp, u)
	return u, nil
}

// VerifyEmail consumes a verification code. The code is cleared so it
// cannot be used twice.
func (s *Service) VerifyEmail(ctx context.Context, code string) (*model.User, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.Validation("Invalid or expired verification code")
	}

	u, err := s.store.FindUserByVerificationCode(ctx, code, s.now())
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.Validation("Invalid or expired verification code")
	}
	if err != nil {
		return nil, internal("Error verifying email", err)
	}

	u.IsVerified = true
	u.ClearVerification()
	u.UpdatedAt = s.now()
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, internal("Error verifying email", err)
	}

	s.logMailError("welcome", u.Email, s.mailer.SendWelcomeEmail(u.Email, u.Name))
	s.Publish(ctx, accounts.EventVerified, u)
	return u, nil
}

// Authenticate checks email and password. Every failure after input
// validation yields the same error so callers cannot tell which check failed.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("Email and password are required")
	}

	u, err := s.store.FindUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, internal("Server error", err)
	}

	if !u.HasPassword() || !CheckPasswordHash(password, u.PasswordHash) {
		return nil, errInvalidCredentials
	}
	return u, nil
}

// Touch stamps the user's lastActive with the current time
func (s *Service) Touch(ctx context.Context, u *model.User) error {
	now := s.now()
	if err := s.store.SetLastActive(ctx, u.Key, &now); err != nil {
		return internal("Server error", err)
	}
	u.Touch(now)
	return nil
}

// SetInactive clears the user's lastActive
func (s *Service) SetInactive(ctx context.Context, userID string) error {
	if err := s.store.SetLastActive(ctx, userID, nil); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return errUserNotFound
		}
		return internal("Failed to mark user as inactive.", err)
	}
	return nil
}

// ForgotPassword stores a reset token and emails the reset link.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperr.Validation("Email is required")
	}

	u, err := s.store.FindUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return apperr.Validation("User not found")
	}
	if err != nil {
		return internal("Server error during forget password", err)
	}

	token, err := GenerateSecureToken(resetTokenBytes)
	if err != nil {
		return internal("Server error during forget password", err)
	}
	expires := s.now().Add(resetTokenTTL)
	u.ResetPasswordToken = token
	u.ResetPasswordExpiresAt = &expires
	u.UpdatedAt = s.now()
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return internal("Server error during forget password", err)
	}

	resetURL := s.frontendURL + "/reset-password/" + token
	s.logMailError("reset", u.Email, s.mailer.SendResetPasswordEmail(u.Email, resetURL))
	return nil
}

// ResetPassword consumes a reset token and sets a new password.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if password == "" {
		return apperr.Validation("Password is required")
	}

	u, err := s.store.FindUserByResetToken(ctx, token, s.now())
	if errors.Is(err, database.ErrNotFound) {
		return apperr.Validation("Invalid or expired reset token")
	}
	if err != nil {
		return internal("Server error during reset password", err)
	}

	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return internal("Server error during reset password", err)
	}
	u.PasswordHash = hash
	u.ClearResetToken()
	u.UpdatedAt = s.now()
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return internal("Server error during reset password", err)
	}

	s.logMailError("reset-success", u.Email, s.mailer.SendPasswordResetSuccessEmail(u.Email))
	s.Publish(ctx, accounts.EventPasswordReset, u)
	return nil
}

// Refresh verifies a refresh token and returns a new access token for its user.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, *model.User, error) {
	if refreshToken == "" {
		return "", nil, apperr.Unauthorized("Refresh token not found")
	}

	userID, err := s.tokens.VerifyRefreshToken(refreshToken)
	if errors.Is(err, tokens.ErrTokenExpired) || errors.Is(err, tokens.ErrTokenInvalid) {
		return "", nil, apperr.Forbidden("Invalid or expired refresh token")
	}
	if err != nil {
		return "", nil, internal("Server error during token refresh", err)
	}

	u, err := s.store.FindUserByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return "", nil, apperr.Unauthorized("User not found for refresh token")
	}
	if err != nil {
		return "", nil, internal("Server error during token refresh", err)
	}

	access, err := s.tokens.IssueAccessToken(u.Key)
	if err != nil {
		return "", nil, internal("Server error during token refresh", err)
	}
	if err := s.Touch(ctx, u); err != nil {
		return "", nil, internal("Server error during token refresh", err)
	}
	return access, u, nil
}

// UpdateProfile changes the name, the email, or both.
func (s *Service) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*model.User, error) {
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	if name == "" && email == "" {
		return nil, apperr.Validation("Please provide name or email to update.")
	}

	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	errEmailTaken := apperr.Validation("Email address already in use.")
	if email != "" && email != u.Email {
		other, err := s.store.FindUserByEmail(ctx, email)
		switch {
		case err == nil && other.Key != u.Key:
			return nil, errEmailTaken
		case err != nil && !errors.Is(err, database.ErrNotFound):
			return nil, internal("Server error updating profile.", err)
		}
		u.Email = email
	}
	if name != "" {
		u.Name = name
	}
	u.UpdatedAt = s.now()

	if err := s.store.UpdateUser(ctx, u); err != nil {
		if errors.Is(err, database.ErrDuplicateEmail) {
			return nil, errEmailTaken
		}
		return nil, internal("Server error updating profile.", err)
	}
	return u, nil
}

// ProfilePicture is an uploaded image
type ProfilePicture struct {
	Data        []byte
	Filename    string
	ContentType string
}

// UpdateProfilePicture uploads pic under the user's prefix, points the
// profile at it and then removes the previous picture when it lives in our
// bucket. Failing to remove the old picture is logged only.
func (s *Service) UpdateProfilePicture(ctx context.Context, userID string, pic ProfilePicture) (*model.User, error) {
	if s.storage == nil {
		return nil, internal("Server error updating profile picture.", errors.New("object storage not configured"))
	}

	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	url, err := s.storage.Upload(ctx, pic.Data, pic.Filename, pic.ContentType, "profile-pics/"+u.Key)
	if err != nil {
		return nil, internal("Server error updating profile picture.", err)
	}

	previous := u.ProfilePic
	u.ProfilePic = url
	u.UpdatedAt = s.now()
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, internal("Server error updating profile picture.", err)
	}

	if key := storage.KeyFromURL(s.storage.PublicURL(), previous); key != "" {
		if err := s.storage.Delete(ctx, key); err != nil {
			s.logger.Sugar().Warnf("Failed to delete old profile picture %s, proceeding anyway: %v", key, err)
		}
	}
	return u, nil
}

// passwordMessages lets the two password routes keep their own wording
type passwordMessages struct {
	missing   string
	tooShort  string
	incorrect string
}

var (
	changePasswordMessages = passwordMessages{
		missing:   "Please provide both current and new passwords.",
		tooShort:  "New password must be at least 6 characters long.",
		incorrect: "Incorrect current password.",
	}
	updatePasswordMessages = passwordMessages{
		missing:   "All fields are required",
		tooShort:  "New password must be at least 6 characters long.",
		incorrect: "Current password is incorrect",
	}
)

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID string, req PasswordChangeRequest) error {
	return s.changePassword(ctx, userID, req, changePasswordMessages)
}

// UpdatePassword is the second password route; it applies the same policy.
func (s *Service) UpdatePassword(ctx context.Context, userID string, req PasswordChangeRequest) error {
	return s.changePassword(ctx, userID, req, updatePasswordMessages)
}

func (s *Service) changePassword(ctx context.Context, userID string, req PasswordChangeRequest, msg passwordMessages) error {
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return apperr.Validation(msg.missing)
	}
	if err := validateNewPassword(req.NewPassword); err != nil {
		return apperr.Validation(msg.tooShort)
	}

	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if !CheckPasswordHash(req.CurrentPassword, u.PasswordHash) {
		return apperr.Validation(msg.incorrect)
	}

	hash, err := HashPassword(req.NewPassword, s.bcryptCost)
	if err != nil {
		return internal("Server error changing password.", err)
	}
	u.PasswordHash = hash
	u.UpdatedAt = s.now()
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return internal("Server error changing password.", err)
	}
	return nil
}

// APIKeys decrypts every stored key independently. A key that cannot be
// decrypted comes back as "".
func (s *Service) APIKeys(ctx context.Context, userID string) (map[string]string, error) {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(u.APIKeys))
	for provider, sealed := range u.APIKeys {
		out[provider] = s.codec.Decrypt(sealed)
		if out[provider] == "" && sealed != "" {
			s.logger.Warn("Failed to decrypt API key", zap.String("user_id", u.Key), zap.String("provider", provider))
		}
	}
	return out, nil
}

// SaveAPIKeys encrypts and stores keys, replacing whatever was stored.
// Empty values are dropped.
func (s *Service) SaveAPIKeys(ctx context.Context, userID string, keys map[string]string) error {
	if keys == nil {
		return apperr.Validation("No API keys provided")
	}

	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	sealed := make(map[string]string, len(keys))
	for provider, plain := range keys {
		if plain == "" {
			continue
		}
		ct, err := s.codec.Encrypt(plain)
		if err != nil {
			return internal("Server error", err)
		}
		sealed[provider] = ct
	}

	u.APIKeys = sealed
	u.UpdatedAt = s.now()
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return internal("Server error", err)
	}
	return nil
}
