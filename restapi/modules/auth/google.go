package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Cognio-so/agt-tester/database"
	"github.com/Cognio-so/agt-tester/events/modules/accounts"
	"github.com/Cognio-so/agt-tester/model"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	oauthStateCookie = "oauthState"
	oauthStateTTL    = 10 * time.Minute
	googleUserInfo   = "https://www.googleapis.com/oauth2/v3/userinfo"
)

// GoogleProfile is the subset of the userinfo response we use
type GoogleProfile struct {
	ID            string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleProvider runs the authorization code flow against Google
type GoogleProvider interface {
	AuthCodeURL(state string) string
	// Profile exchanges code and fetches the signed in user's profile.
	Profile(ctx context.Context, code string) (GoogleProfile, error)
}

// GoogleOptions configures the Google OAuth client
type GoogleOptions struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

type googleOAuth struct {
	config   *oauth2.Config
	userInfo string
}

// NewGoogleProvider returns a GoogleProvider requesting the profile and email scopes
func NewGoogleProvider(opts GoogleOptions) GoogleProvider {
	return &googleOAuth{
		config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.CallbackURL,
			Scopes:       []string{"profile", "email"},
			Endpoint:     endpoints.Google,
		},
		userInfo: googleUserInfo,
	}
}

func (g *googleOAuth) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (g *googleOAuth) Profile(ctx context.Context, code string) (GoogleProfile, error) {
	var profile GoogleProfile

	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return profile, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfo, nil)
	if err != nil {
		return profile, err
	}
	resp, err := g.config.Client(ctx, token).Do(req)
	if err != nil {
		return profile, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return profile, fmt.Errorf("fetch userinfo: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return profile, fmt.Errorf("decode userinfo: %w", err)
	}
	if profile.ID == "" || profile.Email == "" {
		return profile, errors.New("userinfo missing id or email")
	}
	return profile, nil
}

// FindOrCreateGoogleUser resolves a Google profile to an account. A known
// Google id wins; otherwise an account with the same email is linked;
// otherwise a verified, password-less account is created.
func (s *Service) FindOrCreateGoogleUser(ctx context.Context, p GoogleProfile) (*model.User, error) {
	u, err := s.store.FindUserByGoogleID(ctx, p.ID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	email := normalizeEmail(p.Email)
	u, err = s.store.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		u.GoogleID = p.ID
		u.IsVerified = true
		u.ClearVerification()
		if u.ProfilePic == "" {
			u.ProfilePic = p.Picture
		}
		u.UpdatedAt = s.now()
		if err := s.store.UpdateUser(ctx, u); err != nil {
			return nil, err
		}
		return u, nil
	case !errors.Is(err, database.ErrNotFound):
		return nil, err
	}

	name := p.Name
	if name == "" {
		name = email
	}
	u = model.NewUser(name, email)
	u.GoogleID = p.ID
	u.ProfilePic = p.Picture
	u.IsVerified = true
	u.CreatedAt, u.UpdatedAt = s.now(), s.now()
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	s.logMailError("welcome", u.Email, s.mailer.SendWelcomeEmail(u.Email, u.Name))
	s.Publish(ctx, accounts.EventSignedUp, u)
	return u, nil
}

// GoogleAuth redirects to the Google consent screen
func GoogleAuth(s *Service, p GoogleProvider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		state, err := GenerateSecureToken(16)
		if err != nil {
			return s.loginError(c, "google_auth_error", err)
		}

		c.Cookie(&fiber.Cookie{
			Name:     oauthStateCookie,
			Value:    state,
			Path:     "/",
			MaxAge:   int(oauthStateTTL.Seconds()),
			HTTPOnly: true,
			Secure:   s.tokens.SecureCookie(),
			// the callback is a cross-site top level navigation
			SameSite: fiber.CookieSameSiteLaxMode,
		})
		return c.Redirect(p.AuthCodeURL(state), fiber.StatusTemporaryRedirect)
	}
}

// clearStateCookie expires the state cookie set by GoogleAuth. Path must
// match or the browser keeps the original.
func (s *Service) clearStateCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   s.tokens.SecureCookie(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// GoogleCallback completes the flow and hands the session to the frontend
// through a redirect. It never answers with JSON.
func GoogleCallback(s *Service, p GoogleProvider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		state := c.Cookies(oauthStateCookie)
		s.clearStateCookie(c)

		if reason := c.Query("error"); reason != "" {
			return s.loginError(c, "google_auth_failed", errors.New(reason))
		}
		code := c.Query("code")
		if code == "" || state == "" || c.Query("state") != state {
			return s.loginError(c, "google_auth_failed", errors.New("missing code or state mismatch"))
		}

		ctx := c.UserContext()
		profile, err := p.Profile(ctx, code)
		if err != nil {
			return s.loginError(c, "google_auth_error", err)
		}

		u, err := s.FindOrCreateGoogleUser(ctx, profile)
		if err != nil {
			return s.loginError(c, "google_auth_error", err)
		}

		accessToken, err := s.startSession(c, u)
		if err != nil {
			return s.loginError(c, "processing_failed", err)
		}

		summary, err := json.Marshal(u.Summary())
		if err != nil {
			return s.loginError(c, "processing_failed", err)
		}

		q := url.Values{}
		q.Set("accessToken", accessToken)
		q.Set("user", string(summary))
		return c.Redirect(s.frontendURL+"/auth/callback?"+q.Encode(), fiber.StatusFound)
	}
}

func (s *Service) loginError(c *fiber.Ctx, code string, err error) error {
	s.logger.Warn("Google sign-in failed", zap.String("reason", code), zap.Error(err))
	return c.Redirect(s.frontendURL+"/login?error="+url.QueryEscape(code), fiber.StatusFound)
}
