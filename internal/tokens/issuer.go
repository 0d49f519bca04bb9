// Package tokens issues and verifies the access and refresh JWTs.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// RefreshCookie is the name of the cookie carrying the refresh token.
const RefreshCookie = "refreshToken"

const issuerName = "agt-tester"

var (
	// ErrTokenExpired is returned for a well-formed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for any other verification failure.
	ErrTokenInvalid = errors.New("token invalid")
)

// Config configures an Issuer.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SecureCookie  bool
}

// Claims represents JWT claims
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Issuer signs access tokens and refresh tokens with separate secrets.
type Issuer struct {
	cfg Config
	now func() time.Time
}

// NewIssuer validates cfg and returns an Issuer.
func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Issuer{cfg: cfg, now: time.Now}, nil
}

// RefreshTTL returns the refresh token lifetime
func (i *Issuer) RefreshTTL() time.Duration { return i.cfg.RefreshTTL }

// SecureCookie reports whether cookies set by the service carry Secure
func (i *Issuer) SecureCookie() bool { return i.cfg.SecureCookie }

// IssueAccessToken returns a short-lived token for userID.
func (i *Issuer) IssueAccessToken(userID string) (string, error) {
	return i.sign(userID, i.cfg.AccessSecret, i.cfg.AccessTTL)
}

// IssueRefreshToken signs a refresh token and sets it as the refresh cookie.
func (i *Issuer) IssueRefreshToken(c *fiber.Ctx, userID string) (string, error) {
	token, err := i.sign(userID, i.cfg.RefreshSecret, i.cfg.RefreshTTL)
	if err != nil {
		return "", err
	}
	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(i.cfg.RefreshTTL.Seconds()),
		Expires:  i.now().Add(i.cfg.RefreshTTL),
		HTTPOnly: true,
		Secure:   i.cfg.SecureCookie,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	return token, nil
}

// ClearRefreshCookie expires the refresh cookie on the client.
func (i *Issuer) ClearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   i.cfg.SecureCookie,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

// VerifyAccessToken returns the user id carried by an access token.
func (i *Issuer) VerifyAccessToken(token string) (string, error) {
	return i.verify(token, i.cfg.AccessSecret)
}

// VerifyRefreshToken returns the user id carried by a refresh token.
func (i *Issuer) VerifyRefreshToken(token string) (string, error) {
	return i.verify(token, i.cfg.RefreshSecret)
}

func (i *Issuer) sign(userID, secret string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuerName,
			Subject:   userID,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (i *Issuer) verify(tokenString, secret string) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithTimeFunc(i.now), jwt.WithIssuer(issuerName))

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrTokenExpired
	case err != nil, !token.Valid, claims.UserID == "":
		return "", ErrTokenInvalid
	}
	return claims.UserID, nil
}
