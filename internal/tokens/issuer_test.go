package tokens

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	i, err := NewIssuer(Config{
		AccessSecret:  "access",
		RefreshSecret: "refresh",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		SecureCookie:  true,
	})
	require.NoError(t, err)
	return i
}

func TestNewIssuer_Validation(t *testing.T) {
	_, err := NewIssuer(Config{AccessSecret: "a"})
	assert.Error(t, err)

	_, err = NewIssuer(Config{AccessSecret: "same", RefreshSecret: "same"})
	assert.Error(t, err)

	i, err := NewIssuer(Config{AccessSecret: "a", RefreshSecret: "r"})
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, i.RefreshTTL())
}

func TestAccessToken_RoundTrip(t *testing.T) {
	i := newTestIssuer(t)

	token, err := i.IssueAccessToken("user-1")
	require.NoError(t, err)

	id, err := i.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)
}

func TestTokens_SecretsAreNotInterchangeable(t *testing.T) {
	i := newTestIssuer(t)

	access, err := i.IssueAccessToken("user-1")
	require.NoError(t, err)

	_, err = i.VerifyRefreshToken(access)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerify_Expired(t *testing.T) {
	i := newTestIssuer(t)
	issuedAt := time.Now().Add(-time.Hour)
	i.now = func() time.Time { return issuedAt }

	token, err := i.IssueAccessToken("user-1")
	require.NoError(t, err)

	i.now = time.Now
	_, err = i.VerifyAccessToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_Garbage(t *testing.T) {
	i := newTestIssuer(t)

	for _, in := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := i.VerifyRefreshToken(in)
		assert.ErrorIs(t, err, ErrTokenInvalid, in)
	}
}

func TestIssueRefreshToken_SetsCookie(t *testing.T) {
	i := newTestIssuer(t)
	app := fiber.New()

	var issued string
	app.Get("/", func(c *fiber.Ctx) error {
		var err error
		issued, err = i.IssueRefreshToken(c, "user-1")
		return err
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	cookie := findCookie(resp.Cookies(), RefreshCookie)
	require.NotNil(t, cookie)
	assert.Equal(t, issued, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), cookie.MaxAge)

	id, err := i.VerifyRefreshToken(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)
}

func TestClearRefreshCookie(t *testing.T) {
	i := newTestIssuer(t)
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		i.ClearRefreshCookie(c)
		return nil
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	cookie := findCookie(resp.Cookies(), RefreshCookie)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.True(t, cookie.Expires.Before(time.Now()))
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
